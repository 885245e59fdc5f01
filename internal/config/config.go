package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tommynabo/TalentScope-sub000/internal/enrich"
	"github.com/tommynabo/TalentScope-sub000/internal/scanner"
)

// Storage types
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	// GitHub
	GitHubToken string

	// Storage
	StorageType string // "sqlite", "postgres" or "memory"
	SQLitePath  string
	PostgresURL string

	// API Server
	APIPort     string
	APIHost     string
	CORSOrigins []string // empty allows any origin

	// CLI
	APIEndpoint string

	// Logging
	LogLevel string
	LogFile  string

	// Presets
	PresetsFile string

	// Scan
	ScanMaxPages int
	ScanPageSize int

	// Enrichment
	EnrichParallelism        int
	EnrichDelay              time.Duration
	EnrichMaxRetries         int
	EnrichCheckpointEvery    int
	EnrichCheckpointInterval time.Duration

	// Contact research
	ContactCacheTTL time.Duration
	WebsiteTimeout  time.Duration
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()
	return FromEnv(), nil
}

// LoadFile loads the configuration with path as the .env file
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, &ConfigError{Field: "config", Message: err.Error()}
	}
	return FromEnv(), nil
}

// FromEnv reads the configuration from the process environment only
func FromEnv() *Config {
	return &Config{
		GitHubToken:              getEnv("GITHUB_TOKEN", ""),
		StorageType:              getEnv("STORAGE_TYPE", StorageSQLite),
		SQLitePath:               getEnv("SQLITE_PATH", "./talentscope.db"),
		PostgresURL:              getEnv("POSTGRES_URL", ""),
		APIPort:                  getEnv("API_PORT", "8080"),
		APIHost:                  getEnv("API_HOST", "localhost"),
		CORSOrigins:              getEnvList("CORS_ALLOWED_ORIGINS"),
		APIEndpoint:              getEnv("API_ENDPOINT", "http://localhost:8080"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogFile:                  getEnv("LOG_FILE", ""),
		PresetsFile:              getEnv("PRESETS_FILE", ""),
		ScanMaxPages:             getEnvInt("SCAN_MAX_PAGES", 10),
		ScanPageSize:             getEnvInt("SCAN_PAGE_SIZE", 30),
		EnrichParallelism:        getEnvInt("ENRICH_PARALLELISM", 1),
		EnrichDelay:              getEnvDuration("ENRICH_DELAY", 500*time.Millisecond),
		EnrichMaxRetries:         getEnvInt("ENRICH_MAX_RETRIES", 2),
		EnrichCheckpointEvery:    getEnvInt("ENRICH_CHECKPOINT_EVERY", 5),
		EnrichCheckpointInterval: getEnvDuration("ENRICH_CHECKPOINT_INTERVAL", 30*time.Second),
		ContactCacheTTL:          getEnvDuration("CONTACT_CACHE_TTL", time.Hour),
		WebsiteTimeout:           getEnvDuration("WEBSITE_TIMEOUT", 15*time.Second),
	}
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to the default when the value is missing or malformed
func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageSQLite, StoragePostgres, StorageMemory:
	default:
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'sqlite', 'postgres' or 'memory'"}
	}
	if c.StorageType == StoragePostgres && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	if c.ScanMaxPages <= 0 {
		return &ConfigError{Field: "SCAN_MAX_PAGES", Message: "must be positive"}
	}
	if c.ScanPageSize <= 0 || c.ScanPageSize > 100 {
		return &ConfigError{Field: "SCAN_PAGE_SIZE", Message: "must be between 1 and 100"}
	}
	if c.EnrichParallelism <= 0 {
		return &ConfigError{Field: "ENRICH_PARALLELISM", Message: "must be positive"}
	}
	if c.EnrichMaxRetries < 0 {
		return &ConfigError{Field: "ENRICH_MAX_RETRIES", Message: "must not be negative"}
	}
	return nil
}

// ScanOptions returns the configured page budget and page size
func (c *Config) ScanOptions() scanner.Options {
	return scanner.Options{MaxPages: c.ScanMaxPages, PageSize: c.ScanPageSize}
}

// EnrichOptions returns the configured enrichment tuning
func (c *Config) EnrichOptions() enrich.Options {
	opts := enrich.DefaultOptions()
	opts.Parallelism = c.EnrichParallelism
	opts.Delay = c.EnrichDelay
	opts.MaxRetries = c.EnrichMaxRetries
	opts.CheckpointEvery = c.EnrichCheckpointEvery
	opts.CheckpointInterval = c.EnrichCheckpointInterval
	return opts
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
