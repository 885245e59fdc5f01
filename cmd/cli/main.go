package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tommynabo/TalentScope-sub000/internal/config"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
	"github.com/tommynabo/TalentScope-sub000/internal/storage/memory"
	"github.com/tommynabo/TalentScope-sub000/internal/storage/postgres"
	"github.com/tommynabo/TalentScope-sub000/internal/storage/sqlite"
)

var (
	cfgFile    string
	outputJSON bool
	userID     string
)

var rootCmd = &cobra.Command{
	Use:   "talentscope",
	Short: "Developer discovery and contact enrichment",
	Long: `A CLI tool for discovering developers on GitHub and researching how to reach them.

Scans search GitHub with a preset or custom filter, analyze and score each
profile, and store accepted candidates per campaign. Enrichment researches
contact details for stored candidates without overwriting known data.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "local", "owner of the campaign")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.AddCommand(candidatesDeleteCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every local command needs
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Storage
	closeLog func() error
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
	_ = e.closeLog()
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setup() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, config.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	store, err := getStorage(cfg)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return &env{cfg: cfg, logger: logger, store: store, closeLog: closeLog}, nil
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case config.StoragePostgres:
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	case config.StorageMemory:
		return memory.NewMemoryStorage(), nil
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

func campaignOf(id string) domain.Campaign {
	return domain.Campaign{ID: id, UserID: userID}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
