package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tommynabo/TalentScope-sub000/internal/api"
	"github.com/tommynabo/TalentScope-sub000/internal/collector"
	"github.com/tommynabo/TalentScope-sub000/internal/config"
	"github.com/tommynabo/TalentScope-sub000/internal/contact"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
	"github.com/tommynabo/TalentScope-sub000/internal/storage/memory"
	"github.com/tommynabo/TalentScope-sub000/internal/storage/postgres"
	"github.com/tommynabo/TalentScope-sub000/internal/storage/sqlite"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, config.ParseLevel(cfg.LogLevel))
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageType {
	case config.StoragePostgres:
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL storage: %w", err)
		}
	case config.StorageMemory:
		store = memory.NewMemoryStorage()
	default:
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
	}
	defer store.Close()

	presets, err := config.LoadPresets(cfg.PresetsFile)
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}

	// Initialize GitHub source and contact research
	src, err := collector.NewGitHubSource(ctx, cfg.GitHubToken, collector.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	engine, err := contact.NewEngine(src,
		contact.WithLogger(logger),
		contact.WithCacheTTL(cfg.ContactCacheTTL),
		contact.WithWebsiteBudget(cfg.WebsiteTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create contact engine: %w", err)
	}

	// Initialize handler and routes
	handler := api.NewHandler(api.Deps{
		Store:       store,
		Source:      src,
		Researcher:  engine,
		Presets:     presets,
		ScanOptions: cfg.ScanOptions(),
		Enrich:      cfg.EnrichOptions(),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})
	router := api.SetupRoutes(handler)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", addr, "storage", cfg.StorageType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := handler.Shutdown(shutdownCtx); err != nil {
		logger.Error("enrichments did not finish before shutdown", "error", err)
	}
	return nil
}
