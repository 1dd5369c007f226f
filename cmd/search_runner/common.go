package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/search-runner/internal/artifacts"
	"github.com/jonathan/search-runner/internal/config"
	"github.com/jonathan/search-runner/internal/observability"
	"github.com/jonathan/search-runner/internal/postgres"
	"github.com/jonathan/search-runner/internal/queue"
	"github.com/jonathan/search-runner/internal/reconcile"
	"github.com/jonathan/search-runner/internal/runner"
	"github.com/jonathan/search-runner/internal/session"
	"github.com/jonathan/search-runner/internal/store"
)

// app wires the configured collaborators together for a command
// invocation.
type app struct {
	cfg     config.Config
	store   store.Store
	queue   *queue.Manager
	svc     *runner.Service
	printer *observability.Printer

	db *postgres.DB // nil when running on the memory store
}

// loadRunnerConfig resolves configuration in priority order: flags over
// config file over environment over defaults.
func loadRunnerConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if flagConfigPath != "" {
		loaded, err := config.LoadConfig(flagConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
		if flagVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", flagConfigPath)
		}
	}

	// CLI overrides win over config file values
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if cmd.Flags().Changed("storage") {
		cfg.Storage = flagStorage
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if flagVerbose {
		cfg.Verbose = true
	}

	cfg.ApplyEnv()
	cfg = cfg.MergeWithDefaults(config.Default())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newApp builds a wired service for the command
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadRunnerConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, printer: observability.NewPrinter(os.Stdout)}

	if cfg.Storage == "memory" {
		a.store = store.NewMemory()
	} else {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		a.store = db
	}

	artifactStore := artifacts.NewDir(filepath.Join(cfg.DataDir, "artifacts"))
	classifier := artifacts.NewSizeClassifier(artifactStore, cfg.MinArtifactBytes)
	sessions := session.NewTmux(cfg.TmuxBin, cfg.SessionCommand,
		filepath.Join(cfg.DataDir, "payloads"), artifactStore)

	a.queue = queue.NewManager(a.store, sessions, classifier)
	reconciler := reconcile.New(a.store, sessions, a.queue)
	a.svc = runner.New(a.store, artifactStore, sessions, a.queue, reconciler)
	return a, nil
}

// Close releases the app's resources
func (a *app) Close() {
	a.queue.Close()
	if a.db != nil {
		a.db.Close()
	}
}
