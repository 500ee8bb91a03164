// Package main provides the variantd reference backend for the Variant
// A/B-testing admin console.
//
// variantd serves the admin REST API the console consumes: login,
// experiment CRUD, per-variant summaries, stats reset, and an
// unauthenticated event-ingestion route for tracking SDKs.
//
// # Basic Usage
//
// Start the server:
//
//	variantd serve --config variant.yaml
//
// # Environment Variables
//
// Configuration values in the YAML file may reference environment
// variables; `${VARIANT_ADMIN_KEY}` is the usual way to keep the admin
// credential out of the file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/variantlabs/variant-admin/internal/config"
	"github.com/variantlabs/variant-admin/internal/observability"
	"github.com/variantlabs/variant-admin/internal/server"
	"github.com/variantlabs/variant-admin/internal/storage"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command. Separated from main() to
// facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "variantd",
		Short:        "Variant reference backend",
		Long:         "variantd serves the admin REST API for the Variant A/B-testing console.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the backend server",
		Long: `Start the backend server.

The server loads configuration from the given file (or variant.yaml),
opens the experiment store (Postgres when server.postgres_dsn is set,
in-memory otherwise), and serves until SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  variantd serve

  # Start with custom config and debug logging
  variantd serve --config /etc/variant/production.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigName,
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	slog.Info("starting variantd",
		"version", version,
		"commit", commit,
		"config", configPath,
		"debug", debug,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if strings.TrimSpace(cfg.Server.AdminKey) == "" {
		return fmt.Errorf("server.admin_key is required")
	}
	if len(cfg.Server.AllowedApps) == 0 {
		return fmt.Errorf("server.allowed_apps must name at least one application id")
	}

	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			slog.Warn("store close failed", "error", err)
		}
	}()

	metrics := observability.NewMetrics()
	handler := server.NewHandler(&server.Config{
		AdminKey:    cfg.Server.AdminKey,
		AllowedApps: cfg.Server.AllowedApps,
		Stores:      stores,
		Logger:      slog.Default(),
		Metrics:     metrics,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler.Mount(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("variantd listening",
			"addr", cfg.Server.Listen,
			"apps", cfg.Server.AllowedApps,
			"store", storeKind(cfg),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("variantd stopped gracefully")
	return nil
}

func openStores(cfg *config.Config) (storage.StoreSet, error) {
	if strings.TrimSpace(cfg.Server.PostgresDSN) == "" {
		return storage.NewStoreSet(storage.NewMemoryExperimentStore(), storage.NewMemoryStatsStore(), nil), nil
	}
	store, err := storage.NewPostgresStore(cfg.Server.PostgresDSN, storage.DefaultPostgresConfig())
	if err != nil {
		return storage.StoreSet{}, fmt.Errorf("open postgres store: %w", err)
	}
	return storage.NewStoreSet(store, store, store.Close), nil
}

func storeKind(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Server.PostgresDSN) == "" {
		return "memory"
	}
	return "postgres"
}
