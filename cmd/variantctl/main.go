// Package main provides the variantctl admin console for the Variant
// A/B-testing platform.
//
// variantctl drives the backend's admin API: it authenticates an
// operator, lists experiments per application, shows ranked
// conversion-rate summaries with a declared winner, and edits traffic
// splits with a sum-to-100 gate before anything is committed.
//
// # Basic Usage
//
// Log in and look around:
//
//	variantctl login
//	variantctl list
//	variantctl summary checkout_test
//
// Reallocate traffic:
//
//	variantctl allocate checkout_test 70 30
//
// # Environment Variables
//
//   - VARIANT_CONFIG: Path to configuration file (default: variant.yaml)
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/variantlabs/variant-admin/internal/config"
)

// Build information - populated by ldflags during build.
var (
	version    = "dev"
	commit     = "none"
	date       = "unknown"
	configPath string
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "variantctl",
		Short: "Variant - A/B-testing admin console",
		Long: `variantctl administers experiments on a Variant backend.

Authentication uses a shared admin key exchanged at login for the list
of application ids the operator may manage. The credential, the
selected application id, and the allowed-apps list are cached under
~/.variant across invocations.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file (default variant.yaml; or set VARIANT_CONFIG)")

	rootCmd.AddCommand(
		buildLoginCmd(),
		buildLogoutCmd(),
		buildAppsCmd(),
		buildUseCmd(),
		buildListCmd(),
		buildSummaryCmd(),
		buildCreateCmd(),
		buildAllocateCmd(),
		buildPauseCmd(),
		buildResumeCmd(),
		buildDeleteCmd(),
		buildResetCmd(),
	)

	return rootCmd
}

func resolveConfigPath() string {
	if strings.TrimSpace(configPath) != "" {
		return configPath
	}
	if env := strings.TrimSpace(os.Getenv("VARIANT_CONFIG")); env != "" {
		return env
	}
	return config.DefaultConfigName
}
