// Package main provides the variantctl admin console.
//
// commands.go contains all cobra command definitions and their flag
// configurations. Each command builder wires a command to its handler.
package main

import (
	"github.com/spf13/cobra"
)

// =============================================================================
// Session Commands
// =============================================================================

func buildLoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the backend",
		Long: `Authenticate against the backend with the shared admin key.

On success the credential and the permitted application ids are cached,
and the experiment list for the selected application is fetched.`,
		Example: `  # Prompt for the admin key
  variantctl login

  # Non-interactive (the key lands in shell history; prefer the prompt)
  variantctl login --password "$VARIANT_ADMIN_KEY"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, password)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Admin key (prompted when omitted)")
	return cmd
}

func buildLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the cached credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd)
		},
	}
}

func buildAppsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List the application ids the credential may manage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApps(cmd)
		},
	}
}

func buildUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <app-id>",
		Short: "Switch the selected application",
		Long: `Switch the selected application id.

The experiment list and any loaded summary belong to one application;
switching clears them and refetches for the new id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUse(cmd, args[0])
		},
	}
}

// =============================================================================
// Experiment Commands
// =============================================================================

func buildListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments for the selected application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildSummaryCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "summary [key]",
		Short: "Show ranked conversion rates and the headline winner",
		Long: `Show the per-variant summary for an experiment.

Rows are ranked by conversion rate, computed as conversions divided by
exposures. With two or more rows a winner and loser are declared along
with the relative uplift between them.`,
		Example: `  # Summary for a specific experiment
  variantctl summary checkout_test

  # Summary for the first experiment of the selected application
  variantctl summary`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) > 0 {
				key = args[0]
			}
			return runSummary(cmd, key, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildCreateCmd() *cobra.Command {
	var (
		name     string
		variantA string
		variantB string
	)

	cmd := &cobra.Command{
		Use:   "create <key>",
		Short: "Create an experiment with a 50/50 two-variant split",
		Example: `  variantctl create checkout_test --name "Checkout Test"

  # Custom variant labels
  variantctl create cta_color --name "CTA Color" --variant-a Blue --variant-b Green`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, args[0], name, variantA, variantB)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (required)")
	cmd.Flags().StringVar(&variantA, "variant-a", "Control", "First variant label")
	cmd.Flags().StringVar(&variantB, "variant-b", "Variant B", "Second variant label")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func buildAllocateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocate <key> <share>...",
		Short: "Reallocate traffic shares across an experiment's variants",
		Long: `Reallocate traffic shares across an experiment's variants.

Shares are integer percentages applied to the variants in display
order. A share that fails to parse is coerced to 0, and each share is
clamped to [0,100]. The edit is committed only when the shares sum to
exactly 100; no automatic rebalancing is performed.`,
		Example: `  # Two variants, 70/30
  variantctl allocate checkout_test 70 30

  # Throttle the second variant entirely
  variantctl allocate checkout_test 100 0`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllocate(cmd, args[0], args[1:])
		},
	}
	return cmd
}

func buildPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <key>",
		Short: "Pause an experiment, keeping its traffic split",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetStatus(cmd, args[0], false)
		},
	}
}

func buildResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <key>",
		Short: "Resume a paused experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetStatus(cmd, args[0], true)
		},
	}
}

func buildDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete an experiment (irreversible)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func buildResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset <key>",
		Short: "Reset an experiment's exposure and conversion counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
