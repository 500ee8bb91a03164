// Package main provides the variantctl admin console.
//
// handlers.go contains session bootstrap and the handlers for the
// authentication commands.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/variantlabs/variant-admin/internal/adminapi"
	"github.com/variantlabs/variant-admin/internal/config"
	"github.com/variantlabs/variant-admin/internal/credstore"
	"github.com/variantlabs/variant-admin/internal/observability"
	"github.com/variantlabs/variant-admin/internal/session"
)

// newController builds the session controller from configuration. The
// controller starts unauthenticated; callers decide whether to Restore
// the cached credential.
func newController(cmd *cobra.Command) (*session.Controller, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	cacheDir := cfg.Console.CacheDir
	if strings.TrimSpace(cacheDir) == "" {
		cacheDir = credstore.DefaultDir()
	}
	cache := credstore.New(cacheDir)

	client := adminapi.NewClient(cfg.Console.BaseURL, adminapi.Options{
		Timeout: cfg.Console.Timeout,
		Logger:  logger,
	})

	return session.NewController(client, cache, logger, nil)
}

// requireSession restores the cached session and fails when no
// credential is live.
func requireSession(cmd *cobra.Command) (*session.Controller, error) {
	ctl, err := newController(cmd)
	if err != nil {
		return nil, err
	}
	if err := ctl.Restore(cmd.Context()); err != nil {
		return nil, err
	}
	if !ctl.Authenticated() {
		return nil, fmt.Errorf("not logged in; run `variantctl login` first")
	}
	return ctl, nil
}

// =============================================================================
// Session Command Handlers
// =============================================================================

func runLogin(cmd *cobra.Command, password string) error {
	ctl, err := newController(cmd)
	if err != nil {
		return err
	}

	if strings.TrimSpace(password) == "" {
		reader := bufio.NewReader(cmd.InOrStdin())
		password = promptString(cmd, reader, "Admin key", "")
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("admin key is required")
	}

	if err := ctl.Login(cmd.Context(), password); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Logged in. Application: %s\n", ctl.AppID())
	fmt.Fprintf(out, "Allowed applications: %s\n", strings.Join(ctl.AllowedApps(), ", "))
	fmt.Fprintf(out, "Experiments loaded: %d\n", len(ctl.Experiments()))
	return nil
}

func runLogout(cmd *cobra.Command) error {
	ctl, err := newController(cmd)
	if err != nil {
		return err
	}
	ctl.Logout(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}

func runApps(cmd *cobra.Command) error {
	ctl, err := requireSession(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, app := range ctl.AllowedApps() {
		marker := " "
		if app == ctl.AppID() {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, app)
	}
	return nil
}

func runUse(cmd *cobra.Command, appID string) error {
	ctl, err := requireSession(cmd)
	if err != nil {
		return err
	}

	allowed := ctl.AllowedApps()
	found := false
	for _, app := range allowed {
		if app == appID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("application %q is not in the allowed list (%s)", appID, strings.Join(allowed, ", "))
	}

	if err := ctl.SelectApp(cmd.Context(), appID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Using application %s (%d experiments)\n", appID, len(ctl.Experiments()))
	return nil
}

// =============================================================================
// Prompt Helpers
// =============================================================================

func promptString(cmd *cobra.Command, reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ", label)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return def
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

// confirm asks a yes/no question and returns true only on an explicit
// "y"/"yes".
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
