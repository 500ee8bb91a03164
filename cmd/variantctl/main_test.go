package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/variantlabs/variant-admin/internal/server"
	"github.com/variantlabs/variant-admin/internal/storage"
)

const testAdminKey = "integration-admin-key"

// newBackend starts an in-memory backend the CLI can talk to.
func newBackend(t *testing.T) (*httptest.Server, storage.StoreSet) {
	t.Helper()
	stores := storage.NewStoreSet(storage.NewMemoryExperimentStore(), storage.NewMemoryStatsStore(), nil)
	handler := server.NewHandler(&server.Config{
		AdminKey:    testAdminKey,
		AllowedApps: []string{"webshop", "mobile"},
		Stores:      stores,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := httptest.NewServer(handler.Mount())
	t.Cleanup(srv.Close)
	return srv, stores
}

// writeConfig points the CLI at the test backend with an isolated
// credential cache.
func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "variant.yaml")
	content := fmt.Sprintf(`log:
  level: error
console:
  base_url: %s
  cache_dir: %s
`, baseURL, filepath.Join(dir, "cache"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := buildRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommandTree(t *testing.T) {
	root := buildRootCmd()
	want := []string{"login", "logout", "apps", "use", "list", "summary",
		"create", "allocate", "pause", "resume", "delete", "reset"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestCLILifecycle(t *testing.T) {
	srv, stores := newBackend(t)
	cfg := writeConfig(t, srv.URL)

	// Commands needing a session fail before login.
	if _, err := execCLI(t, cfg, "list"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("list before login: %v", err)
	}

	// Bad credential is rejected without caching anything.
	if _, err := execCLI(t, cfg, "login", "--password", "wrong"); err == nil {
		t.Fatal("expected login failure with bad credential")
	}
	if _, err := execCLI(t, cfg, "list"); err == nil {
		t.Fatal("bad login must not establish a session")
	}

	out, err := execCLI(t, cfg, "login", "--password", testAdminKey)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out, "webshop") || !strings.Contains(out, "mobile") {
		t.Fatalf("login output missing allowed apps: %q", out)
	}

	// First allowed app becomes the selection.
	out, err = execCLI(t, cfg, "apps")
	if err != nil {
		t.Fatalf("apps failed: %v", err)
	}
	if !strings.Contains(out, "* webshop") {
		t.Fatalf("apps output = %q", out)
	}

	out, err = execCLI(t, cfg, "create", "checkout_test", "--name", "Checkout Test")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.Contains(out, "50/50") {
		t.Fatalf("create output = %q", out)
	}

	out, err = execCLI(t, cfg, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "checkout_test") || !strings.Contains(out, "active") {
		t.Fatalf("list output = %q", out)
	}

	// Feed counters directly into the store: 25% vs 50%.
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := stores.Stats.Record(ctx, "webshop", "checkout_test", "control", storage.EventExposure); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := stores.Stats.Record(ctx, "webshop", "checkout_test", "control", storage.EventConversion); err != nil {
		t.Fatalf("record: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := stores.Stats.Record(ctx, "webshop", "checkout_test", "variant b", storage.EventExposure); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := stores.Stats.Record(ctx, "webshop", "checkout_test", "variant b", storage.EventConversion); err != nil {
		t.Fatalf("record: %v", err)
	}

	out, err = execCLI(t, cfg, "summary", "checkout_test")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !strings.Contains(out, "Winner: variant b (50.00%) over control (25.00%), uplift 100.0%") {
		t.Fatalf("summary output = %q", out)
	}
	if !strings.Contains(out, "Totals: 6 exposures, 2 conversions") {
		t.Fatalf("summary totals = %q", out)
	}

	// Unbalanced splits are refused before any request is sent.
	if _, err = execCLI(t, cfg, "allocate", "checkout_test", "70", "50"); err == nil {
		t.Fatal("expected allocate to refuse a 120% total")
	}

	out, err = execCLI(t, cfg, "allocate", "checkout_test", "70", "30")
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if !strings.Contains(out, "Committed new split") {
		t.Fatalf("allocate output = %q", out)
	}
	out, err = execCLI(t, cfg, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "control=70%") || !strings.Contains(out, "variant b=30%") {
		t.Fatalf("list after allocate = %q", out)
	}

	if _, err = execCLI(t, cfg, "pause", "checkout_test"); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	out, _ = execCLI(t, cfg, "list")
	if !strings.Contains(out, "paused") {
		t.Fatalf("list after pause = %q", out)
	}
	if _, err = execCLI(t, cfg, "resume", "checkout_test"); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	out, err = execCLI(t, cfg, "reset", "checkout_test", "--yes")
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if !strings.Contains(out, "reset") {
		t.Fatalf("reset output = %q", out)
	}
	out, err = execCLI(t, cfg, "summary", "checkout_test")
	if err != nil {
		t.Fatalf("summary after reset failed: %v", err)
	}
	if !strings.Contains(out, "No data yet.") {
		t.Fatalf("summary after reset = %q", out)
	}

	// Destructive commands without --yes read the prompt answer; an
	// empty stdin aborts.
	out, err = execCLI(t, cfg, "delete", "checkout_test")
	if err != nil {
		t.Fatalf("delete prompt failed: %v", err)
	}
	if !strings.Contains(out, "Aborted.") {
		t.Fatalf("delete without confirmation = %q", out)
	}

	if _, err = execCLI(t, cfg, "delete", "checkout_test", "--yes"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	out, _ = execCLI(t, cfg, "list")
	if !strings.Contains(out, "No experiments") {
		t.Fatalf("list after delete = %q", out)
	}

	if _, err = execCLI(t, cfg, "logout"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err = execCLI(t, cfg, "list"); err == nil {
		t.Fatal("list after logout should fail")
	}
}

func TestCLIUseSwitchesApp(t *testing.T) {
	srv, stores := newBackend(t)
	cfg := writeConfig(t, srv.URL)

	if _, err := execCLI(t, cfg, "login", "--password", testAdminKey); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := execCLI(t, cfg, "create", "web_only", "--name", "Web Only"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Experiments are scoped to the application.
	out, err := execCLI(t, cfg, "use", "mobile")
	if err != nil {
		t.Fatalf("use failed: %v", err)
	}
	if !strings.Contains(out, "0 experiments") {
		t.Fatalf("use output = %q", out)
	}
	out, _ = execCLI(t, cfg, "list")
	if strings.Contains(out, "web_only") {
		t.Fatalf("mobile list leaked webshop experiments: %q", out)
	}

	// The selection survives across invocations.
	out, err = execCLI(t, cfg, "apps")
	if err != nil {
		t.Fatalf("apps failed: %v", err)
	}
	if !strings.Contains(out, "* mobile") {
		t.Fatalf("apps output = %q", out)
	}

	if _, err := execCLI(t, cfg, "use", "rogue"); err == nil {
		t.Fatal("expected use to reject an app outside the allowed list")
	}

	list, err := stores.Experiments.List(context.Background(), "webshop")
	if err != nil || len(list) != 1 {
		t.Fatalf("webshop experiments = %v, %v", list, err)
	}
}
