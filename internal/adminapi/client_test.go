package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/variantlabs/variant-admin/pkg/models"
)

func TestLoginSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/admin/login" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Password != "sk-admin-1" {
			t.Fatalf("password=%q", req.Password)
		}
		json.NewEncoder(w).Encode(models.LoginResponse{AllowedApps: []string{"app1", "app2"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	apps, err := client.Login(context.Background(), "sk-admin-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(apps) != 2 || apps[0] != "app1" {
		t.Fatalf("apps=%v", apps)
	}
}

func TestLoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	if _, err := client.Login(context.Background(), "wrong"); !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("err=%v, want ErrAuthRejected", err)
	}
}

func TestAuthenticatedCallCarriesHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Admin-Key"); got != "sk-admin-1" {
			t.Fatalf("X-Admin-Key=%q", got)
		}
		if got := r.Header.Get("X-App-ID"); got != "app1" {
			t.Fatalf("X-App-ID=%q", got)
		}
		json.NewEncoder(w).Encode([]models.Experiment{{Key: "exp1", Name: "Exp 1"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	client.SetCredential("sk-admin-1")
	client.SetAppID("app1")

	experiments, err := client.ListExperiments(context.Background())
	if err != nil {
		t.Fatalf("ListExperiments: %v", err)
	}
	if len(experiments) != 1 || experiments[0].Key != "exp1" {
		t.Fatalf("experiments=%v", experiments)
	}
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		client := NewClient(server.URL, Options{})

		_, err := client.GetSummary(context.Background(), "exp1")
		if !IsUnauthorized(err) {
			t.Fatalf("status %d: err=%v, want ErrUnauthorized", status, err)
		}
		server.Close()
	}
}

func TestNonOKStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	_, err := client.ListExperiments(context.Background())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err=%v, want StatusError", err)
	}
	if statusErr.Status != http.StatusInternalServerError {
		t.Fatalf("Status=%d", statusErr.Status)
	}
}

func TestGetSummaryDecodesRawRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/summary/checkout-cta" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		w.Write([]byte(`{"aggregated_variants":[{"_id":"control","count":100,"conversions":10},{"variant_name":"variant_b","exposures":50,"conversions":20}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	summary, err := client.GetSummary(context.Background(), "checkout-cta")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if len(summary.AggregatedVariants) != 2 {
		t.Fatalf("records=%v", summary.AggregatedVariants)
	}
	if summary.AggregatedVariants[0].ID != "control" || summary.AggregatedVariants[0].Count != 100 {
		t.Fatalf("record[0]=%+v", summary.AggregatedVariants[0])
	}
	if summary.AggregatedVariants[1].VariantName != "variant_b" || summary.AggregatedVariants[1].Exposures != 50 {
		t.Fatalf("record[1]=%+v", summary.AggregatedVariants[1])
	}
}

func TestMutationEndpoints(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	ctx := context.Background()

	if err := client.CreateExperiment(ctx, models.CreateExperimentRequest{AppID: "app1", Key: "k", Name: "n"}); err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/experiments" {
		t.Fatalf("create hit %s %s", gotMethod, gotPath)
	}

	if err := client.UpdateExperiment(ctx, "k", models.UpdateExperimentRequest{Status: models.StatusPaused}); err != nil {
		t.Fatalf("UpdateExperiment: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/api/admin/experiments/k" {
		t.Fatalf("update hit %s %s", gotMethod, gotPath)
	}

	if err := client.DeleteExperiment(ctx, "k"); err != nil {
		t.Fatalf("DeleteExperiment: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/admin/experiments/k" {
		t.Fatalf("delete hit %s %s", gotMethod, gotPath)
	}

	if err := client.ResetStats(ctx, "k"); err != nil {
		t.Fatalf("ResetStats: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/admin/stats/k" {
		t.Fatalf("reset hit %s %s", gotMethod, gotPath)
	}
}

func TestKeyRequired(t *testing.T) {
	client := NewClient("http://localhost:0", Options{})
	if _, err := client.GetSummary(context.Background(), " "); err == nil {
		t.Fatalf("expected error for blank key")
	}
	if err := client.DeleteExperiment(context.Background(), ""); err == nil {
		t.Fatalf("expected error for blank key")
	}
}
