// Package adminapi is the REST client for the Variant admin backend.
//
// Every authenticated call carries the shared credential in X-Admin-Key
// and the selected application id in X-App-ID. The client performs no
// retries: a failed call surfaces immediately and recovery is always a
// manual re-trigger by the operator.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/variantlabs/variant-admin/internal/observability"
	"github.com/variantlabs/variant-admin/pkg/models"
)

// Client talks to the backend's admin endpoints. It is not safe for
// concurrent use; the session controller owns it and serializes calls.
type Client struct {
	baseURL    string
	credential string
	appID      string
	httpClient *http.Client
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// Options configures optional client collaborators.
type Options struct {
	Timeout time.Duration
	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// NewClient creates a client for the given backend base URL.
func NewClient(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Output: io.Discard})
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// SetCredential sets the admin key attached to authenticated calls.
func (c *Client) SetCredential(key string) { c.credential = key }

// SetAppID sets the application id attached to authenticated calls.
func (c *Client) SetAppID(appID string) { c.appID = appID }

// Login exchanges the password for the permitted-application list.
// A non-200 response is ErrAuthRejected; the credential is not stored
// on the client, the caller decides that after a success.
func (c *Client) Login(ctx context.Context, password string) ([]string, error) {
	body, err := json.Marshal(models.LoginRequest{Password: password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe("login", start, err, resp)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrAuthRejected
	}

	var out models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("login: decode response: %w", err)
	}
	return out.AllowedApps, nil
}

// ListExperiments fetches the experiments visible under the selected
// application id.
func (c *Client) ListExperiments(ctx context.Context) ([]models.Experiment, error) {
	var out []models.Experiment
	if err := c.do(ctx, "list", http.MethodGet, "/api/admin/experiments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSummary fetches the summary snapshot for an experiment key.
func (c *Client) GetSummary(ctx context.Context, key string) (*models.Summary, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("experiment key is required")
	}
	var out models.Summary
	if err := c.do(ctx, "summary", http.MethodGet, "/api/admin/summary/"+url.PathEscape(key), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateExperiment creates a new experiment.
func (c *Client) CreateExperiment(ctx context.Context, req models.CreateExperimentRequest) error {
	return c.do(ctx, "create", http.MethodPost, "/api/experiments", req, nil)
}

// UpdateExperiment commits a status and variant-set change. Callers
// must have validated the traffic split; the backend does not.
func (c *Client) UpdateExperiment(ctx context.Context, key string, req models.UpdateExperimentRequest) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("experiment key is required")
	}
	return c.do(ctx, "update", http.MethodPut, "/api/admin/experiments/"+url.PathEscape(key), req, nil)
}

// DeleteExperiment removes the experiment record. Irreversible.
func (c *Client) DeleteExperiment(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("experiment key is required")
	}
	return c.do(ctx, "delete", http.MethodDelete, "/api/admin/experiments/"+url.PathEscape(key), nil, nil)
}

// ResetStats wipes the counters for an experiment. Irreversible.
func (c *Client) ResetStats(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("experiment key is required")
	}
	return c.do(ctx, "reset", http.MethodDelete, "/api/admin/stats/"+url.PathEscape(key), nil, nil)
}

// do issues one authenticated request. A 401 or 403 maps to
// ErrUnauthorized regardless of endpoint so the controller can run its
// session-expiry path.
func (c *Client) do(ctx context.Context, operation, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", c.credential)
	req.Header.Set("X-App-ID", c.appID)

	ctx = context.WithValue(ctx, observability.RequestIDKey, uuid.NewString())
	ctx = context.WithValue(ctx, observability.AppIDKey, c.appID)
	c.logger.Debug(ctx, "admin api call", "operation", operation, "method", method, "path", path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(operation, start, err, resp)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Warn(ctx, "admin api call unauthorized", "operation", operation, "status", resp.StatusCode)
		return fmt.Errorf("%s: %w", operation, ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Operation: operation, Status: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

func (c *Client) observe(operation string, start time.Time, err error, resp *http.Response) {
	if c.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		status = "unauthorized"
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		status = "error"
	}
	c.metrics.AdminCallCounter.WithLabelValues(operation, status).Inc()
	c.metrics.AdminCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
