// Package session orchestrates the console's view of the backend:
// which application and experiment are current, what the loaded
// experiment list and summary snapshot are, and whether a credential
// is live. All shared mutable state lives here; the analytics and
// allocation packages stay pure.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/variantlabs/variant-admin/internal/adminapi"
	"github.com/variantlabs/variant-admin/internal/analytics"
	"github.com/variantlabs/variant-admin/internal/credstore"
	"github.com/variantlabs/variant-admin/internal/observability"
	"github.com/variantlabs/variant-admin/pkg/models"
)

// ErrSessionExpired is returned when an authenticated call came back
// 401/403. The controller has already logged out locally by the time
// callers see it.
var ErrSessionExpired = errors.New("session expired")

// ErrNotAuthenticated is returned for operations that need a live
// credential.
var ErrNotAuthenticated = errors.New("not authenticated")

// SummaryErrorMessage is the generic message surfaced when a summary
// fetch fails while the session is still authenticated.
const SummaryErrorMessage = "Connection failed."

// Backend is the slice of the admin API the controller drives.
// *adminapi.Client satisfies it.
type Backend interface {
	Login(ctx context.Context, password string) ([]string, error)
	ListExperiments(ctx context.Context) ([]models.Experiment, error)
	GetSummary(ctx context.Context, key string) (*models.Summary, error)
	CreateExperiment(ctx context.Context, req models.CreateExperimentRequest) error
	UpdateExperiment(ctx context.Context, key string, req models.UpdateExperimentRequest) error
	DeleteExperiment(ctx context.Context, key string) error
	ResetStats(ctx context.Context, key string) error
	SetCredential(key string)
	SetAppID(appID string)
}

// Controller owns the session state. It is single-operator by design:
// one credential, one selected application id at a time. Methods are
// meant to be called from one goroutine; response fencing exists
// because a fetch dispatched before a selection change may still
// complete after it.
type Controller struct {
	backend Backend
	cache   *credstore.Store
	logger  *observability.Logger
	metrics *observability.Metrics

	state         State
	authenticated bool
	appID         string
	allowedApps   []string
	experiments   []models.Experiment
	selectedKey   string
	summary       *models.Summary
	summaryErr    string

	// generation fences list/summary responses: it is bumped whenever
	// the app id or experiment selection moves, and a response tagged
	// with a stale generation is discarded without touching state.
	generation uint64
}

// NewController creates a controller over the given backend and cache.
func NewController(backend Backend, cache *credstore.Store, logger *observability.Logger, metrics *observability.Metrics) (*Controller, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("credential cache is required")
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "error"})
	}

	appID, err := cache.AppID()
	if err != nil {
		return nil, fmt.Errorf("load cached app id: %w", err)
	}

	ctl := &Controller{
		backend: backend,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		state:   StateUnauthenticated,
		appID:   appID,
	}
	backend.SetAppID(appID)
	return ctl, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Authenticated reports whether a credential is live.
func (c *Controller) Authenticated() bool { return c.authenticated }

// AppID returns the selected application id.
func (c *Controller) AppID() string { return c.appID }

// AllowedApps returns the permitted application ids from the last
// successful login.
func (c *Controller) AllowedApps() []string {
	out := make([]string, len(c.allowedApps))
	copy(out, c.allowedApps)
	return out
}

// Experiments returns the loaded experiment list.
func (c *Controller) Experiments() []models.Experiment {
	out := make([]models.Experiment, len(c.experiments))
	copy(out, c.experiments)
	return out
}

// SelectedKey returns the selected experiment key, or "" for none.
func (c *Controller) SelectedKey() string { return c.selectedKey }

// Current returns the selected experiment, or nil when none is
// selected.
func (c *Controller) Current() *models.Experiment {
	for i := range c.experiments {
		if c.experiments[i].Key == c.selectedKey {
			exp := c.experiments[i]
			return &exp
		}
	}
	return nil
}

// Summary returns the live snapshot, or nil when none is loaded.
func (c *Controller) Summary() *models.Summary { return c.summary }

// SummaryError returns the connection-error message from the last
// failed summary fetch, or "".
func (c *Controller) SummaryError() string { return c.summaryErr }

// Rows derives ranked rate rows from the live snapshot.
func (c *Controller) Rows() []analytics.RateRow {
	return analytics.Aggregate(c.summary)
}

// Restore revives a cached session. With no cached credential it is a
// no-op. A cached credential is re-validated against the backend: a
// rejection follows the session-expiry path (cache cleared), while a
// transport failure leaves the cache alone so a later retry can
// succeed.
func (c *Controller) Restore(ctx context.Context) error {
	credential, err := c.cache.Credential()
	if err != nil {
		return fmt.Errorf("load cached credential: %w", err)
	}
	if credential == "" {
		return nil
	}

	apps, err := c.backend.Login(ctx, credential)
	if err != nil {
		if errors.Is(err, adminapi.ErrAuthRejected) {
			c.logger.Warn(ctx, "cached credential rejected, clearing session cache")
			c.forceLogout(ctx)
			return ErrSessionExpired
		}
		return fmt.Errorf("revalidate cached credential: %w", err)
	}

	return c.completeLogin(ctx, credential, apps)
}

// Login authenticates with the given password. On success the
// credential and allowed-apps list are cached, the selected app id is
// corrected if it is no longer permitted, and the experiment list is
// fetched.
func (c *Controller) Login(ctx context.Context, password string) error {
	apps, err := c.backend.Login(ctx, password)
	if err != nil {
		// AuthRejected leaves session state untouched.
		return err
	}
	return c.completeLogin(ctx, password, apps)
}

func (c *Controller) completeLogin(ctx context.Context, credential string, apps []string) error {
	if err := c.cache.SaveCredential(credential); err != nil {
		return fmt.Errorf("cache credential: %w", err)
	}
	if err := c.cache.SaveAllowedApps(apps); err != nil {
		return fmt.Errorf("cache allowed apps: %w", err)
	}

	c.allowedApps = apps
	c.authenticated = true
	c.backend.SetCredential(credential)

	// The permitted set replaces whatever was cached; if the current
	// selection fell out of it, switch to the first member.
	if len(apps) > 0 && !contains(apps, c.appID) {
		if err := c.setAppID(ctx, apps[0]); err != nil {
			return err
		}
	}

	c.logger.Info(ctx, "authenticated", "allowed_apps", len(apps), "app_id", c.appID)
	return c.RefreshExperiments(ctx)
}

// Logout drops the live session and the cached credential.
func (c *Controller) Logout(ctx context.Context) {
	c.forceLogout(ctx)
}

// SelectApp switches the selected application id. The experiment list
// and selection are cleared and refetched for the new id.
func (c *Controller) SelectApp(ctx context.Context, appID string) error {
	if !c.authenticated {
		return ErrNotAuthenticated
	}
	if strings.TrimSpace(appID) == "" {
		return fmt.Errorf("app id is required")
	}
	if appID == c.appID {
		return nil
	}
	if err := c.setAppID(ctx, appID); err != nil {
		return err
	}
	return c.RefreshExperiments(ctx)
}

func (c *Controller) setAppID(ctx context.Context, appID string) error {
	c.generation++
	c.appID = appID
	c.experiments = nil
	c.selectedKey = ""
	c.summary = nil
	c.summaryErr = ""
	c.backend.SetAppID(appID)
	if err := c.cache.SaveAppID(appID); err != nil {
		return fmt.Errorf("cache app id: %w", err)
	}
	c.logger.Info(ctx, "app selected", "app_id", appID)
	return nil
}

// RefreshExperiments refetches the experiment list and reconciles the
// selection: kept when still present, otherwise first-or-none. The
// selection's summary is then refetched.
func (c *Controller) RefreshExperiments(ctx context.Context) error {
	if !c.authenticated {
		return ErrNotAuthenticated
	}

	gen := c.generation
	c.state = StateExperimentsLoading

	experiments, err := c.backend.ListExperiments(ctx)
	if c.generation != gen {
		c.logger.Debug(ctx, "discarding stale experiment list", "generation", gen)
		return nil
	}
	if err != nil {
		if adminapi.IsUnauthorized(err) {
			c.forceLogout(ctx)
			return ErrSessionExpired
		}
		// A failed list fetch degrades to an empty list rather than
		// surfacing an error.
		c.logger.Warn(ctx, "experiment list fetch failed", "error", err)
		experiments = nil
	}

	c.experiments = experiments
	c.state = StateExperimentsLoaded
	if c.metrics != nil {
		c.metrics.ExperimentsGauge.WithLabelValues(c.appID).Set(float64(len(experiments)))
	}

	// Selection invariant: the selected key must exist in the loaded
	// list.
	if c.selectedKey == "" || !hasKey(experiments, c.selectedKey) {
		if len(experiments) > 0 {
			c.selectedKey = experiments[0].Key
		} else {
			c.selectedKey = ""
		}
	}

	return c.RefreshSummary(ctx)
}

// SelectExperiment changes the experiment selection. An empty key
// clears the selection and the snapshot. A key not in the loaded list
// is rejected.
func (c *Controller) SelectExperiment(ctx context.Context, key string) error {
	if !c.authenticated {
		return ErrNotAuthenticated
	}
	if key != "" && !hasKey(c.experiments, key) {
		return fmt.Errorf("experiment %q is not in the loaded list", key)
	}
	if key == c.selectedKey {
		return nil
	}
	c.generation++
	c.selectedKey = key
	return c.RefreshSummary(ctx)
}

// RefreshSummary refetches the snapshot for the current selection, or
// clears it when nothing is selected.
func (c *Controller) RefreshSummary(ctx context.Context) error {
	if !c.authenticated {
		return ErrNotAuthenticated
	}

	if c.selectedKey == "" {
		c.summary = nil
		c.summaryErr = ""
		c.state = StateExperimentsLoaded
		return nil
	}

	gen := c.generation
	c.state = StateSummaryLoading

	ctx = context.WithValue(ctx, observability.ExperimentKey, c.selectedKey)
	summary, err := c.backend.GetSummary(ctx, c.selectedKey)
	if c.generation != gen {
		c.logger.Debug(ctx, "discarding stale summary", "generation", gen)
		return nil
	}
	if err != nil {
		if adminapi.IsUnauthorized(err) {
			c.forceLogout(ctx)
			return ErrSessionExpired
		}
		// Surface a generic connection error, but only while still
		// authenticated so the logout transition never flashes one.
		c.summary = nil
		c.summaryErr = SummaryErrorMessage
		c.state = StateSummaryError
		c.logger.Warn(ctx, "summary fetch failed", "error", err)
		return nil
	}

	c.summary = summary
	c.summaryErr = ""
	c.state = StateSummaryLoaded
	return nil
}

// CreateExperiment creates an experiment seeded with a 50/50 split
// and refetches the list.
func (c *Controller) CreateExperiment(ctx context.Context, name, key, variantA, variantB string) error {
	if !c.authenticated {
		return ErrNotAuthenticated
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(key) == "" {
		return fmt.Errorf("experiment name and key are required")
	}

	req := models.CreateExperimentRequest{
		AppID:    c.appID,
		Name:     name,
		Key:      key,
		Variants: models.SeedVariants(variantA, variantB),
	}
	if err := c.backend.CreateExperiment(ctx, req); err != nil {
		if adminapi.IsUnauthorized(err) {
			c.forceLogout(ctx)
			return ErrSessionExpired
		}
		return err
	}
	c.logger.Info(ctx, "experiment created", "key", key)
	return c.RefreshExperiments(ctx)
}

// UpdateExperiment commits an update request -- callers obtain it from
// a validated allocation editor -- and refetches the list.
func (c *Controller) UpdateExperiment(ctx context.Context, req models.UpdateExperimentRequest) error {
	if !c.authenticated {
		return ErrNotAuthenticated
	}
	if c.selectedKey == "" {
		return fmt.Errorf("no experiment selected")
	}
	if err := c.backend.UpdateExperiment(ctx, c.selectedKey, req); err != nil {
		if adminapi.IsUnauthorized(err) {
			c.forceLogout(ctx)
			return ErrSessionExpired
		}
		return err
	}
	c.logger.Info(ctx, "experiment updated", "key", c.selectedKey, "status", string(req.Status))
	return c.RefreshExperiments(ctx)
}

// DeleteExperiment removes the selected experiment and refetches the
// list. The confirmation prompt is the caller's responsibility.
func (c *Controller) DeleteExperiment(ctx context.Context) error {
	if !c.authenticated {
		return ErrNotAuthenticated
	}
	if c.selectedKey == "" {
		return fmt.Errorf("no experiment selected")
	}
	key := c.selectedKey
	if err := c.backend.DeleteExperiment(ctx, key); err != nil {
		if adminapi.IsUnauthorized(err) {
			c.forceLogout(ctx)
			return ErrSessionExpired
		}
		return err
	}
	c.logger.Info(ctx, "experiment deleted", "key", key)
	c.generation++
	c.selectedKey = ""
	c.summary = nil
	c.summaryErr = ""
	return c.RefreshExperiments(ctx)
}

// ResetStats wipes the selected experiment's counters and refetches
// its summary. The confirmation prompt is the caller's responsibility.
func (c *Controller) ResetStats(ctx context.Context) error {
	if !c.authenticated {
		return ErrNotAuthenticated
	}
	if c.selectedKey == "" {
		return fmt.Errorf("no experiment selected")
	}
	if err := c.backend.ResetStats(ctx, c.selectedKey); err != nil {
		if adminapi.IsUnauthorized(err) {
			c.forceLogout(ctx)
			return ErrSessionExpired
		}
		return err
	}
	c.logger.Info(ctx, "experiment stats reset", "key", c.selectedKey)
	return c.RefreshSummary(ctx)
}

// forceLogout clears the credential and allowed-apps cache and all
// in-memory session state. Used for explicit logout and for 401/403
// session expiry.
func (c *Controller) forceLogout(ctx context.Context) {
	if err := c.cache.ClearSession(); err != nil {
		c.logger.Warn(ctx, "clearing session cache failed", "error", err)
	}
	c.generation++
	c.authenticated = false
	c.allowedApps = nil
	c.experiments = nil
	c.selectedKey = ""
	c.summary = nil
	c.summaryErr = ""
	c.state = StateUnauthenticated
	c.backend.SetCredential("")
	c.logger.Info(ctx, "logged out")
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func hasKey(experiments []models.Experiment, key string) bool {
	for _, exp := range experiments {
		if exp.Key == key {
			return true
		}
	}
	return false
}
