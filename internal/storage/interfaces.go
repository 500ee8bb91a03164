// Package storage persists experiments and per-variant event counters
// for the reference backend. Stores are scoped by application id:
// every operation names the app an experiment belongs to, and keys are
// unique only within an app.
package storage

import (
	"context"
	"errors"

	"github.com/variantlabs/variant-admin/pkg/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// EventType discriminates the two tracked counter kinds.
type EventType string

const (
	EventExposure   EventType = "exposure"
	EventConversion EventType = "conversion"
)

// ValidEventType reports whether t is a recognized event type.
func ValidEventType(t EventType) bool {
	return t == EventExposure || t == EventConversion
}

// ExperimentStore persists experiment records.
type ExperimentStore interface {
	Create(ctx context.Context, appID string, exp *models.Experiment) error
	Get(ctx context.Context, appID, key string) (*models.Experiment, error)
	List(ctx context.Context, appID string) ([]models.Experiment, error)
	Update(ctx context.Context, appID, key string, status models.ExperimentStatus, variants []models.Variant) error
	Delete(ctx context.Context, appID, key string) error
}

// StatsStore persists per-variant exposure and conversion counters.
type StatsStore interface {
	Record(ctx context.Context, appID, key, variant string, event EventType) error
	Summary(ctx context.Context, appID, key string) (*models.Summary, error)
	Reset(ctx context.Context, appID, key string) error
}

// StoreSet groups the backend's storage dependencies.
type StoreSet struct {
	Experiments ExperimentStore
	Stats       StatsStore
	closer      func() error
}

// NewStoreSet builds a store set with an optional close function.
func NewStoreSet(experiments ExperimentStore, stats StatsStore, closer func() error) StoreSet {
	return StoreSet{Experiments: experiments, Stats: stats, closer: closer}
}

// Close closes any underlying resources.
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
