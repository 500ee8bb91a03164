package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/variantlabs/variant-admin/pkg/models"
)

type appKey struct {
	appID string
	key   string
}

// MemoryExperimentStore provides an in-memory ExperimentStore. It is
// the default store for local development and tests.
type MemoryExperimentStore struct {
	mu          sync.RWMutex
	experiments map[appKey]*models.Experiment
	order       []appKey
}

// NewMemoryExperimentStore creates an in-memory experiment store.
func NewMemoryExperimentStore() *MemoryExperimentStore {
	return &MemoryExperimentStore{experiments: make(map[appKey]*models.Experiment)}
}

func (s *MemoryExperimentStore) Create(ctx context.Context, appID string, exp *models.Experiment) error {
	if appID == "" || exp == nil || exp.Key == "" {
		return fmt.Errorf("app id and experiment key are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := appKey{appID, exp.Key}
	if _, exists := s.experiments[id]; exists {
		return ErrAlreadyExists
	}
	clone := *exp
	clone.Variants = exp.CloneVariants()
	s.experiments[id] = &clone
	s.order = append(s.order, id)
	return nil
}

func (s *MemoryExperimentStore) Get(ctx context.Context, appID, key string) (*models.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.experiments[appKey{appID, key}]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *exp
	clone.Variants = exp.CloneVariants()
	return &clone, nil
}

func (s *MemoryExperimentStore) List(ctx context.Context, appID string) ([]models.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Experiment, 0)
	for _, id := range s.order {
		if id.appID != appID {
			continue
		}
		exp := s.experiments[id]
		clone := *exp
		clone.Variants = exp.CloneVariants()
		out = append(out, clone)
	}
	return out, nil
}

func (s *MemoryExperimentStore) Update(ctx context.Context, appID, key string, status models.ExperimentStatus, variants []models.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.experiments[appKey{appID, key}]
	if !ok {
		return ErrNotFound
	}
	exp.Status = status
	exp.Variants = make([]models.Variant, len(variants))
	copy(exp.Variants, variants)
	return nil
}

func (s *MemoryExperimentStore) Delete(ctx context.Context, appID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := appKey{appID, key}
	if _, ok := s.experiments[id]; !ok {
		return ErrNotFound
	}
	delete(s.experiments, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

type counters struct {
	exposures   uint64
	conversions uint64
}

// MemoryStatsStore provides an in-memory StatsStore.
type MemoryStatsStore struct {
	mu    sync.RWMutex
	stats map[appKey]map[string]*counters
	order map[appKey][]string
}

// NewMemoryStatsStore creates an in-memory stats store.
func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		stats: make(map[appKey]map[string]*counters),
		order: make(map[appKey][]string),
	}
}

func (s *MemoryStatsStore) Record(ctx context.Context, appID, key, variant string, event EventType) error {
	if appID == "" || key == "" || variant == "" {
		return fmt.Errorf("app id, experiment key, and variant are required")
	}
	if !ValidEventType(event) {
		return fmt.Errorf("invalid event type %q", event)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := appKey{appID, key}
	byVariant, ok := s.stats[id]
	if !ok {
		byVariant = make(map[string]*counters)
		s.stats[id] = byVariant
	}
	c, ok := byVariant[variant]
	if !ok {
		c = &counters{}
		byVariant[variant] = c
		s.order[id] = append(s.order[id], variant)
	}
	switch event {
	case EventExposure:
		c.exposures++
	case EventConversion:
		c.conversions++
	}
	return nil
}

func (s *MemoryStatsStore) Summary(ctx context.Context, appID, key string) (*models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id := appKey{appID, key}
	summary := &models.Summary{AggregatedVariants: []models.RawVariantRecord{}}
	for _, variant := range s.order[id] {
		c := s.stats[id][variant]
		summary.AggregatedVariants = append(summary.AggregatedVariants, models.RawVariantRecord{
			ID:          variant,
			Count:       c.exposures,
			Conversions: c.conversions,
		})
	}
	return summary, nil
}

func (s *MemoryStatsStore) Reset(ctx context.Context, appID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := appKey{appID, key}
	delete(s.stats, id)
	delete(s.order, id)
	return nil
}
