// Package models provides domain types for the Variant admin system.
package models

import "strings"

// ExperimentStatus identifies the lifecycle state of an experiment.
type ExperimentStatus string

const (
	StatusActive ExperimentStatus = "active"
	StatusPaused ExperimentStatus = "paused"
)

// ValidStatus reports whether s is a recognized experiment status.
func ValidStatus(s ExperimentStatus) bool {
	return s == StatusActive || s == StatusPaused
}

// Variant is one arm of an experiment.
type Variant struct {
	// Name is the display label shown to operators.
	Name string `json:"name"`

	// Value is the machine-readable discriminator the tracking client
	// tags events with. Defaults to the lower-cased name but can be
	// edited independently.
	Value string `json:"value"`

	// TrafficPercentage is the intended share of new assignments routed
	// to this variant, an integer in [0,100]. The sum across an
	// experiment's variants must be exactly 100 before an update is
	// committed; that invariant is enforced by the allocation editor,
	// not by the wire types.
	TrafficPercentage int `json:"traffic_percentage"`
}

// NewVariant builds a variant with the default tracking value derived
// from the name.
func NewVariant(name string, traffic int) Variant {
	return Variant{
		Name:              name,
		Value:             strings.ToLower(name),
		TrafficPercentage: traffic,
	}
}

// Experiment is a named, keyed A/B test.
type Experiment struct {
	// Key is the stable unique identifier, immutable after creation.
	// Summary and mutation endpoints are addressed by key.
	Key string `json:"key"`

	// Name is the display label.
	Name string `json:"name"`

	Status ExperimentStatus `json:"status"`

	// Variants are ordered for display only; order carries no
	// allocation semantics.
	Variants []Variant `json:"variants"`
}

// TrafficTotal returns the sum of the experiment's variant shares.
func (e *Experiment) TrafficTotal() int {
	total := 0
	for _, v := range e.Variants {
		total += v.TrafficPercentage
	}
	return total
}

// CloneVariants returns a deep copy of the variant list, suitable for an
// edit session's working copy.
func (e *Experiment) CloneVariants() []Variant {
	if len(e.Variants) == 0 {
		return nil
	}
	out := make([]Variant, len(e.Variants))
	copy(out, e.Variants)
	return out
}

// SeedVariants returns the default two-variant 50/50 split used when an
// experiment is created.
func SeedVariants(nameA, nameB string) []Variant {
	return []Variant{
		NewVariant(nameA, 50),
		NewVariant(nameB, 50),
	}
}

// RawVariantRecord is the per-variant element of a summary snapshot as
// the backend emits it. Historical producers disagree on field names:
// the variant name arrives as either `_id` or `variant_name`, and the
// exposure counter as either `count` or `exposures`. The record keeps
// both spellings; analytics.Normalize resolves the precedence in one
// place rather than at each access site.
type RawVariantRecord struct {
	ID          string `json:"_id,omitempty"`
	VariantName string `json:"variant_name,omitempty"`
	Count       uint64 `json:"count,omitempty"`
	Exposures   uint64 `json:"exposures,omitempty"`
	Conversions uint64 `json:"conversions,omitempty"`
}

// Summary is a read-only snapshot of per-variant counters for one
// experiment. It is refetched wholesale on every view and fully
// replaces the previous snapshot; there is no incremental merge.
type Summary struct {
	AggregatedVariants []RawVariantRecord `json:"aggregated_variants"`
}

// LoginRequest is the body of POST /api/admin/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is the success body of POST /api/admin/login.
type LoginResponse struct {
	AllowedApps []string `json:"allowed_apps"`
}

// CreateExperimentRequest is the body of POST /api/experiments.
type CreateExperimentRequest struct {
	AppID    string    `json:"appId"`
	Name     string    `json:"name"`
	Key      string    `json:"key"`
	Variants []Variant `json:"variants"`
}

// UpdateExperimentRequest is the body of PUT /api/admin/experiments/{key}.
type UpdateExperimentRequest struct {
	Status   ExperimentStatus `json:"status"`
	Variants []Variant        `json:"variants"`
}
