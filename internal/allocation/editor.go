// Package allocation manages an in-memory edit session over an
// experiment's traffic split. The editor gates commits on the split
// summing to exactly 100; it never rebalances other variants on the
// operator's behalf.
package allocation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/variantlabs/variant-admin/pkg/models"
)

// ErrUnbalanced is returned when a commit is attempted while the
// traffic shares do not sum to exactly 100.
var ErrUnbalanced = errors.New("traffic shares must sum to exactly 100")

// Editor holds a working copy of an experiment's status and variants.
// Mutations touch only the working copy; the source experiment is
// never modified.
type Editor struct {
	status   models.ExperimentStatus
	variants []models.Variant
}

// NewEditor starts an edit session from the experiment's current state.
func NewEditor(exp *models.Experiment) *Editor {
	status := exp.Status
	if !models.ValidStatus(status) {
		status = models.StatusActive
	}
	return &Editor{
		status:   status,
		variants: exp.CloneVariants(),
	}
}

// SetShare parses raw as an integer and assigns it to the variant at
// index. Unparseable input coerces to 0 rather than failing, and the
// value is clamped to [0,100] the way the input field would clamp it.
// Only the targeted variant changes.
func (e *Editor) SetShare(index int, raw string) error {
	if index < 0 || index >= len(e.variants) {
		return fmt.Errorf("variant index %d out of range [0,%d)", index, len(e.variants))
	}
	share, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		share = 0
	}
	if share < 0 {
		share = 0
	} else if share > 100 {
		share = 100
	}
	e.variants[index].TrafficPercentage = share
	return nil
}

// SetStatus changes the working copy's lifecycle status.
func (e *Editor) SetStatus(status models.ExperimentStatus) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	e.status = status
	return nil
}

// Total recomputes the sum of the working-copy shares. It is computed
// fresh on every call; there is no cached running total to drift.
func (e *Editor) Total() int {
	total := 0
	for _, v := range e.variants {
		total += v.TrafficPercentage
	}
	return total
}

// CanCommit reports whether the split is committable: the total must
// equal 100 exactly, with no tolerance band. Individual 0% shares are
// legal.
func (e *Editor) CanCommit() bool {
	return e.Total() == 100
}

// Status returns the working copy's status.
func (e *Editor) Status() models.ExperimentStatus {
	return e.status
}

// Variants returns a copy of the working-copy variant list.
func (e *Editor) Variants() []models.Variant {
	out := make([]models.Variant, len(e.variants))
	copy(out, e.variants)
	return out
}

// Changes assembles the update request, or ErrUnbalanced when the
// split does not sum to 100. Callers must not send an update when this
// fails; no request belongs on the wire with an unbalanced split.
func (e *Editor) Changes() (models.UpdateExperimentRequest, error) {
	if !e.CanCommit() {
		return models.UpdateExperimentRequest{}, fmt.Errorf("%w (total is %d)", ErrUnbalanced, e.Total())
	}
	return models.UpdateExperimentRequest{
		Status:   e.status,
		Variants: e.Variants(),
	}, nil
}
