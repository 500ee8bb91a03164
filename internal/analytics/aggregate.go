// Package analytics turns raw summary snapshots into ranked conversion
// statistics. Everything in this package is pure: inputs are never
// mutated and no I/O is performed.
package analytics

import (
	"math"
	"sort"

	"github.com/variantlabs/variant-admin/pkg/models"
)

// RateRow is one variant's normalized summary line.
type RateRow struct {
	Name        string  `json:"name"`
	Exposures   uint64  `json:"exposures"`
	Conversions uint64  `json:"conversions"`
	// Rate is the conversion rate as a percentage, rounded to two
	// decimal places. Exactly 0 when the variant has no exposures.
	Rate float64 `json:"rate"`
}

// Normalize resolves the aliased wire fields of a raw record into a
// rate row. Name precedence: _id, then variant_name, then "Unknown".
// Exposure precedence: count, then exposures, then 0.
func Normalize(rec models.RawVariantRecord) RateRow {
	row := RateRow{Name: "Unknown"}
	if rec.ID != "" {
		row.Name = rec.ID
	} else if rec.VariantName != "" {
		row.Name = rec.VariantName
	}

	row.Exposures = rec.Count
	if row.Exposures == 0 {
		row.Exposures = rec.Exposures
	}
	row.Conversions = rec.Conversions

	if row.Exposures > 0 {
		row.Rate = round2(float64(row.Conversions) / float64(row.Exposures) * 100)
	}
	return row
}

// Aggregate converts a summary snapshot into rate rows sorted by rate,
// highest first. The sort is stable, so equal rates keep encounter
// order. A nil or empty snapshot yields an empty result; that is the
// normal "no data yet" outcome, not an error.
func Aggregate(summary *models.Summary) []RateRow {
	if summary == nil || len(summary.AggregatedVariants) == 0 {
		return nil
	}
	rows := make([]RateRow, 0, len(summary.AggregatedVariants))
	for _, rec := range summary.AggregatedVariants {
		rows = append(rows, Normalize(rec))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Rate > rows[j].Rate
	})
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
