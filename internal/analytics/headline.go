package analytics

import "math"

// Headline holds the winner/loser comparison derived from ranked rows.
type Headline struct {
	Winner RateRow `json:"winner"`
	Loser  RateRow `json:"loser"`

	// UpliftPct is the winner's relative improvement over the loser,
	// rounded to one decimal place.
	UpliftPct float64 `json:"uplift_pct"`
}

// Totals sums counters across all rows, independent of row count.
type Totals struct {
	Exposures   uint64 `json:"exposures"`
	Conversions uint64 `json:"conversions"`
}

// ComputeHeadline derives winner, loser, and uplift from rows ranked by
// Aggregate. With fewer than two rows there is nothing to compare and
// ok is false. With more than two rows the middle rows are ignored;
// only the best and worst performers feed the uplift figure.
func ComputeHeadline(rows []RateRow) (Headline, bool) {
	if len(rows) < 2 {
		return Headline{}, false
	}
	winner := rows[0]
	loser := rows[len(rows)-1]

	// When the loser converted nothing the relative uplift is
	// undefined; the product has always reported the constant 100
	// here and dashboards depend on it. Do not change the constant
	// without versioning the API.
	uplift := 100.0
	if loser.Rate > 0 {
		uplift = round1((winner.Rate - loser.Rate) / loser.Rate * 100)
	}

	return Headline{Winner: winner, Loser: loser, UpliftPct: uplift}, true
}

// ComputeTotals sums exposures and conversions across rows.
func ComputeTotals(rows []RateRow) Totals {
	var t Totals
	for _, row := range rows {
		t.Exposures += row.Exposures
		t.Conversions += row.Conversions
	}
	return t
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
