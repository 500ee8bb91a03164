// Package main provides the variantctl admin console.
//
// handlers_experiments.go contains the handlers for experiment
// listing, summaries, and mutations.
package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/variantlabs/variant-admin/internal/allocation"
	"github.com/variantlabs/variant-admin/internal/analytics"
	"github.com/variantlabs/variant-admin/pkg/models"
)

func runList(cmd *cobra.Command, jsonOut bool) error {
	ctl, err := requireSession(cmd)
	if err != nil {
		return err
	}

	experiments := ctl.Experiments()
	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(experiments)
	}

	out := cmd.OutOrStdout()
	if len(experiments) == 0 {
		fmt.Fprintf(out, "No experiments in application %s.\n", ctl.AppID())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tSTATUS\tVARIANTS\tTRAFFIC")
	for _, exp := range experiments {
		shares := make([]string, len(exp.Variants))
		for i, v := range exp.Variants {
			shares[i] = fmt.Sprintf("%s=%d%%", v.Value, v.TrafficPercentage)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			exp.Key, exp.Name, exp.Status, len(exp.Variants), strings.Join(shares, " "))
	}
	return w.Flush()
}

// summaryReport is the JSON shape of the summary command.
type summaryReport struct {
	Experiment string              `json:"experiment"`
	Rows       []analytics.RateRow `json:"rows"`
	Totals     analytics.Totals    `json:"totals"`
	Headline   *analytics.Headline `json:"headline,omitempty"`
}

func runSummary(cmd *cobra.Command, key string, jsonOut bool) error {
	ctl, err := requireSession(cmd)
	if err != nil {
		return err
	}

	if key != "" {
		if err := ctl.SelectExperiment(cmd.Context(), key); err != nil {
			return err
		}
	}
	if ctl.SelectedKey() == "" {
		return fmt.Errorf("no experiments in application %s", ctl.AppID())
	}
	if msg := ctl.SummaryError(); msg != "" {
		return fmt.Errorf("%s", msg)
	}

	rows := ctl.Rows()
	headline, ok := analytics.ComputeHeadline(rows)
	totals := analytics.ComputeTotals(rows)

	if jsonOut {
		report := summaryReport{
			Experiment: ctl.SelectedKey(),
			Rows:       rows,
			Totals:     totals,
		}
		if ok {
			report.Headline = &headline
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := cmd.OutOrStdout()
	name := ctl.SelectedKey()
	if exp := ctl.Current(); exp != nil {
		name = fmt.Sprintf("%s (%s)", exp.Name, exp.Key)
	}
	fmt.Fprintf(out, "Summary for %s\n\n", name)

	if len(rows) == 0 {
		fmt.Fprintln(out, "No data yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tEXPOSURES\tCONVERSIONS\tRATE")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f%%\n", row.Name, row.Exposures, row.Conversions, row.Rate)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTotals: %d exposures, %d conversions\n", totals.Exposures, totals.Conversions)
	if ok {
		fmt.Fprintf(out, "Winner: %s (%.2f%%) over %s (%.2f%%), uplift %.1f%%\n",
			headline.Winner.Name, headline.Winner.Rate,
			headline.Loser.Name, headline.Loser.Rate,
			headline.UpliftPct)
	}
	return nil
}

func runCreate(cmd *cobra.Command, key, name, variantA, variantB string) error {
	ctl, err := requireSession(cmd)
	if err != nil {
		return err
	}

	if err := ctl.CreateExperiment(cmd.Context(), name, key, variantA, variantB); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s in application %s with a 50/50 split (%s, %s).\n",
		key, ctl.AppID(), variantA, variantB)
	return nil
}

func runAllocate(cmd *cobra.Command, key string, shares []string) error {
	ctl, err := requireSession(cmd)
	if err != nil {
		return err
	}
	if err := ctl.SelectExperiment(cmd.Context(), key); err != nil {
		return err
	}
	exp := ctl.Current()
	if exp == nil {
		return fmt.Errorf("experiment %q not found", key)
	}
	if len(shares) != len(exp.Variants) {
		return fmt.Errorf("experiment %s has %d variants, got %d shares", key, len(exp.Variants), len(shares))
	}

	editor := allocation.NewEditor(exp)
	for i, share := range shares {
		if err := editor.SetShare(i, share); err != nil {
			return err
		}
	}

	req, err := editor.Changes()
	if err != nil {
		return err
	}
	if err := ctl.UpdateExperiment(cmd.Context(), req); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, v := range editor.Variants() {
		fmt.Fprintf(out, "  %s: %d%%\n", exp.Variants[i].Name, v.TrafficPercentage)
	}
	fmt.Fprintf(out, "Committed new split for %s.\n", key)
	return nil
}

func runSetStatus(cmd *cobra.Command, key string, active bool) error {
	ctl, err := requireSession(cmd)
	if err != nil {
		return err
	}
	if err := ctl.SelectExperiment(cmd.Context(), key); err != nil {
		return err
	}
	exp := ctl.Current()
	if exp == nil {
		return fmt.Errorf("experiment %q not found", key)
	}

	status := models.StatusPaused
	if active {
		status = models.StatusActive
	}
	if exp.Status == status {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already %s.\n", key, status)
		return nil
	}

	editor := allocation.NewEditor(exp)
	if err := editor.SetStatus(status); err != nil {
		return err
	}
	req, err := editor.Changes()
	if err != nil {
		return err
	}
	if err := ctl.UpdateExperiment(cmd.Context(), req); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s.\n", key, status)
	return nil
}

func runDelete(cmd *cobra.Command, key string, yes bool) error {
	ctl, err := requireSession(cmd)
	if err != nil {
		return err
	}
	if err := ctl.SelectExperiment(cmd.Context(), key); err != nil {
		return err
	}

	if !yes && !confirm(cmd, fmt.Sprintf("Delete experiment %q? This cannot be undone.", key)) {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}

	if err := ctl.DeleteExperiment(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", key)
	return nil
}

func runReset(cmd *cobra.Command, key string, yes bool) error {
	ctl, err := requireSession(cmd)
	if err != nil {
		return err
	}
	if err := ctl.SelectExperiment(cmd.Context(), key); err != nil {
		return err
	}

	if !yes && !confirm(cmd, fmt.Sprintf("Reset all counters for %q?", key)) {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}

	if err := ctl.ResetStats(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Counters for %s reset.\n", key)
	return nil
}
