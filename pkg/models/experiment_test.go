package models

import "testing"

func TestNewVariantDefaultsValue(t *testing.T) {
	v := NewVariant("Control", 50)
	if v.Value != "control" {
		t.Fatalf("Value=%q, want %q", v.Value, "control")
	}
	if v.TrafficPercentage != 50 {
		t.Fatalf("TrafficPercentage=%d, want 50", v.TrafficPercentage)
	}
}

func TestSeedVariants(t *testing.T) {
	variants := SeedVariants("Control", "Variant B")
	if len(variants) != 2 {
		t.Fatalf("len=%d, want 2", len(variants))
	}
	if variants[0].TrafficPercentage != 50 || variants[1].TrafficPercentage != 50 {
		t.Fatalf("seed split = %d/%d, want 50/50",
			variants[0].TrafficPercentage, variants[1].TrafficPercentage)
	}
	if variants[1].Value != "variant b" {
		t.Fatalf("Value=%q, want %q", variants[1].Value, "variant b")
	}
}

func TestTrafficTotal(t *testing.T) {
	exp := Experiment{Variants: []Variant{
		{TrafficPercentage: 70},
		{TrafficPercentage: 20},
		{TrafficPercentage: 10},
	}}
	if got := exp.TrafficTotal(); got != 100 {
		t.Fatalf("TrafficTotal=%d, want 100", got)
	}
}

func TestCloneVariantsIsIndependent(t *testing.T) {
	exp := Experiment{Variants: []Variant{{Name: "a", TrafficPercentage: 50}}}
	clone := exp.CloneVariants()
	clone[0].TrafficPercentage = 10
	if exp.Variants[0].TrafficPercentage != 50 {
		t.Fatalf("mutating clone changed source")
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus(StatusActive) || !ValidStatus(StatusPaused) {
		t.Fatalf("expected active and paused to be valid")
	}
	if ValidStatus("deleted") {
		t.Fatalf("unexpected valid status")
	}
}
