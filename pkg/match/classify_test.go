package match

import (
	"testing"

	"github.com/minifiglab/figscope/pkg/fingerprint"
)

func sameFP() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		{PartID: "3626", ColorID: 5, Quantity: 1},
		{PartID: "973", ColorID: 4, Quantity: 1},
	}
}

// Identical part lists in different colors: color-aware score is low but the
// parts-only score is 1.0, which clears the fuzzy floor.
func colorShiftedFP() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		{PartID: "3626", ColorID: 11, Quantity: 1},
		{PartID: "973", ColorID: 12, Quantity: 1},
	}
}

func TestClassifyExactSetScoped(t *testing.T) {
	cls, ok := Classify(1.0, sameFP(), sameFP(), "tier2", false)
	if !ok {
		t.Fatalf("perfect score must be accepted")
	}
	if cls.Source != "tier2_exact" || cls.Confidence != 0.95 {
		t.Fatalf("unexpected classification: %+v", cls)
	}
}

func TestClassifyExactGlobal(t *testing.T) {
	cls, ok := Classify(0.96, sameFP(), sameFP(), "tier2_global", true)
	if !ok {
		t.Fatalf("expected acceptance")
	}
	if cls.Source != "tier2_global_exact" || cls.Confidence != 0.90 {
		t.Fatalf("unexpected classification: %+v", cls)
	}
}

func TestClassifyOverlapBand(t *testing.T) {
	cls, ok := Classify(0.9, sameFP(), sameFP(), "tier2", false)
	if !ok {
		t.Fatalf("expected acceptance")
	}
	if cls.Source != "tier2_overlap" {
		t.Fatalf("unexpected source: %q", cls.Source)
	}
	want := 0.8 + (0.9-0.8)*0.75
	if diff := cls.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("confidence %v, want %v", cls.Confidence, want)
	}

	cls, _ = Classify(0.9, sameFP(), sameFP(), "tier2_global", true)
	want = 0.75 + (0.9-0.8)*0.5
	if diff := cls.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("global confidence %v, want %v", cls.Confidence, want)
	}
}

func TestClassifyFuzzyBandAcceptsOnPartsOnlyRescue(t *testing.T) {
	cls, ok := Classify(0.75, sameFP(), colorShiftedFP(), "tier2", false)
	if !ok {
		t.Fatalf("fuzzy band with matching part list must be accepted")
	}
	if cls.Source != "tier2_fuzzy" {
		t.Fatalf("unexpected source: %q", cls.Source)
	}
	want := 0.65 + (0.75-0.7)*0.5
	if diff := cls.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("confidence %v, want %v", cls.Confidence, want)
	}
}

func TestClassifyFuzzyBandRejectsOnWeakPartsOnly(t *testing.T) {
	other := fingerprint.Fingerprint{
		{PartID: "9999", ColorID: 1, Quantity: 1},
		{PartID: "8888", ColorID: 2, Quantity: 1},
	}
	if _, ok := Classify(0.75, sameFP(), other, "tier2", false); ok {
		t.Fatalf("fuzzy band without parts-only support must be rejected")
	}
}

func TestClassifyRejectsBelowFloor(t *testing.T) {
	if _, ok := Classify(0.69, sameFP(), sameFP(), "tier2", false); ok {
		t.Fatalf("score below 0.7 must be rejected")
	}
	if _, ok := Classify(0.0, sameFP(), sameFP(), "tier2", false); ok {
		t.Fatalf("zero score must be rejected")
	}
}

// For a fixed pair of fingerprints, a higher best score must never produce a
// strictly lower confidence within the same tier.
func TestClassifyMonotonic(t *testing.T) {
	for _, global := range []bool{false, true} {
		prev := -1.0
		for score := 0.70; score <= 1.0; score += 0.01 {
			cls, ok := Classify(score, sameFP(), colorShiftedFP(), "tier2", global)
			if !ok {
				continue
			}
			if cls.Confidence < prev {
				t.Fatalf("confidence dropped from %v to %v at score %v (global=%v)", prev, cls.Confidence, score, global)
			}
			prev = cls.Confidence
		}
	}
}
