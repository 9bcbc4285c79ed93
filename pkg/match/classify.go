package match

import "github.com/minifiglab/figscope/pkg/fingerprint"

// Classification is an accepted tier-2 match grade.
type Classification struct {
	Confidence float64
	Source     string
}

// Score bands and confidence ceilings. These are calibrated constants from
// production tuning; the global tier gets lower ceilings because it lacks
// the set co-occurrence prior. Do not re-derive.
const (
	exactThreshold   = 0.95
	overlapThreshold = 0.8
	fuzzyThreshold   = 0.7
	fuzzyPartsFloor  = 0.75
)

// Classify grades the best-scoring candidate for one RB fig. prefix names
// the method ("tier2" or "tier2_global"); global selects the lower
// confidence ceilings. The second return is false when the score is too weak
// to accept: the fig stays unmapped and is eligible again next run.
func Classify(bestScore float64, rbFP, blFP fingerprint.Fingerprint, prefix string, global bool) (Classification, bool) {
	switch {
	case bestScore >= exactThreshold:
		conf := 0.95
		if global {
			conf = 0.90
		}
		return Classification{Confidence: conf, Source: prefix + "_exact"}, true

	case bestScore >= overlapThreshold:
		conf := 0.8 + (bestScore-0.8)*0.75
		if global {
			conf = 0.75 + (bestScore-0.8)*0.5
		}
		return Classification{Confidence: conf, Source: prefix + "_overlap"}, true

	case bestScore >= fuzzyThreshold:
		// Ambiguous band: a color disagreement (common across catalogs) can
		// drag the score down even when the part list agrees. Accept only if
		// the color-agnostic score clears the floor.
		if fingerprint.ComparePartsOnly(rbFP, blFP).Score >= fuzzyPartsFloor {
			return Classification{Confidence: 0.65 + (bestScore-0.7)*0.5, Source: prefix + "_fuzzy"}, true
		}
		return Classification{}, false

	default:
		return Classification{}, false
	}
}
