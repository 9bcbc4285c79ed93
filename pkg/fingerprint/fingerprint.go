// Package fingerprint turns a minifig's part list into a normalized multiset
// in BrickLink vocabulary and scores multiset similarity between two such
// fingerprints. The score is the only signal the tier-2 matchers have.
package fingerprint

import (
	"strings"

	"github.com/minifiglab/figscope/pkg/storage"
)

// Line is one (part, color, quantity) entry of a fingerprint, always in BL
// vocabulary.
type Line struct {
	PartID   string
	ColorID  int
	Quantity int
}

// Fingerprint is a minifig's part composition as a multiset.
type Fingerprint []Line

// Result carries a comparison outcome.
type Result struct {
	Score        float64
	MatchedParts int
	TotalParts   int
}

// NormalizePartNum collapses BrickLink's leg/hip assembly variants to a
// single canonical id. BL catalogs "970c" and "970cm" followed by a variant
// suffix as distinct parts; RB and BL rarely agree on which variant a fig
// actually has, so all variants compare equal.
func NormalizePartNum(partID string) string {
	if strings.HasPrefix(partID, "970cm") {
		return "970cm00"
	}
	if strings.HasPrefix(partID, "970c") {
		return "970c00"
	}
	return partID
}

// BuildRB translates an RB composition into BL vocabulary. Part ids go
// through partMap, defaulting to the RB id itself (the ids agree for most
// parts); color ids go through colorMap, and lines whose color has no BL
// mapping are dropped since they cannot be compared.
func BuildRB(parts []storage.FigPart, partMap map[string]string, colorMap map[int]int) Fingerprint {
	fp := make(Fingerprint, 0, len(parts))
	for _, p := range parts {
		blColor, ok := colorMap[p.ColorID]
		if !ok {
			continue
		}
		blPart := p.PartNum
		if mapped, ok := partMap[p.PartNum]; ok {
			blPart = mapped
		}
		fp = append(fp, Line{PartID: blPart, ColorID: blColor, Quantity: p.Quantity})
	}
	return fp
}

// BuildBL wraps BL composition rows, which are already in BL vocabulary.
func BuildBL(parts []storage.BLMinifigPart) Fingerprint {
	fp := make(Fingerprint, 0, len(parts))
	for _, p := range parts {
		fp = append(fp, Line{PartID: p.PartID, ColorID: p.ColorID, Quantity: p.Quantity})
	}
	return fp
}

type key struct {
	part  string
	color int
}

func counts(fp Fingerprint, colorAware bool) (map[key]int, int) {
	m := make(map[key]int, len(fp))
	total := 0
	for _, l := range fp {
		k := key{part: NormalizePartNum(l.PartID)}
		if colorAware {
			k.color = l.ColorID
		}
		m[k] += l.Quantity
		total += l.Quantity
	}
	return m, total
}

func compare(a, b Fingerprint, colorAware bool) Result {
	ca, totalA := counts(a, colorAware)
	cb, totalB := counts(b, colorAware)

	matched := 0
	for k, na := range ca {
		if nb, ok := cb[k]; ok {
			if nb < na {
				matched += nb
			} else {
				matched += na
			}
		}
	}

	total := totalA
	if totalB > total {
		total = totalB
	}
	res := Result{MatchedParts: matched, TotalParts: total}
	if total > 0 {
		res.Score = float64(matched) / float64(total)
	}
	return res
}

// Compare scores two fingerprints keyed by (normalized part, color).
// matched is the multiset intersection size, total the larger side's size:
// a containment score that punishes extra unrelated parts less harshly than
// symmetric Jaccard would.
func Compare(a, b Fingerprint) Result {
	return compare(a, b, true)
}

// ComparePartsOnly ignores color, as a looser secondary signal when the
// color-aware score lands in the ambiguous band.
func ComparePartsOnly(a, b Fingerprint) Result {
	return compare(a, b, false)
}
