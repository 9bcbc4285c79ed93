// Package match reconciles RB minifigs with BL minifigs. Tier 1 is
// process-of-elimination over set co-occurrence; tier 2 falls back to part
// fingerprint similarity, first set-scoped, then global.
package match

import (
	"sort"

	"github.com/minifiglab/figscope/pkg/storage"
)

// EliminationInput is a snapshot of the bipartite set-membership relation.
// The matched sets seed from mappings committed in earlier runs; RunElimination
// works on copies and never mutates the input.
type EliminationInput struct {
	RBFigsBySet map[string][]string
	BLFigsBySet map[string][]string
	MatchedRB   map[string]bool
	MatchedBL   map[string]bool
}

// RunElimination repeatedly scans every set and commits a match whenever
// exactly one unmatched fig remains on each side. Each match shrinks the
// candidate pool of other sets, so the loop re-scans to a fixed point: a
// single pass under-matches.
//
// A singleton pairing under full elimination is logically forced, so
// confidence is 1.0 regardless of pass.
func RunElimination(in EliminationInput) []storage.MatchAssignment {
	matchedRB := cloneSet(in.MatchedRB)
	matchedBL := cloneSet(in.MatchedBL)

	setNums := make([]string, 0, len(in.RBFigsBySet))
	for setNum := range in.RBFigsBySet {
		if len(in.BLFigsBySet[setNum]) > 0 {
			setNums = append(setNums, setNum)
		}
	}
	sort.Strings(setNums)

	var out []storage.MatchAssignment
	for pass := 0; ; pass++ {
		source := "tier1_elimination"
		if pass == 0 {
			source = "tier1_single_set"
		}
		changed := false
		for _, setNum := range setNums {
			rb := unmatched(in.RBFigsBySet[setNum], matchedRB)
			bl := unmatched(in.BLFigsBySet[setNum], matchedBL)
			if len(rb) != 1 || len(bl) != 1 {
				continue
			}
			out = append(out, storage.MatchAssignment{
				FigNum:      rb[0],
				BLMinifigNo: bl[0],
				Confidence:  1.0,
				Source:      source,
			})
			matchedRB[rb[0]] = true
			matchedBL[bl[0]] = true
			changed = true
		}
		if !changed {
			break
		}
	}
	return out
}

func cloneSet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k, v := range s {
		if v {
			out[k] = true
		}
	}
	return out
}

func unmatched(figs []string, matched map[string]bool) []string {
	var out []string
	for _, f := range figs {
		if !matched[f] {
			out = append(out, f)
		}
	}
	return out
}
