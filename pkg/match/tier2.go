package match

import (
	"context"
	"regexp"
	"sort"
	"strconv"

	"github.com/minifiglab/figscope/internal/utils"
	"github.com/minifiglab/figscope/pkg/fingerprint"
	"github.com/minifiglab/figscope/pkg/storage"
)

// Tier2 fingerprints every still-unmapped RB fig against a BL candidate
// pool. The maps are built once per run by the driver and passed in, so
// nothing here survives across runs.
type Tier2 struct {
	DB       *storage.DB
	PartMap  map[string]string
	ColorMap map[int]int
}

var packSuffixRe = regexp.MustCompile(`^(.*)-(\d+)$`)

// expandPackSets adds the "-1" base pack for any collectible-minifig style
// set number "-N" with N > 1. Blind-bag figs are cataloged under per-fig
// pseudo set numbers sharing a parent pack; BL usually lists the whole wave
// under the base number.
func expandPackSets(setNums []string) []string {
	seen := make(map[string]bool, len(setNums))
	out := make([]string, 0, len(setNums))
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range setNums {
		add(s)
		if m := packSuffixRe.FindStringSubmatch(s); m != nil {
			if n, err := strconv.Atoi(m[2]); err == nil && n > 1 {
				add(m[1] + "-1")
			}
		}
	}
	return out
}

// bestCandidate scores rbFP against every candidate composition and returns
// the winner. Ties break toward the lexicographically first candidate so
// runs are deterministic.
func bestCandidate(rbFP fingerprint.Fingerprint, candidates map[string]fingerprint.Fingerprint) (string, fingerprint.Fingerprint, float64) {
	nos := make([]string, 0, len(candidates))
	for no := range candidates {
		nos = append(nos, no)
	}
	sort.Strings(nos)

	bestNo := ""
	var bestFP fingerprint.Fingerprint
	bestScore := -1.0
	for _, no := range nos {
		fp := candidates[no]
		if len(fp) == 0 {
			continue
		}
		if score := fingerprint.Compare(rbFP, fp).Score; score > bestScore {
			bestNo, bestFP, bestScore = no, fp, score
		}
	}
	return bestNo, bestFP, bestScore
}

// RunSetScoped matches unmapped figs against BL minifigs listed in the same
// sets (plus the base-pack fallback). Returns the number of matches committed.
func (t *Tier2) RunSetScoped(ctx context.Context) (int, error) {
	matchedBL, err := t.DB.MatchedBLIDs(ctx)
	if err != nil {
		return 0, err
	}
	unmapped, err := t.DB.UnmappedFigs(ctx)
	if err != nil {
		return 0, err
	}

	committed := 0
	for _, figNum := range unmapped {
		rbFP, err := t.rbFingerprint(ctx, figNum)
		if err != nil {
			utils.Log.Warnf("tier2: loading composition for %s: %v", figNum, err)
			continue
		}
		if len(rbFP) == 0 {
			continue
		}

		sets, err := t.DB.SetsForFig(ctx, figNum)
		if err != nil {
			utils.Log.Warnf("tier2: loading sets for %s: %v", figNum, err)
			continue
		}
		blFigs, err := t.DB.BLFigsInSets(ctx, expandPackSets(sets))
		if err != nil {
			utils.Log.Warnf("tier2: loading candidates for %s: %v", figNum, err)
			continue
		}

		candidates := make(map[string]fingerprint.Fingerprint)
		for _, no := range blFigs {
			if matchedBL[no] {
				continue
			}
			parts, err := t.DB.BLMinifigParts(ctx, no)
			if err != nil {
				utils.Log.Warnf("tier2: loading BL composition %s: %v", no, err)
				continue
			}
			if len(parts) > 0 {
				candidates[no] = fingerprint.BuildBL(parts)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		if t.commitBest(ctx, figNum, rbFP, candidates, "tier2", false, matchedBL) {
			committed++
		}
	}
	return committed, nil
}

// RunGlobal matches remaining figs against every unmatched BL minifig that
// has composition data. The pool is preloaded once: this tier is
// O(unmatched RB x unmatched BL) and per-pair queries would swamp the store.
func (t *Tier2) RunGlobal(ctx context.Context) (int, error) {
	matchedBL, err := t.DB.MatchedBLIDs(ctx)
	if err != nil {
		return 0, err
	}
	all, err := t.DB.AllBLCompositions(ctx)
	if err != nil {
		return 0, err
	}
	pool := make(map[string]fingerprint.Fingerprint, len(all))
	for no, parts := range all {
		if !matchedBL[no] {
			pool[no] = fingerprint.BuildBL(parts)
		}
	}

	unmapped, err := t.DB.UnmappedFigs(ctx)
	if err != nil {
		return 0, err
	}

	committed := 0
	for _, figNum := range unmapped {
		rbFP, err := t.rbFingerprint(ctx, figNum)
		if err != nil {
			utils.Log.Warnf("tier2 global: loading composition for %s: %v", figNum, err)
			continue
		}
		if len(rbFP) == 0 || len(pool) == 0 {
			continue
		}
		if t.commitBest(ctx, figNum, rbFP, pool, "tier2_global", true, nil) {
			committed++
			// commitBest removed the winner from the shared pool already
		}
	}
	return committed, nil
}

func (t *Tier2) rbFingerprint(ctx context.Context, figNum string) (fingerprint.Fingerprint, error) {
	parts, err := t.DB.FigParts(ctx, figNum)
	if err != nil {
		return nil, err
	}
	return fingerprint.BuildRB(parts, t.PartMap, t.ColorMap), nil
}

// commitBest scores, classifies, and commits the winner. On success it
// removes the BL id from future candidacy: matchedBL for the set-scoped
// tier, the shared pool itself for the global tier.
func (t *Tier2) commitBest(ctx context.Context, figNum string, rbFP fingerprint.Fingerprint, candidates map[string]fingerprint.Fingerprint, prefix string, global bool, matchedBL map[string]bool) bool {
	bestNo, bestFP, bestScore := bestCandidate(rbFP, candidates)
	if bestNo == "" {
		return false
	}
	cls, ok := Classify(bestScore, rbFP, bestFP, prefix, global)
	if !ok {
		return false
	}
	err := t.DB.CommitMatch(ctx, storage.MatchAssignment{
		FigNum:      figNum,
		BLMinifigNo: bestNo,
		Confidence:  cls.Confidence,
		Source:      cls.Source,
	})
	if err != nil {
		utils.Log.Warnf("%s: committing %s -> %s: %v", prefix, figNum, bestNo, err)
		return false
	}
	if global {
		delete(candidates, bestNo)
	} else if matchedBL != nil {
		matchedBL[bestNo] = true
	}
	utils.Log.Debugf("%s: %s -> %s (score %.3f, confidence %.3f)", prefix, figNum, bestNo, bestScore, cls.Confidence)
	return true
}
