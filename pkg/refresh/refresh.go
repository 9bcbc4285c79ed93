// Package refresh crawls the BrickLink composition data that RB-reachable
// entities are still missing. Crawls are idempotent and resumable: empty API
// results leave a sentinel row behind so the entity is never asked about
// again, and a run that hits its call budget just stops asking.
package refresh

import (
	"context"

	"github.com/minifiglab/figscope/internal/utils"
	"github.com/minifiglab/figscope/pkg/blapi"
	"github.com/minifiglab/figscope/pkg/storage"
)

type Refresher struct {
	DB  *storage.DB
	API *blapi.Client
}

// Run executes both sub-crawls in order: set listings first, since they feed
// the minifig candidate pool.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.RefreshSetMinifigs(ctx); err != nil {
		return err
	}
	return r.RefreshMinifigParts(ctx)
}

// RefreshSetMinifigs crawls BL's minifig listing for every RB set that has
// minifigs but no bl_set_minifigs rows yet.
func (r *Refresher) RefreshSetMinifigs(ctx context.Context) error {
	sets, err := r.DB.SetsWithMinifigs(ctx)
	if err != nil {
		return err
	}
	crawled, err := r.DB.CrawledSets(ctx)
	if err != nil {
		return err
	}

	fetched, skipped := 0, 0
	for _, setNum := range sets {
		if crawled[setNum] {
			continue
		}
		if r.API.BudgetExhausted() {
			utils.Log.Infof("refresh: call budget reached after %d calls, %d sets left for a later run", r.API.Calls(), len(sets)-fetched-skipped)
			break
		}
		entries, err := r.API.FetchSetSubsets(ctx, setNum)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			utils.Log.Warnf("refresh: set %s: %v", setNum, err)
			skipped++
			continue
		}
		rows := make([]storage.BLSetMinifig, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, storage.BLSetMinifig{
				SetNum:    setNum,
				MinifigNo: e.ItemNo,
				Name:      e.ItemName,
				Quantity:  e.Quantity,
			})
		}
		if err := r.DB.UpsertSetMinifigs(ctx, setNum, rows); err != nil {
			utils.Log.Warnf("refresh: storing set %s: %v", setNum, err)
			skipped++
			continue
		}
		fetched++
	}
	utils.Log.Infof("refresh: set minifigs done (%d crawled, %d skipped)", fetched, skipped)
	return nil
}

// RefreshMinifigParts crawls BL's part listing for every minifig seen in a
// crawled set that has no bl_minifig_parts rows yet.
func (r *Refresher) RefreshMinifigParts(ctx context.Context) error {
	known, err := r.DB.KnownBLMinifigs(ctx)
	if err != nil {
		return err
	}
	crawled, err := r.DB.CrawledMinifigs(ctx)
	if err != nil {
		return err
	}

	fetched, skipped := 0, 0
	for _, minifigNo := range known {
		if crawled[minifigNo] {
			continue
		}
		if r.API.BudgetExhausted() {
			utils.Log.Infof("refresh: call budget reached after %d calls, %d minifigs left for a later run", r.API.Calls(), len(known)-fetched-skipped)
			break
		}
		entries, err := r.API.FetchMinifigSubsets(ctx, minifigNo)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			utils.Log.Warnf("refresh: minifig %s: %v", minifigNo, err)
			skipped++
			continue
		}
		rows := make([]storage.BLMinifigPart, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, storage.BLMinifigPart{
				MinifigNo: minifigNo,
				PartID:    e.ItemNo,
				ColorID:   e.ColorID,
				Quantity:  e.Quantity,
			})
		}
		if err := r.DB.UpsertMinifigParts(ctx, minifigNo, rows); err != nil {
			utils.Log.Warnf("refresh: storing minifig %s: %v", minifigNo, err)
			skipped++
			continue
		}
		fetched++
	}
	utils.Log.Infof("refresh: minifig parts done (%d crawled, %d skipped)", fetched, skipped)
	return nil
}
