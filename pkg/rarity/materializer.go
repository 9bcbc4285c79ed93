// Package rarity recomputes the two derived scarcity tables: distinct-set
// counts per (part, color) and per minifig. Both tables are truncated and
// fully rebuilt each run.
//
// A (part, color) pair counts a set both when the set's inventory lists the
// part directly and when the set inventories a minifig that is built from
// the part.
package rarity

import (
	"context"

	"github.com/minifiglab/figscope/internal/utils"
	"github.com/minifiglab/figscope/pkg/storage"
)

// chunkSize bounds query fan-out and bulk upsert batches on the fallback path.
const chunkSize = 200

// Materializer rebuilds both rarity tables.
type Materializer interface {
	Materialize(ctx context.Context) error
}

// ForStore picks the strategy the store supports.
func ForStore(ctx context.Context, db *storage.DB) Materializer {
	if db.SupportsAtomic(ctx) {
		return &SQLMaterializer{DB: db}
	}
	return &ChunkedMaterializer{DB: db}
}

// Run materializes with the SQL fast path where available, falling back to
// the chunked scan if the script fails. A fallback failure is fatal to this
// stage but to nothing else; matches already committed stand.
func Run(ctx context.Context, db *storage.DB) error {
	if db.SupportsAtomic(ctx) {
		err := (&SQLMaterializer{DB: db}).Materialize(ctx)
		if err == nil {
			return nil
		}
		utils.Log.Warnf("rarity: atomic rebuild failed, falling back to chunked scan: %v", err)
	}
	return (&ChunkedMaterializer{DB: db}).Materialize(ctx)
}

// SQLMaterializer rebuilds both tables in one atomic multi-statement script.
type SQLMaterializer struct {
	DB *storage.DB
}

const rebuildScript = `
DELETE FROM part_rarity;
INSERT INTO part_rarity (part_num, color_id, set_count)
SELECT part_num, color_id, COUNT(DISTINCT set_num) FROM (
  SELECT ip.part_num AS part_num, ip.color_id AS color_id, inv.set_num AS set_num
  FROM inventory_parts ip
  JOIN inventories inv ON inv.id = ip.inventory_id
  WHERE inv.set_num NOT LIKE 'fig-%' AND ip.is_spare = 0
  UNION
  SELECT fp.part_num, fp.color_id, inv.set_num
  FROM rb_fig_parts fp
  JOIN inventory_minifigs im ON im.fig_num = fp.fig_num
  JOIN inventories inv ON inv.id = im.inventory_id
  WHERE inv.set_num NOT LIKE 'fig-%'
)
GROUP BY part_num, color_id;

DELETE FROM minifig_rarity;
INSERT INTO minifig_rarity (fig_num, min_subpart_set_count, set_count)
SELECT fp.fig_num, MIN(pr.set_count), COALESCE(MAX(fs.set_count), 0)
FROM rb_fig_parts fp
JOIN part_rarity pr ON pr.part_num = fp.part_num AND pr.color_id = fp.color_id
LEFT JOIN (
  SELECT im.fig_num AS fig_num, COUNT(DISTINCT inv.set_num) AS set_count
  FROM inventory_minifigs im
  JOIN inventories inv ON inv.id = im.inventory_id
  WHERE inv.set_num NOT LIKE 'fig-%'
  GROUP BY im.fig_num
) fs ON fs.fig_num = fp.fig_num
GROUP BY fp.fig_num;
`

func (m *SQLMaterializer) Materialize(ctx context.Context) error {
	return m.DB.ExecAtomic(ctx, rebuildScript)
}

// ChunkedMaterializer builds the same aggregates in memory through paginated
// reads, for stores without multi-statement execution. Output must be
// identical to the SQL path.
type ChunkedMaterializer struct {
	DB *storage.DB
}

type partKey struct {
	partNum string
	colorID int
}

func (m *ChunkedMaterializer) Materialize(ctx context.Context) error {
	partSets := make(map[partKey]map[string]bool)
	figSets := make(map[string]map[string]bool)

	// Walk every real inventory in pages, resolving parts and fig
	// memberships in bounded chunks.
	var afterID int64
	for {
		invs, err := m.DB.Inventories(ctx, afterID, storage.MaxPageSize)
		if err != nil {
			return err
		}
		if len(invs) == 0 {
			break
		}
		afterID = invs[len(invs)-1].ID

		setByInv := make(map[int64]string)
		var invIDs []int64
		for _, inv := range invs {
			if len(inv.SetNum) >= 4 && inv.SetNum[:4] == "fig-" {
				continue
			}
			setByInv[inv.ID] = inv.SetNum
			invIDs = append(invIDs, inv.ID)
		}

		for _, chunk := range chunked(invIDs, chunkSize) {
			parts, err := m.DB.InventoryPartsFor(ctx, chunk)
			if err != nil {
				return err
			}
			for invID, lines := range parts {
				setNum := setByInv[invID]
				for _, l := range lines {
					addSet(partSets, partKey{l.PartNum, l.ColorID}, setNum)
				}
			}
			figs, err := m.DB.InventoryMinifigsFor(ctx, chunk)
			if err != nil {
				return err
			}
			for invID, figNums := range figs {
				setNum := setByInv[invID]
				for _, figNum := range figNums {
					if figSets[figNum] == nil {
						figSets[figNum] = make(map[string]bool)
					}
					figSets[figNum][setNum] = true
				}
			}
		}
	}

	// Credit each fig's parts with the fig's set appearances, and remember
	// compositions for the minifig pass.
	allFigs, err := m.DB.AllFigNumsWithParts(ctx)
	if err != nil {
		return err
	}
	figParts := make(map[string][]storage.FigPart, len(allFigs))
	for _, chunk := range chunked(allFigs, chunkSize) {
		batch, err := m.DB.FigPartsFor(ctx, chunk)
		if err != nil {
			return err
		}
		for figNum, lines := range batch {
			figParts[figNum] = lines
			for setNum := range figSets[figNum] {
				for _, l := range lines {
					addSet(partSets, partKey{l.PartNum, l.ColorID}, setNum)
				}
			}
		}
	}

	partRows := make([]storage.PartRarityRow, 0, len(partSets))
	for k, sets := range partSets {
		partRows = append(partRows, storage.PartRarityRow{PartNum: k.partNum, ColorID: k.colorID, SetCount: len(sets)})
	}

	var figRows []storage.MinifigRarityRow
	for figNum, lines := range figParts {
		minCount := -1
		for _, l := range lines {
			sets, ok := partSets[partKey{l.PartNum, l.ColorID}]
			if !ok {
				continue
			}
			if minCount < 0 || len(sets) < minCount {
				minCount = len(sets)
			}
		}
		if minCount < 0 {
			// No part of this fig appears in any set; same as the SQL
			// path's inner join dropping the fig.
			continue
		}
		figRows = append(figRows, storage.MinifigRarityRow{
			FigNum:             figNum,
			MinSubpartSetCount: minCount,
			SetCount:           len(figSets[figNum]),
		})
	}

	if err := m.DB.ClearRarity(ctx); err != nil {
		return err
	}
	for _, chunk := range chunked(partRows, chunkSize) {
		if err := m.DB.UpsertPartRarity(ctx, chunk); err != nil {
			return err
		}
	}
	for _, chunk := range chunked(figRows, chunkSize) {
		if err := m.DB.UpsertMinifigRarity(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func addSet(m map[partKey]map[string]bool, k partKey, setNum string) {
	if m[k] == nil {
		m[k] = make(map[string]bool)
	}
	m[k][setNum] = true
}

func chunked[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
