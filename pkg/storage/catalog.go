package storage

import (
	"context"
	"database/sql"

	"github.com/tidwall/gjson"
)

// MaterializeFigParts rebuilds rb_fig_parts from the fig-inventory
// pseudo-sets. RB catalogs a minifig's own parts as an inventory whose
// set_num is the fig_num; spare parts are skipped.
func (d *DB) MaterializeFigParts(ctx context.Context) (int64, error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rb_fig_parts`); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
INSERT INTO rb_fig_parts (fig_num, part_num, color_id, quantity)
SELECT inv.set_num, ip.part_num, ip.color_id, SUM(ip.quantity)
FROM inventory_parts ip
JOIN inventories inv ON inv.id = ip.inventory_id
WHERE inv.set_num LIKE 'fig-%' AND ip.is_spare = 0
GROUP BY inv.set_num, ip.part_num, ip.color_id`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// FigParts returns the materialized composition of one RB minifig.
func (d *DB) FigParts(ctx context.Context, figNum string) ([]FigPart, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT fig_num, part_num, color_id, quantity FROM rb_fig_parts WHERE fig_num = ? ORDER BY part_num, color_id`, figNum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FigPart
	for rows.Next() {
		var p FigPart
		if err := rows.Scan(&p.FigNum, &p.PartNum, &p.ColorID, &p.Quantity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FigPartsFor returns compositions for a batch of figs, grouped by fig_num.
// Callers chunk figNums to keep the IN clause bounded.
func (d *DB) FigPartsFor(ctx context.Context, figNums []string) (map[string][]FigPart, error) {
	out := make(map[string][]FigPart)
	if len(figNums) == 0 {
		return out, nil
	}
	q := `SELECT fig_num, part_num, color_id, quantity FROM rb_fig_parts WHERE fig_num IN (` + placeholders(len(figNums)) + `)`
	rows, err := d.sql.QueryContext(ctx, q, stringArgs(figNums)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p FigPart
		if err := rows.Scan(&p.FigNum, &p.PartNum, &p.ColorID, &p.Quantity); err != nil {
			return nil, err
		}
		out[p.FigNum] = append(out[p.FigNum], p)
	}
	return out, rows.Err()
}

// SetsWithMinifigs returns every real (non-fig) set that inventories at
// least one minifig.
func (d *DB) SetsWithMinifigs(ctx context.Context) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT DISTINCT inv.set_num
FROM inventory_minifigs im
JOIN inventories inv ON inv.id = im.inventory_id
WHERE inv.set_num NOT LIKE 'fig-%'
ORDER BY inv.set_num`)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

// RBFigsBySet maps each real set to the distinct RB figs it inventories.
func (d *DB) RBFigsBySet(ctx context.Context) (map[string][]string, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT DISTINCT inv.set_num, im.fig_num
FROM inventory_minifigs im
JOIN inventories inv ON inv.id = im.inventory_id
WHERE inv.set_num NOT LIKE 'fig-%'
ORDER BY inv.set_num, im.fig_num`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var setNum, figNum string
		if err := rows.Scan(&setNum, &figNum); err != nil {
			return nil, err
		}
		out[setNum] = append(out[setNum], figNum)
	}
	return out, rows.Err()
}

// SetsForFig returns the real sets a fig is inventoried in.
func (d *DB) SetsForFig(ctx context.Context, figNum string) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT DISTINCT inv.set_num
FROM inventory_minifigs im
JOIN inventories inv ON inv.id = im.inventory_id
WHERE im.fig_num = ? AND inv.set_num NOT LIKE 'fig-%'
ORDER BY inv.set_num`, figNum)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

// ColorMap builds the RB color id -> BL color id map from the enrichment
// metadata stored on rb_colors. bl_color_ids holds a JSON array; the first
// usable id wins. Colors without a mapping are simply absent from the map.
func (d *DB) ColorMap(ctx context.Context) (map[int]int, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, bl_color_ids FROM rb_colors WHERE bl_color_ids IS NOT NULL AND bl_color_ids != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int]int)
	for rows.Next() {
		var id int
		var blob string
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		for _, v := range gjson.Parse(blob).Array() {
			if v.Type == gjson.Number && v.Int() >= 0 {
				out[id] = int(v.Int())
				break
			}
		}
	}
	return out, rows.Err()
}

// PartMap builds the RB part_num -> BL part id map. Parts without an entry
// share the same id on both sides and fall through to identity.
func (d *DB) PartMap(ctx context.Context) (map[string]string, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT part_num, bl_part_id FROM rb_parts WHERE bl_part_id IS NOT NULL AND bl_part_id != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var rb, bl string
		if err := rows.Scan(&rb, &bl); err != nil {
			return nil, err
		}
		out[rb] = bl
	}
	return out, rows.Err()
}

// Inventories pages through inventory headers using keyset pagination.
// Pass afterID=0 for the first page; limit is clamped to MaxPageSize.
func (d *DB) Inventories(ctx context.Context, afterID int64, limit int) ([]Inventory, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, set_num FROM inventories WHERE id > ? ORDER BY id LIMIT ?`, afterID, clampPageSize(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Inventory
	for rows.Next() {
		var inv Inventory
		if err := rows.Scan(&inv.ID, &inv.SetNum); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// InventoryPartsFor returns non-spare part lines for a batch of inventories,
// keyed by inventory id.
func (d *DB) InventoryPartsFor(ctx context.Context, invIDs []int64) (map[int64][]FigPart, error) {
	out := make(map[int64][]FigPart)
	if len(invIDs) == 0 {
		return out, nil
	}
	q := `SELECT inventory_id, part_num, color_id, quantity FROM inventory_parts WHERE is_spare = 0 AND inventory_id IN (` + placeholders(len(invIDs)) + `)`
	rows, err := d.sql.QueryContext(ctx, q, int64Args(invIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var p FigPart
		if err := rows.Scan(&id, &p.PartNum, &p.ColorID, &p.Quantity); err != nil {
			return nil, err
		}
		out[id] = append(out[id], p)
	}
	return out, rows.Err()
}

// InventoryMinifigsFor returns fig memberships for a batch of inventories,
// keyed by inventory id.
func (d *DB) InventoryMinifigsFor(ctx context.Context, invIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	if len(invIDs) == 0 {
		return out, nil
	}
	q := `SELECT inventory_id, fig_num FROM inventory_minifigs WHERE inventory_id IN (` + placeholders(len(invIDs)) + `)`
	rows, err := d.sql.QueryContext(ctx, q, int64Args(invIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var fig string
		if err := rows.Scan(&id, &fig); err != nil {
			return nil, err
		}
		out[id] = append(out[id], fig)
	}
	return out, rows.Err()
}

// AllFigNumsWithParts returns every fig that has a materialized composition.
func (d *DB) AllFigNumsWithParts(ctx context.Context) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT DISTINCT fig_num FROM rb_fig_parts ORDER BY fig_num`)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}
