package storage

import (
	"context"
	"database/sql"
)

// CrawledSets returns every set with at least one bl_set_minifigs row,
// sentinel included: a sentinel means "crawled, nothing there" and the set
// must not be crawled again.
func (d *DB) CrawledSets(ctx context.Context) (map[string]bool, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT DISTINCT set_num FROM bl_set_minifigs`)
	if err != nil {
		return nil, err
	}
	sets, err := collectStrings(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(sets))
	for _, s := range sets {
		out[s] = true
	}
	return out, nil
}

// CrawledMinifigs returns every BL minifig with at least one
// bl_minifig_parts row, sentinel rows included.
func (d *DB) CrawledMinifigs(ctx context.Context) (map[string]bool, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT DISTINCT bl_minifig_no FROM bl_minifig_parts`)
	if err != nil {
		return nil, err
	}
	figs, err := collectStrings(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(figs))
	for _, f := range figs {
		out[f] = true
	}
	return out, nil
}

// KnownBLMinifigs returns the distinct real minifig numbers seen across all
// crawled sets.
func (d *DB) KnownBLMinifigs(ctx context.Context) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT DISTINCT minifig_no FROM bl_set_minifigs WHERE minifig_no != ? ORDER BY minifig_no`, Sentinel)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

// UpsertSetMinifigs stores one set's crawled minifig listing. An empty
// listing is recorded as a sentinel row so the set is never re-crawled.
func (d *DB) UpsertSetMinifigs(ctx context.Context, setNum string, entries []BLSetMinifig) error {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		entries = []BLSetMinifig{{SetNum: setNum, MinifigNo: Sentinel, Quantity: 0}}
	} else if _, err := tx.ExecContext(ctx,
		`DELETE FROM bl_set_minifigs WHERE set_num = ? AND minifig_no = ?`, setNum, Sentinel); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, e := range entries {
		_, err = tx.ExecContext(ctx, `
INSERT INTO bl_set_minifigs (set_num, minifig_no, bl_name, quantity)
VALUES (?, ?, ?, ?)
ON CONFLICT(set_num, minifig_no) DO UPDATE SET bl_name = excluded.bl_name, quantity = excluded.quantity`,
			setNum, e.MinifigNo, e.Name, e.Quantity)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// UpsertMinifigParts stores one BL minifig's crawled composition, or a
// sentinel row when BrickLink reports zero parts.
func (d *DB) UpsertMinifigParts(ctx context.Context, minifigNo string, entries []BLMinifigPart) error {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		entries = []BLMinifigPart{{MinifigNo: minifigNo, PartID: Sentinel, ColorID: 0, Quantity: 0}}
	} else if _, err := tx.ExecContext(ctx,
		`DELETE FROM bl_minifig_parts WHERE bl_minifig_no = ? AND bl_part_id = ?`, minifigNo, Sentinel); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, e := range entries {
		_, err = tx.ExecContext(ctx, `
INSERT INTO bl_minifig_parts (bl_minifig_no, bl_part_id, bl_color_id, quantity, last_refreshed_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(bl_minifig_no, bl_part_id, bl_color_id) DO UPDATE SET quantity = excluded.quantity, last_refreshed_at = CURRENT_TIMESTAMP`,
			minifigNo, e.PartID, e.ColorID, e.Quantity)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// BLFigsBySet maps each crawled set to its real BL minifigs.
func (d *DB) BLFigsBySet(ctx context.Context) (map[string][]string, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT set_num, minifig_no FROM bl_set_minifigs WHERE minifig_no != ? ORDER BY set_num, minifig_no`, Sentinel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var setNum, no string
		if err := rows.Scan(&setNum, &no); err != nil {
			return nil, err
		}
		out[setNum] = append(out[setNum], no)
	}
	return out, rows.Err()
}

// BLFigsInSets returns the distinct real BL minifigs listed in the given
// sets. Callers chunk setNums to keep the IN clause bounded.
func (d *DB) BLFigsInSets(ctx context.Context, setNums []string) ([]string, error) {
	if len(setNums) == 0 {
		return nil, nil
	}
	q := `SELECT DISTINCT minifig_no FROM bl_set_minifigs WHERE minifig_no != ? AND set_num IN (` + placeholders(len(setNums)) + `) ORDER BY minifig_no`
	args := append([]interface{}{Sentinel}, stringArgs(setNums)...)
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

// BLMinifigParts returns one BL minifig's composition, sentinel rows
// filtered out at this boundary so they never reach fingerprint code.
func (d *DB) BLMinifigParts(ctx context.Context, minifigNo string) ([]BLMinifigPart, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT bl_minifig_no, bl_part_id, bl_color_id, quantity
FROM bl_minifig_parts
WHERE bl_minifig_no = ? AND bl_part_id != ?
ORDER BY bl_part_id, bl_color_id`, minifigNo, Sentinel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BLMinifigPart
	for rows.Next() {
		var p BLMinifigPart
		if err := rows.Scan(&p.MinifigNo, &p.PartID, &p.ColorID, &p.Quantity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AllBLCompositions returns every real composition row grouped by minifig.
// Preloaded once per run by the global matcher, which would otherwise issue
// one query per (RB fig, BL fig) pair.
func (d *DB) AllBLCompositions(ctx context.Context) (map[string][]BLMinifigPart, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT bl_minifig_no, bl_part_id, bl_color_id, quantity
FROM bl_minifig_parts
WHERE bl_part_id != ?
ORDER BY bl_minifig_no`, Sentinel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]BLMinifigPart)
	for rows.Next() {
		var p BLMinifigPart
		if err := rows.Scan(&p.MinifigNo, &p.PartID, &p.ColorID, &p.Quantity); err != nil {
			return nil, err
		}
		out[p.MinifigNo] = append(out[p.MinifigNo], p)
	}
	return out, rows.Err()
}
