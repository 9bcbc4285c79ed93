package storage

import (
	"context"
	"database/sql"
)

// ClearRarity truncates both derived tables. The materializer fully
// recomputes them each run; nothing here is incremental.
func (d *DB) ClearRarity(ctx context.Context) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM part_rarity`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM minifig_rarity`)
		return err
	})
}

// UpsertPartRarity writes one batch of part rarity rows.
func (d *DB) UpsertPartRarity(ctx context.Context, rows []PartRarityRow) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO part_rarity (part_num, color_id, set_count) VALUES (?, ?, ?)
ON CONFLICT(part_num, color_id) DO UPDATE SET set_count = excluded.set_count`,
				r.PartNum, r.ColorID, r.SetCount); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertMinifigRarity writes one batch of minifig rarity rows.
func (d *DB) UpsertMinifigRarity(ctx context.Context, rows []MinifigRarityRow) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO minifig_rarity (fig_num, min_subpart_set_count, set_count) VALUES (?, ?, ?)
ON CONFLICT(fig_num) DO UPDATE SET min_subpart_set_count = excluded.min_subpart_set_count, set_count = excluded.set_count`,
				r.FigNum, r.MinSubpartSetCount, r.SetCount); err != nil {
				return err
			}
		}
		return nil
	})
}

// PartRarityRows returns the derived table ordered by key, for tests and the
// stats command.
func (d *DB) PartRarityRows(ctx context.Context) ([]PartRarityRow, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT part_num, color_id, set_count FROM part_rarity ORDER BY part_num, color_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PartRarityRow
	for rows.Next() {
		var r PartRarityRow
		if err := rows.Scan(&r.PartNum, &r.ColorID, &r.SetCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MinifigRarityRows returns the derived table ordered by fig.
func (d *DB) MinifigRarityRows(ctx context.Context) ([]MinifigRarityRow, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT fig_num, min_subpart_set_count, set_count FROM minifig_rarity ORDER BY fig_num`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MinifigRarityRow
	for rows.Next() {
		var r MinifigRarityRow
		if err := rows.Scan(&r.FigNum, &r.MinSubpartSetCount, &r.SetCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TableCounts returns row counts for the stats command.
func (d *DB) TableCounts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, table := range []string{
		"rb_sets", "rb_minifigs", "rb_fig_parts",
		"bl_set_minifigs", "bl_minifig_parts",
		"part_rarity", "minifig_rarity",
	} {
		var n int
		if err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, err
		}
		out[table] = n
	}
	return out, nil
}
