package storage

import (
	"context"
	"database/sql"
)

// Rows for the bulk CSV import. Field order mirrors the RB dump columns.

type ColorRow struct {
	ID         int
	Name       string
	BLColorIDs string // JSON array of candidate BL ids, may be empty
}

type PartRow struct {
	PartNum  string
	Name     string
	BLPartID string
}

type SetRow struct {
	SetNum   string
	Name     string
	Year     int
	NumParts int
}

type MinifigRow struct {
	FigNum   string
	Name     string
	NumParts int
}

type InventoryRow struct {
	ID      int64
	Version int
	SetNum  string
}

type InventoryPartRow struct {
	InventoryID int64
	PartNum     string
	ColorID     int
	Quantity    int
	IsSpare     bool
}

type InventoryMinifigRow struct {
	InventoryID int64
	FigNum      string
	Quantity    int
}

func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (d *DB) UpsertColors(ctx context.Context, rows []ColorRow) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO rb_colors (id, name, bl_color_ids) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, bl_color_ids = excluded.bl_color_ids`,
				r.ID, r.Name, r.BLColorIDs); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) UpsertParts(ctx context.Context, rows []PartRow) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO rb_parts (part_num, name, bl_part_id) VALUES (?, ?, ?)
ON CONFLICT(part_num) DO UPDATE SET name = excluded.name, bl_part_id = excluded.bl_part_id`,
				r.PartNum, r.Name, r.BLPartID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) UpsertSets(ctx context.Context, rows []SetRow) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO rb_sets (set_num, name, year, num_parts) VALUES (?, ?, ?, ?)
ON CONFLICT(set_num) DO UPDATE SET name = excluded.name, year = excluded.year, num_parts = excluded.num_parts`,
				r.SetNum, r.Name, r.Year, r.NumParts); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertMinifigs leaves the BL mapping columns untouched on conflict; a
// catalog re-import must not wipe reconciliation work.
func (d *DB) UpsertMinifigs(ctx context.Context, rows []MinifigRow) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO rb_minifigs (fig_num, name, num_parts) VALUES (?, ?, ?)
ON CONFLICT(fig_num) DO UPDATE SET name = excluded.name, num_parts = excluded.num_parts`,
				r.FigNum, r.Name, r.NumParts); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) UpsertInventories(ctx context.Context, rows []InventoryRow) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO inventories (id, version, set_num) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET version = excluded.version, set_num = excluded.set_num`,
				r.ID, r.Version, r.SetNum); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) UpsertInventoryParts(ctx context.Context, rows []InventoryPartRow) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			spare := 0
			if r.IsSpare {
				spare = 1
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO inventory_parts (inventory_id, part_num, color_id, quantity, is_spare) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(inventory_id, part_num, color_id, is_spare) DO UPDATE SET quantity = excluded.quantity`,
				r.InventoryID, r.PartNum, r.ColorID, r.Quantity, spare); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) UpsertInventoryMinifigs(ctx context.Context, rows []InventoryMinifigRow) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO inventory_minifigs (inventory_id, fig_num, quantity) VALUES (?, ?, ?)
ON CONFLICT(inventory_id, fig_num) DO UPDATE SET quantity = excluded.quantity`,
				r.InventoryID, r.FigNum, r.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}
