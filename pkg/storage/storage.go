package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

// MaxPageSize is the ceiling enforced on every paginated read.
const MaxPageSize = 1000

// Sentinel marks an entity that was crawled and for which BrickLink reported
// nothing. It keeps the crawler from retrying empty results forever and must
// never be treated as a real minifig or part.
const Sentinel = "__none__"

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS rb_colors (
  id            INTEGER PRIMARY KEY,
  name          TEXT NOT NULL,
  bl_color_ids  TEXT
);
CREATE TABLE IF NOT EXISTS rb_parts (
  part_num    TEXT PRIMARY KEY,
  name        TEXT NOT NULL,
  bl_part_id  TEXT
);
CREATE TABLE IF NOT EXISTS rb_sets (
  set_num    TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  year       INTEGER,
  num_parts  INTEGER
);
CREATE TABLE IF NOT EXISTS rb_minifigs (
  fig_num                TEXT PRIMARY KEY,
  name                   TEXT NOT NULL,
  num_parts              INTEGER,
  bl_minifig_id          TEXT,
  bl_mapping_confidence  REAL,
  bl_mapping_source      TEXT,
  matched_at             DATETIME
);
CREATE INDEX IF NOT EXISTS idx_minifigs_bl_id ON rb_minifigs(bl_minifig_id);
CREATE TABLE IF NOT EXISTS inventories (
  id       INTEGER PRIMARY KEY,
  version  INTEGER NOT NULL DEFAULT 1,
  set_num  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inventories_set ON inventories(set_num);
CREATE TABLE IF NOT EXISTS inventory_parts (
  inventory_id  INTEGER NOT NULL,
  part_num      TEXT NOT NULL,
  color_id      INTEGER NOT NULL,
  quantity      INTEGER NOT NULL,
  is_spare      INTEGER NOT NULL DEFAULT 0,
  UNIQUE(inventory_id, part_num, color_id, is_spare)
);
CREATE TABLE IF NOT EXISTS inventory_minifigs (
  inventory_id  INTEGER NOT NULL,
  fig_num       TEXT NOT NULL,
  quantity      INTEGER NOT NULL,
  UNIQUE(inventory_id, fig_num)
);
CREATE INDEX IF NOT EXISTS idx_inv_minifigs_fig ON inventory_minifigs(fig_num);
CREATE TABLE IF NOT EXISTS rb_fig_parts (
  fig_num   TEXT NOT NULL,
  part_num  TEXT NOT NULL,
  color_id  INTEGER NOT NULL,
  quantity  INTEGER NOT NULL,
  PRIMARY KEY (fig_num, part_num, color_id)
);
CREATE TABLE IF NOT EXISTS bl_set_minifigs (
  set_num     TEXT NOT NULL,
  minifig_no  TEXT NOT NULL,
  bl_name     TEXT,
  quantity    INTEGER NOT NULL DEFAULT 1,
  PRIMARY KEY (set_num, minifig_no)
);
CREATE TABLE IF NOT EXISTS bl_minifig_parts (
  bl_minifig_no      TEXT NOT NULL,
  bl_part_id         TEXT NOT NULL,
  bl_color_id        INTEGER NOT NULL,
  quantity           INTEGER NOT NULL DEFAULT 1,
  last_refreshed_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (bl_minifig_no, bl_part_id, bl_color_id)
);
CREATE TABLE IF NOT EXISTS part_rarity (
  part_num   TEXT NOT NULL,
  color_id   INTEGER NOT NULL,
  set_count  INTEGER NOT NULL,
  PRIMARY KEY (part_num, color_id)
);
CREATE TABLE IF NOT EXISTS minifig_rarity (
  fig_num                TEXT PRIMARY KEY,
  min_subpart_set_count  INTEGER NOT NULL,
  set_count              INTEGER NOT NULL
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SupportsAtomic probes whether the driver accepts multi-statement Exec,
// which the rarity materializer's SQL fast path depends on.
func (d *DB) SupportsAtomic(ctx context.Context) bool {
	_, err := d.sql.ExecContext(ctx, "SELECT 1; SELECT 1;")
	return err == nil
}

// ExecAtomic runs a multi-statement SQL script inside a single transaction.
func (d *DB) ExecAtomic(ctx context.Context, script string) error {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func clampPageSize(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// placeholders returns "?,?,...,?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
