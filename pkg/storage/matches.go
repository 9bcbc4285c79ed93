package storage

import (
	"context"
	"errors"
)

// ErrAlreadyMatched is returned when a commit would overwrite an existing
// mapping. Matches are write-once within a run; candidate pools should have
// excluded the fig already.
var ErrAlreadyMatched = errors.New("fig already has a BL mapping")

// MatchedBLIDs returns the BL minifig ids already claimed by a mapping.
func (d *DB) MatchedBLIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT bl_minifig_id FROM rb_minifigs WHERE bl_minifig_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	ids, err := collectStrings(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// MatchedRBFigs returns the RB figs that already carry a mapping.
func (d *DB) MatchedRBFigs(ctx context.Context) (map[string]bool, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT fig_num FROM rb_minifigs WHERE bl_minifig_id IS NOT NULL`)
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

// UnmappedFigs returns every RB fig without a BL mapping yet.
func (d *DB) UnmappedFigs(ctx context.Context) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT fig_num FROM rb_minifigs WHERE bl_minifig_id IS NULL ORDER BY fig_num`)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

// CommitMatch records a mapping. The WHERE guard keeps a match write-once:
// a fig that was matched since the candidate pool was built is left alone.
func (d *DB) CommitMatch(ctx context.Context, m MatchAssignment) error {
	res, err := d.sql.ExecContext(ctx, `
UPDATE rb_minifigs
SET bl_minifig_id = ?, bl_mapping_confidence = ?, bl_mapping_source = ?, matched_at = CURRENT_TIMESTAMP
WHERE fig_num = ? AND bl_minifig_id IS NULL`,
		m.BLMinifigNo, m.Confidence, m.Source, m.FigNum)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyMatched
	}
	return nil
}

// MatchStats returns per-source match counts for the stats command.
func (d *DB) MatchStats(ctx context.Context) ([]MatchStat, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT bl_mapping_source, COUNT(*)
FROM rb_minifigs
WHERE bl_minifig_id IS NOT NULL
GROUP BY bl_mapping_source
ORDER BY bl_mapping_source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MatchStat
	for rows.Next() {
		var s MatchStat
		if err := rows.Scan(&s.Source, &s.Count); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountUnmapped returns the number of figs still without a BL mapping.
func (d *DB) CountUnmapped(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rb_minifigs WHERE bl_minifig_id IS NULL`).Scan(&n)
	return n, err
}
