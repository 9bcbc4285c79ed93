package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/minifiglab/figscope/internal/utils"
	"github.com/minifiglab/figscope/pkg/storage"
)

const importBatchSize = 500

// importCmd implements: figscope import <dir>
//
// Loads the Rebrickable bulk CSV dumps into the catalog store. Files are
// looked up by their dump names; missing files are skipped so partial
// refreshes work. Upserts are keyed on the natural catalog ids, re-importing
// is always safe.
var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import Rebrickable CSV catalog dumps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := storage.Open(dbPathFromFlags(cmd))
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		dir := args[0]

		importers := []struct {
			file string
			load func(context.Context, *storage.DB, *csvTable) error
		}{
			{"colors.csv", importColors},
			{"parts.csv", importParts},
			{"sets.csv", importSets},
			{"minifigs.csv", importMinifigs},
			{"inventories.csv", importInventories},
			{"inventory_parts.csv", importInventoryParts},
			{"inventory_minifigs.csv", importInventoryMinifigs},
		}

		for _, imp := range importers {
			path := filepath.Join(dir, imp.file)
			f, err := os.Open(path)
			if err != nil {
				if os.IsNotExist(err) {
					utils.Log.Infof("import: %s not present, skipping", imp.file)
					continue
				}
				return err
			}
			table, err := newCSVTable(f)
			if err != nil {
				f.Close()
				return fmt.Errorf("%s: %w", imp.file, err)
			}
			err = imp.load(ctx, db, table)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", imp.file, err)
			}
			utils.Log.Infof("import: %s done (%d rows)", imp.file, table.rowCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

// csvTable streams a headered CSV and resolves fields by column name.
type csvTable struct {
	r        *csv.Reader
	colIx    map[string]int
	record   []string
	rowCount int
}

func newCSVTable(r io.Reader) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	colIx := make(map[string]int, len(header))
	for i, name := range header {
		colIx[name] = i
	}
	return &csvTable{r: cr, colIx: colIx}, nil
}

// next advances to the next data row. Returns false at EOF.
func (t *csvTable) next() (bool, error) {
	record, err := t.r.Read()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	t.record = record
	t.rowCount++
	return true, nil
}

func (t *csvTable) str(col string) string {
	ix, ok := t.colIx[col]
	if !ok || ix >= len(t.record) {
		return ""
	}
	return t.record[ix]
}

func (t *csvTable) num(col string) int {
	n, _ := strconv.Atoi(t.str(col))
	return n
}

func importColors(ctx context.Context, db *storage.DB, t *csvTable) error {
	var batch []storage.ColorRow
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := db.UpsertColors(ctx, batch)
		batch = batch[:0]
		return err
	}
	for {
		ok, err := t.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		batch = append(batch, storage.ColorRow{
			ID:         t.num("id"),
			Name:       t.str("name"),
			BLColorIDs: t.str("bl_color_ids"),
		})
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func importParts(ctx context.Context, db *storage.DB, t *csvTable) error {
	var batch []storage.PartRow
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := db.UpsertParts(ctx, batch)
		batch = batch[:0]
		return err
	}
	for {
		ok, err := t.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		batch = append(batch, storage.PartRow{
			PartNum:  t.str("part_num"),
			Name:     t.str("name"),
			BLPartID: t.str("bl_part_id"),
		})
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func importSets(ctx context.Context, db *storage.DB, t *csvTable) error {
	var batch []storage.SetRow
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := db.UpsertSets(ctx, batch)
		batch = batch[:0]
		return err
	}
	for {
		ok, err := t.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		batch = append(batch, storage.SetRow{
			SetNum:   t.str("set_num"),
			Name:     t.str("name"),
			Year:     t.num("year"),
			NumParts: t.num("num_parts"),
		})
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func importMinifigs(ctx context.Context, db *storage.DB, t *csvTable) error {
	var batch []storage.MinifigRow
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := db.UpsertMinifigs(ctx, batch)
		batch = batch[:0]
		return err
	}
	for {
		ok, err := t.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		batch = append(batch, storage.MinifigRow{
			FigNum:   t.str("fig_num"),
			Name:     t.str("name"),
			NumParts: t.num("num_parts"),
		})
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func importInventories(ctx context.Context, db *storage.DB, t *csvTable) error {
	var batch []storage.InventoryRow
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := db.UpsertInventories(ctx, batch)
		batch = batch[:0]
		return err
	}
	for {
		ok, err := t.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		batch = append(batch, storage.InventoryRow{
			ID:      int64(t.num("id")),
			Version: t.num("version"),
			SetNum:  t.str("set_num"),
		})
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func importInventoryParts(ctx context.Context, db *storage.DB, t *csvTable) error {
	var batch []storage.InventoryPartRow
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := db.UpsertInventoryParts(ctx, batch)
		batch = batch[:0]
		return err
	}
	for {
		ok, err := t.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		batch = append(batch, storage.InventoryPartRow{
			InventoryID: int64(t.num("inventory_id")),
			PartNum:     t.str("part_num"),
			ColorID:     t.num("color_id"),
			Quantity:    t.num("quantity"),
			IsSpare:     t.str("is_spare") == "t" || t.str("is_spare") == "True",
		})
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func importInventoryMinifigs(ctx context.Context, db *storage.DB, t *csvTable) error {
	var batch []storage.InventoryMinifigRow
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := db.UpsertInventoryMinifigs(ctx, batch)
		batch = batch[:0]
		return err
	}
	for {
		ok, err := t.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		batch = append(batch, storage.InventoryMinifigRow{
			InventoryID: int64(t.num("inventory_id")),
			FigNum:      t.str("fig_num"),
			Quantity:    t.num("quantity"),
		})
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}
