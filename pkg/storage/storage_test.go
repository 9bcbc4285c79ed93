package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "figscope.sqlite"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCommitMatchIsWriteOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.UpsertMinifigs(ctx, []MinifigRow{{FigNum: "fig-000123", Name: "Trooper", NumParts: 4}}); err != nil {
		t.Fatalf("UpsertMinifigs: %v", err)
	}

	first := MatchAssignment{FigNum: "fig-000123", BLMinifigNo: "sw001", Confidence: 1.0, Source: "tier1_single_set"}
	if err := db.CommitMatch(ctx, first); err != nil {
		t.Fatalf("first CommitMatch: %v", err)
	}

	second := MatchAssignment{FigNum: "fig-000123", BLMinifigNo: "sw999", Confidence: 0.95, Source: "tier2_exact"}
	if err := db.CommitMatch(ctx, second); !errors.Is(err, ErrAlreadyMatched) {
		t.Fatalf("second CommitMatch: want ErrAlreadyMatched, got %v", err)
	}

	matched, err := db.MatchedBLIDs(ctx)
	if err != nil {
		t.Fatalf("MatchedBLIDs: %v", err)
	}
	if !matched["sw001"] || matched["sw999"] {
		t.Fatalf("mapping was overwritten: %+v", matched)
	}
}

func TestUpsertMinifigsPreservesMapping(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.UpsertMinifigs(ctx, []MinifigRow{{FigNum: "fig-1", Name: "Pilot", NumParts: 3}}); err != nil {
		t.Fatalf("UpsertMinifigs: %v", err)
	}
	if err := db.CommitMatch(ctx, MatchAssignment{FigNum: "fig-1", BLMinifigNo: "sw001", Confidence: 1.0, Source: "tier1_single_set"}); err != nil {
		t.Fatalf("CommitMatch: %v", err)
	}

	// A catalog re-import must not wipe mappings from earlier runs.
	if err := db.UpsertMinifigs(ctx, []MinifigRow{{FigNum: "fig-1", Name: "Pilot (renamed)", NumParts: 3}}); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	matched, err := db.MatchedRBFigs(ctx)
	if err != nil {
		t.Fatalf("MatchedRBFigs: %v", err)
	}
	if !matched["fig-1"] {
		t.Fatal("re-import dropped an existing mapping")
	}
}

func TestColorMapPicksFirstUsableID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	err := db.UpsertColors(ctx, []ColorRow{
		{ID: 1, Name: "White", BLColorIDs: "[1]"},
		{ID: 2, Name: "Tan", BLColorIDs: "[-1, 2, 69]"},
		{ID: 3, Name: "Unknown", BLColorIDs: "[]"},
		{ID: 4, Name: "Odd", BLColorIDs: `["x", 11]`},
		{ID: 5, Name: "Unmapped", BLColorIDs: ""},
	})
	if err != nil {
		t.Fatalf("UpsertColors: %v", err)
	}

	got, err := db.ColorMap(ctx)
	if err != nil {
		t.Fatalf("ColorMap: %v", err)
	}
	want := map[int]int{1: 1, 2: 2, 4: 11}
	if len(got) != len(want) {
		t.Fatalf("ColorMap = %+v, want %+v", got, want)
	}
	for rb, bl := range want {
		if got[rb] != bl {
			t.Fatalf("ColorMap[%d] = %d, want %d", rb, got[rb], bl)
		}
	}
}

func TestSentinelRowsStayInternal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.UpsertSetMinifigs(ctx, "40000-1", nil); err != nil {
		t.Fatalf("UpsertSetMinifigs: %v", err)
	}
	if err := db.UpsertSetMinifigs(ctx, "75000-1", []BLSetMinifig{
		{SetNum: "75000-1", MinifigNo: "sw001", Name: "Trooper", Quantity: 1},
	}); err != nil {
		t.Fatalf("UpsertSetMinifigs: %v", err)
	}
	if err := db.UpsertMinifigParts(ctx, "sw001", nil); err != nil {
		t.Fatalf("UpsertMinifigParts: %v", err)
	}

	crawledSets, err := db.CrawledSets(ctx)
	if err != nil {
		t.Fatalf("CrawledSets: %v", err)
	}
	if !crawledSets["40000-1"] || !crawledSets["75000-1"] {
		t.Fatalf("crawled sets missing: %+v", crawledSets)
	}

	figs, err := db.BLFigsBySet(ctx)
	if err != nil {
		t.Fatalf("BLFigsBySet: %v", err)
	}
	if len(figs["40000-1"]) != 0 {
		t.Fatalf("sentinel visible as a fig: %+v", figs["40000-1"])
	}
	if len(figs["75000-1"]) != 1 || figs["75000-1"][0] != "sw001" {
		t.Fatalf("real fig lost: %+v", figs["75000-1"])
	}

	crawledFigs, err := db.CrawledMinifigs(ctx)
	if err != nil {
		t.Fatalf("CrawledMinifigs: %v", err)
	}
	if !crawledFigs["sw001"] {
		t.Fatal("empty minifig crawl not recorded")
	}
	parts, err := db.BLMinifigParts(ctx, "sw001")
	if err != nil {
		t.Fatalf("BLMinifigParts: %v", err)
	}
	if len(parts) != 0 {
		t.Fatalf("sentinel visible as a part: %+v", parts)
	}
	comps, err := db.AllBLCompositions(ctx)
	if err != nil {
		t.Fatalf("AllBLCompositions: %v", err)
	}
	if len(comps) != 0 {
		t.Fatalf("sentinel visible in preload: %+v", comps)
	}
}

func TestUpsertSetMinifigsReplacesSentinel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.UpsertSetMinifigs(ctx, "75000-1", nil); err != nil {
		t.Fatalf("seeding sentinel: %v", err)
	}
	// A forced re-crawl that finds real data should clear the sentinel.
	if err := db.UpsertSetMinifigs(ctx, "75000-1", []BLSetMinifig{
		{SetNum: "75000-1", MinifigNo: "sw001", Name: "Trooper", Quantity: 1},
	}); err != nil {
		t.Fatalf("re-crawl: %v", err)
	}
	figs, err := db.BLFigsBySet(ctx)
	if err != nil {
		t.Fatalf("BLFigsBySet: %v", err)
	}
	if len(figs["75000-1"]) != 1 || figs["75000-1"][0] != "sw001" {
		t.Fatalf("sentinel not replaced: %+v", figs["75000-1"])
	}
}

func TestMaterializeFigParts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.UpsertInventories(ctx, []InventoryRow{
		{ID: 10, Version: 1, SetNum: "fig-000123"},
		{ID: 20, Version: 1, SetNum: "75000-1"},
	}); err != nil {
		t.Fatalf("UpsertInventories: %v", err)
	}
	if err := db.UpsertInventoryParts(ctx, []InventoryPartRow{
		{InventoryID: 10, PartNum: "3626", ColorID: 1, Quantity: 2},
		{InventoryID: 10, PartNum: "970c00", ColorID: 0, Quantity: 1},
		{InventoryID: 10, PartNum: "3001", ColorID: 5, Quantity: 2, IsSpare: true},
		{InventoryID: 20, PartNum: "3001", ColorID: 5, Quantity: 8}, // set inventory, not a fig's
	}); err != nil {
		t.Fatalf("UpsertInventoryParts: %v", err)
	}

	n, err := db.MaterializeFigParts(ctx)
	if err != nil {
		t.Fatalf("MaterializeFigParts: %v", err)
	}
	if n != 2 {
		t.Fatalf("materialized %d rows, want 2", n)
	}

	parts, err := db.FigParts(ctx, "fig-000123")
	if err != nil {
		t.Fatalf("FigParts: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("FigParts = %+v, want 2 lines", parts)
	}
	if parts[0].PartNum != "3626" || parts[0].Quantity != 2 {
		t.Fatalf("unexpected first line: %+v", parts[0])
	}
	if parts[1].PartNum != "970c00" || parts[1].Quantity != 1 {
		t.Fatalf("unexpected second line: %+v", parts[1])
	}
}

func TestInventoriesKeysetPagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rows := []InventoryRow{
		{ID: 1, Version: 1, SetNum: "10000-1"},
		{ID: 2, Version: 1, SetNum: "20000-1"},
		{ID: 3, Version: 1, SetNum: "30000-1"},
	}
	if err := db.UpsertInventories(ctx, rows); err != nil {
		t.Fatalf("UpsertInventories: %v", err)
	}

	page1, err := db.Inventories(ctx, 0, 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page1) != 2 || page1[0].ID != 1 || page1[1].ID != 2 {
		t.Fatalf("first page = %+v", page1)
	}
	page2, err := db.Inventories(ctx, page1[len(page1)-1].ID, 2)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page2) != 1 || page2[0].SetNum != "30000-1" {
		t.Fatalf("second page = %+v", page2)
	}
}

func TestExecAtomicRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if !db.SupportsAtomic(ctx) {
		t.Skip("driver cannot run multi-statement scripts")
	}
	err := db.ExecAtomic(ctx, `
INSERT INTO part_rarity (part_num, color_id, set_count) VALUES ('3001', 5, 3);
INSERT INTO no_such_table VALUES (1);`)
	if err == nil {
		t.Fatal("expected script error")
	}
	rows, err := db.PartRarityRows(ctx)
	if err != nil {
		t.Fatalf("PartRarityRows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("partial script leaked rows: %+v", rows)
	}
}
