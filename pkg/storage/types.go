package storage

// FigPart is one line of an RB minifig's materialized part composition.
type FigPart struct {
	FigNum   string
	PartNum  string
	ColorID  int
	Quantity int
}

// Inventory is one RB inventory header. Rows whose SetNum starts with "fig-"
// are minifig pseudo-sets carrying the fig's own part list.
type Inventory struct {
	ID     int64
	SetNum string
}

// BLSetMinifig records BrickLink's claim that a minifig appears in a set.
type BLSetMinifig struct {
	SetNum    string
	MinifigNo string
	Name      string
	Quantity  int
}

// BLMinifigPart is one line of BrickLink's part composition for a minifig.
type BLMinifigPart struct {
	MinifigNo string
	PartID    string
	ColorID   int
	Quantity  int
}

// MatchAssignment links an RB fig to a BL minifig with a confidence score and
// a tag naming the method that produced the match.
type MatchAssignment struct {
	FigNum      string
	BLMinifigNo string
	Confidence  float64
	Source      string
}

// PartRarityRow counts the distinct sets a (part, color) pair appears in.
type PartRarityRow struct {
	PartNum  string
	ColorID  int
	SetCount int
}

// MinifigRarityRow carries a fig's own set count and the set count of its
// rarest subpart.
type MinifigRarityRow struct {
	FigNum             string
	MinSubpartSetCount int
	SetCount           int
}

// MatchStat is one row of per-source match counts, for the stats command.
type MatchStat struct {
	Source string
	Count  int
}
