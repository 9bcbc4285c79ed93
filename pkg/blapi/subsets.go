package blapi

import "github.com/tidwall/gjson"

// Item types used by the subsets endpoint.
const (
	ItemTypeMinifig = "MINIFIG"
	ItemTypePart    = "PART"
)

// SubsetEntry is one flattened line of a subsets response.
type SubsetEntry struct {
	ItemNo   string
	ItemType string
	ItemName string
	ColorID  int
	Quantity int
}

// ParseSubsets flattens the API's grouped envelope
// { data: [ { entries: [ ... ] } ] } into a single list, keeping only
// entries of the wanted item type. An empty itemType keeps everything.
func ParseSubsets(body, itemType string) []SubsetEntry {
	var out []SubsetEntry
	gjson.Get(body, "data").ForEach(func(_, group gjson.Result) bool {
		group.Get("entries").ForEach(func(_, entry gjson.Result) bool {
			typ := entry.Get("item.type").String()
			if itemType != "" && typ != itemType {
				return true
			}
			qty := int(entry.Get("quantity").Int())
			if qty <= 0 {
				qty = 1
			}
			out = append(out, SubsetEntry{
				ItemNo:   entry.Get("item.no").String(),
				ItemType: typ,
				ItemName: entry.Get("item.name").String(),
				ColorID:  int(entry.Get("color_id").Int()),
				Quantity: qty,
			})
			return true
		})
		return true
	})
	return out
}
