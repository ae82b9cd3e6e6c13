// Package catalog serves the static accommodation catalog. It is decoded and
// validated once at startup and never modified afterwards.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/exp/slices"

	"github.com/iliyamo/student-stay/internal/model"
)

//go:embed catalog.json
var embedded []byte

// Catalog is an immutable, ordered set of accommodations.
type Catalog struct {
	items []model.Accommodation
	byID  map[int]int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) { return Parse(embedded) }

// LoadFile reads a catalog from a JSON file, used when CATALOG_FILE is set.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a JSON array of accommodations.
func Parse(raw []byte) (*Catalog, error) {
	var items []model.Accommodation
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(items)
}

// New builds a catalog from items, keeping their order.
func New(items []model.Accommodation) (*Catalog, error) {
	c := &Catalog{items: slices.Clone(items), byID: make(map[int]int, len(items))}
	for i, a := range c.items {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[a.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %d", a.ID)
		}
		c.byID[a.ID] = i
	}
	return c, nil
}

// All returns every entry in catalog order. The slice must not be modified.
func (c *Catalog) All() []model.Accommodation { return c.items }

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.items) }

// Get returns the entry with the given id.
func (c *Catalog) Get(id int) (model.Accommodation, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Accommodation{}, false
	}
	return c.items[i], true
}

// Has reports whether id exists in the catalog.
func (c *Catalog) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// Subset returns the entries whose ids are in ids, in catalog order. Unknown
// ids are skipped.
func (c *Catalog) Subset(ids []int) []model.Accommodation {
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]model.Accommodation, 0, len(want))
	for _, a := range c.items {
		if _, ok := want[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Colleges lists every college that appears in a distance map, excluding
// the "Other" fallback, sorted by name.
func (c *Catalog) Colleges() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, a := range c.items {
		for name := range a.Distance {
			if name == model.OtherCollege {
				continue
			}
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	slices.Sort(out)
	return out
}
