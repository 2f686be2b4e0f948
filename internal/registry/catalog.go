// Package registry holds the set of model descriptors known to the runtime.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"modelrt/pkg/types"
)

// Catalog is an immutable, validated set of descriptors keyed by id.
type Catalog struct {
	byID  map[string]types.ModelDescriptor
	order []string
}

// NewCatalog validates descs (non-empty, unique ids) and builds a catalog.
// Later sources should be merged by the caller before construction.
func NewCatalog(descs []types.ModelDescriptor) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]types.ModelDescriptor, len(descs))}
	for i, d := range descs {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return nil, fmt.Errorf("descriptor %d: empty id", i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("descriptor %d: duplicate id %q", i, id)
		}
		if d.TokenLimit < 0 {
			return nil, fmt.Errorf("descriptor %q: negative token_limit", id)
		}
		d.ID = id
		c.byID[id] = d.Clone()
		c.order = append(c.order, id)
	}
	sort.Strings(c.order)
	return c, nil
}

// Merge combines descriptor lists; entries in later lists override earlier
// ones with the same id.
func Merge(lists ...[]types.ModelDescriptor) []types.ModelDescriptor {
	idx := map[string]int{}
	var out []types.ModelDescriptor
	for _, l := range lists {
		for _, d := range l {
			if i, ok := idx[d.ID]; ok {
				out[i] = d
				continue
			}
			idx[d.ID] = len(out)
			out = append(out, d)
		}
	}
	return out
}

// Lookup returns a copy of the descriptor for id.
func (c *Catalog) Lookup(id string) (types.ModelDescriptor, bool) {
	if c == nil {
		return types.ModelDescriptor{}, false
	}
	d, ok := c.byID[id]
	if !ok {
		return types.ModelDescriptor{}, false
	}
	return d.Clone(), true
}

// List returns copies of all descriptors sorted by id.
func (c *Catalog) List() []types.ModelDescriptor {
	if c == nil {
		return nil
	}
	out := make([]types.ModelDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Clone())
	}
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
