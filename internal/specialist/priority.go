package specialist

import (
	"slices"
	"sync"
)

// defaultDependencies records which specialists consume another's output.
// A dependency that is not part of a run's required set is ignored.
var defaultDependencies = map[string][]string{
	Trail:         {Geo},
	RoutePlanning: {Geo, Trail},
	Bikepacking:   {Geo, Trail},
	Photography:   {Trail},
	Historical:    {Trail},
	Food:          {Trail},
	Safety:        {Trail},
	Planning:      {Geo, Trail},
}

// Table is the fixed dispatch priority order plus the dependency map.
//
// The order is total: core specialists first in their fixed order, then
// location specialists alphabetically, then names the table does not know,
// in the order a run requested them. Every location specialist depends on
// geo.
type Table struct {
	mu        sync.RWMutex
	rank      map[string]int
	deps      map[string][]string
	locations map[string]bool
}

// NewTable builds the table for the core specialists plus the given
// location specialists.
func NewTable(locations []string) *Table {
	t := &Table{
		rank:      make(map[string]int, len(coreOrder)+len(locations)),
		deps:      make(map[string][]string, len(defaultDependencies)+len(locations)),
		locations: make(map[string]bool, len(locations)),
	}
	for i, name := range coreOrder {
		t.rank[name] = i
	}
	for name, deps := range defaultDependencies {
		t.deps[name] = slices.Clone(deps)
	}

	sorted := slices.Clone(locations)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, name := range sorted {
		if _, core := t.rank[name]; core {
			continue
		}
		t.rank[name] = len(t.rank)
		t.deps[name] = []string{Geo}
		t.locations[name] = true
	}
	return t
}

// Known reports whether name has a fixed rank.
func (t *Table) Known(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rank[name]
	return ok
}

// IsLocation reports whether name is a location specialist.
func (t *Table) IsLocation(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.locations[name]
}

// Locations returns the location specialists in priority order.
func (t *Table) Locations() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.locations))
	for name := range t.locations {
		out = append(out, name)
	}
	slices.SortFunc(out, func(a, b string) int { return t.rank[a] - t.rank[b] })
	return out
}

// SetDependencies replaces the dependencies of name.
func (t *Table) SetDependencies(name string, deps ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deps[name] = slices.Clone(deps)
}

// Dependencies returns what name consumes, restricted to required.
func (t *Table) Dependencies(name string, required []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for _, d := range t.deps[name] {
		if d != name && slices.Contains(required, d) {
			out = append(out, d)
		}
	}
	return out
}

// Order returns required sorted by priority. Names without a rank keep
// their relative request order after every ranked name.
func (t *Table) Order(required []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	unknownBase := len(t.rank)
	keys := make(map[string]int, len(required))
	for i, name := range required {
		if r, ok := t.rank[name]; ok {
			keys[name] = r
		} else if _, dup := keys[name]; !dup {
			keys[name] = unknownBase + i
		}
	}

	out := slices.Clone(required)
	slices.SortStableFunc(out, func(a, b string) int { return keys[a] - keys[b] })
	return slices.Compact(out)
}
