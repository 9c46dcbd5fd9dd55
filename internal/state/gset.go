package state

import "slices"

// GSet is a grow-only set of names. Membership is the union of every Add
// and Merge, so merges are commutative and duplicate-tolerant; the log
// keeps every contribution, duplicates included, for auditing.
//
// A GSet is not safe for concurrent use; PlanState guards its own.
type GSet struct {
	members map[string]struct{}
	log     []string
}

// NewGSet returns a set containing names.
func NewGSet(names ...string) *GSet {
	s := &GSet{members: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add records name and reports whether it was new.
func (s *GSet) Add(name string) bool {
	if s.members == nil {
		s.members = make(map[string]struct{})
	}
	s.log = append(s.log, name)
	if _, ok := s.members[name]; ok {
		return false
	}
	s.members[name] = struct{}{}
	return true
}

// Has reports membership.
func (s *GSet) Has(name string) bool {
	_, ok := s.members[name]
	return ok
}

// Len returns the number of distinct members.
func (s *GSet) Len() int {
	return len(s.members)
}

// Members returns the members in sorted order.
func (s *GSet) Members() []string {
	out := make([]string, 0, len(s.members))
	for n := range s.members {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Log returns every recorded contribution in arrival order.
func (s *GSet) Log() []string {
	return slices.Clone(s.log)
}

// Merge folds other into s.
func (s *GSet) Merge(other *GSet) {
	if other == nil {
		return
	}
	for _, n := range other.log {
		s.Add(n)
	}
}

// SubsetOf reports whether every member appears in names.
func (s *GSet) SubsetOf(names []string) bool {
	for n := range s.members {
		if !slices.Contains(names, n) {
			return false
		}
	}
	return true
}

// Equals reports whether s has exactly the distinct members in names.
func (s *GSet) Equals(names []string) bool {
	distinct := NewGSet(names...)
	return distinct.Len() == s.Len() && s.SubsetOf(names)
}

// ErrorLog is an append-only list of error records. Merging concatenates;
// records are never deduplicated or dropped.
type ErrorLog []ErrorRecord

// Append returns the log with rec added.
func (l ErrorLog) Append(rec ...ErrorRecord) ErrorLog {
	return append(l, rec...)
}

// Merge returns the concatenation of l and other.
func (l ErrorLog) Merge(other ErrorLog) ErrorLog {
	out := make(ErrorLog, 0, len(l)+len(other))
	out = append(out, l...)
	return append(out, other...)
}

// For returns the records attributed to specialist.
func (l ErrorLog) For(specialist string) []ErrorRecord {
	var out []ErrorRecord
	for _, r := range l {
		if r.Specialist == specialist {
			out = append(out, r)
		}
	}
	return out
}
