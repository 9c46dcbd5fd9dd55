// Package location holds the registry of Arizona towns that have a
// location knowledge agent. The registry is an embedded YAML document so
// adding a town does not require code changes.
package location

import (
	_ "embed"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultRegion is used when a request names no location.
const DefaultRegion = "Arizona"

//go:embed arizona.yaml
var arizonaYAML []byte

var stateAbbrev = regexp.MustCompile(`\baz\b`)

// Entry describes one location agent.
type Entry struct {
	Keyword     string            `yaml:"-" json:"keyword"`
	Agent       string            `yaml:"agent" json:"agent"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Region      string            `yaml:"region" json:"region"`
	County      string            `yaml:"county" json:"county,omitempty"`
	Lat         float64           `yaml:"lat" json:"lat"`
	Lon         float64           `yaml:"lon" json:"lon"`
	ElevationFt int               `yaml:"elevation_ft" json:"elevation_ft,omitempty"`
	Aliases     []string          `yaml:"aliases" json:"aliases,omitempty"`
	Highlights  []string          `yaml:"highlights" json:"highlights,omitempty"`
	Notes       map[string]string `yaml:"notes" json:"notes,omitempty"`
}

// Town returns the name without the state suffix.
func (e Entry) Town() string {
	return strings.TrimSuffix(e.Name, ", Arizona")
}

type document struct {
	Regions   map[string]string `yaml:"regions"`
	Locations map[string]Entry  `yaml:"locations"`
}

type matcher struct {
	keyword string
	re      *regexp.Regexp
}

// Registry maps location keywords to agents. It is immutable after Load.
type Registry struct {
	entries  map[string]Entry // keyword or alias -> entry
	keywords []string         // primary keywords, sorted
	regions  map[string]string
	matchers []matcher // longest phrase first
}

// Load parses a registry document.
func Load(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse location registry: %w", err)
	}

	r := &Registry{
		entries: make(map[string]Entry),
		regions: doc.Regions,
	}
	for key, e := range doc.Locations {
		key = canonical(key)
		if e.Agent == "" || e.Name == "" {
			return nil, fmt.Errorf("location %q: agent and name are required", key)
		}
		if !strings.HasSuffix(e.Agent, "_agent") {
			return nil, fmt.Errorf("location %q: agent %q must end in _agent", key, e.Agent)
		}
		e.Keyword = key
		r.entries[key] = e
		r.keywords = append(r.keywords, key)

		phrases := []string{key}
		for _, alias := range e.Aliases {
			a := canonical(alias)
			if _, taken := r.entries[a]; !taken {
				r.entries[a] = e
			}
			phrases = append(phrases, a)
		}
		for _, p := range phrases {
			words := strings.ReplaceAll(p, "_", `[\s_-]+`)
			r.matchers = append(r.matchers, matcher{
				keyword: key,
				re:      regexp.MustCompile(`\b` + words + `\b`),
			})
		}
	}
	sort.Strings(r.keywords)
	sort.SliceStable(r.matchers, func(i, j int) bool {
		return len(r.matchers[i].re.String()) > len(r.matchers[j].re.String())
	})
	return r, nil
}

var arizona = sync.OnceValue(func() *Registry {
	r, err := Load(arizonaYAML)
	if err != nil {
		panic(err)
	}
	return r
})

// Arizona returns the embedded registry.
func Arizona() *Registry {
	return arizona()
}

// canonical lower-cases s and joins words with underscores.
func canonical(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
	return s
}

// Lookup finds the entry for a location name such as "Sedona, AZ".
func (r *Registry) Lookup(location string) (Entry, bool) {
	loc := strings.ToLower(strings.TrimSpace(location))
	loc = strings.ReplaceAll(loc, ", arizona", "")
	loc = strings.ReplaceAll(loc, ", az", "")
	e, ok := r.entries[canonical(loc)]
	return e, ok
}

// Find scans free text for a known location and returns the one that
// appears first. Longer phrases win at the same position.
func (r *Registry) Find(text string) (Entry, bool) {
	lower := strings.ToLower(text)
	best, bestAt := "", -1
	for _, m := range r.matchers {
		loc := m.re.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		if bestAt == -1 || loc[0] < bestAt {
			best, bestAt = m.keyword, loc[0]
		}
	}
	if bestAt == -1 {
		return Entry{}, false
	}
	return r.entries[best], true
}

// ByAgent returns the first entry served by agent.
func (r *Registry) ByAgent(agent string) (Entry, bool) {
	for _, k := range r.keywords {
		if e := r.entries[k]; e.Agent == agent {
			return e, true
		}
	}
	return Entry{}, false
}

// Agents returns the distinct agent names, sorted.
func (r *Registry) Agents() []string {
	var agents []string
	for _, k := range r.keywords {
		agents = append(agents, r.entries[k].Agent)
	}
	slices.Sort(agents)
	return slices.Compact(agents)
}

// Entries returns the primary entries sorted by keyword.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.keywords))
	for _, k := range r.keywords {
		out = append(out, r.entries[k])
	}
	return out
}

// RegionDescription returns the description of a region key such as
// "northern_arizona".
func (r *Registry) RegionDescription(region string) string {
	return r.regions[region]
}

// IsArizona reports whether text names Arizona or a known Arizona town.
func (r *Registry) IsArizona(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "arizona") || stateAbbrev.MatchString(lower) {
		return true
	}
	_, ok := r.Find(text)
	return ok
}
