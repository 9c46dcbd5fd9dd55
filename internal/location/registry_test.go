package location

import (
	"slices"
	"strings"
	"testing"
)

func TestLookup(t *testing.T) {
	r := Arizona()
	tests := []struct {
		input     string
		wantAgent string
		wantOK    bool
	}{
		{"Sedona", "sedona_agent", true},
		{"sedona, arizona", "sedona_agent", true},
		{"  Flagstaff, AZ ", "flagstaff_agent", true},
		{"Grand Canyon", "grand_canyon_agent", true},
		{"grand-canyon", "grand_canyon_agent", true},
		{"Lake Havasu City", "lake_havasu_agent", true},
		{"Pinetop-Lakeside, Arizona", "pinetop_agent", true},
		{"Miami", "globe_miami_agent", true},
		{"Moab", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			e, ok := r.Lookup(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if e.Agent != tt.wantAgent {
				t.Errorf("Lookup(%q).Agent = %q, want %q", tt.input, e.Agent, tt.wantAgent)
			}
		})
	}
}

func TestFind(t *testing.T) {
	r := Arizona()
	tests := []struct {
		text      string
		wantAgent string
	}{
		{"I want to mountain bike in Sedona for 3 days", "sedona_agent"},
		{"Hiking near the Grand Canyon south rim", "grand_canyon_agent"},
		{"Start in Tucson, finish in Bisbee", "tucson_agent"},
		{"desert rides around lake havasu", "lake_havasu_agent"},
		{"Bikepacking the Arizona Trail", ""},
		{"sedonaish", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			e, ok := r.Find(tt.text)
			if tt.wantAgent == "" {
				if ok {
					t.Errorf("Find(%q) = %q, want no match", tt.text, e.Agent)
				}
				return
			}
			if !ok || e.Agent != tt.wantAgent {
				t.Errorf("Find(%q) = %q, %v, want %q", tt.text, e.Agent, ok, tt.wantAgent)
			}
		})
	}
}

func TestAgents(t *testing.T) {
	agents := Arizona().Agents()
	if !slices.IsSorted(agents) {
		t.Errorf("Agents() not sorted: %v", agents)
	}
	if len(slices.Compact(slices.Clone(agents))) != len(agents) {
		t.Errorf("Agents() has duplicates: %v", agents)
	}
	for _, want := range []string{"sedona_agent", "globe_miami_agent", "springerville_eagar_agent"} {
		if !slices.Contains(agents, want) {
			t.Errorf("Agents() missing %s", want)
		}
	}
	for _, a := range agents {
		if !strings.HasSuffix(a, "_agent") {
			t.Errorf("agent %q lacks the _agent suffix", a)
		}
	}
	// globe and miami share one agent.
	if len(agents) >= len(Arizona().Entries()) {
		t.Errorf("Agents() = %d, want fewer than %d entries", len(agents), len(Arizona().Entries()))
	}
}

func TestEntryData(t *testing.T) {
	r := Arizona()
	e, ok := r.ByAgent("sedona_agent")
	if !ok {
		t.Fatal("ByAgent(sedona_agent) not found")
	}
	if e.Town() != "Sedona" || e.Lat == 0 || e.Lon == 0 || len(e.Highlights) == 0 {
		t.Errorf("sedona entry = %+v", e)
	}
	if r.RegionDescription(e.Region) == "" {
		t.Errorf("region %q has no description", e.Region)
	}
	for _, e := range r.Entries() {
		if r.RegionDescription(e.Region) == "" {
			t.Errorf("%s: unknown region %q", e.Keyword, e.Region)
		}
	}
}

func TestIsArizona(t *testing.T) {
	r := Arizona()
	tests := []struct {
		text string
		want bool
	}{
		{"Prescott", true},
		{"somewhere in AZ", true},
		{"Arizona Trail", true},
		{"Moab, Utah", false},
		{"a lazy weekend", false},
	}
	for _, tt := range tests {
		if got := r.IsArizona(tt.text); got != tt.want {
			t.Errorf("IsArizona(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":      "locations: [",
		"missing agent": "locations:\n  x:\n    name: X\n",
		"bad suffix":    "locations:\n  x:\n    name: X\n    agent: x_bot\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load([]byte(doc)); err == nil {
				t.Error("Load() succeeded")
			}
		})
	}
}
