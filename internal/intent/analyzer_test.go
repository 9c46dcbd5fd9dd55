package intent

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/llm"
	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/state"
)

func TestAnalyze_LLM(t *testing.T) {
	fake := llm.NewFake().On(AgentName, llm.FakeReply{Content: `{
		"activity_type": "mountain_biking",
		"location": "Sedona",
		"duration_days": "3",
		"skill_level": "Intermediate",
		"required_agents": ["Geo Agent", "trail_agent", "location_specific_agents", "unicorn_agent", "trail_agent"],
		"agent_context": {"trail_agent": "flowy singletrack", "weather_agent": "not required"},
		"priority_order": ["trail_agent", "geo_agent", "weather_agent"]
	}`})
	a := New(Options{LLM: fake})

	res := a.Analyze(context.Background(), "3 days riding in Sedona", state.Preferences{})
	if res.Source != SourceLLM {
		t.Fatalf("Source = %s, want llm", res.Source)
	}
	in := res.Intent

	want := []string{specialist.Geo, specialist.Trail, "sedona_agent"}
	if !slices.Equal(in.RequiredSpecialists, want) {
		t.Errorf("RequiredSpecialists = %v, want %v", in.RequiredSpecialists, want)
	}
	if in.DurationDays != 3 || in.SkillLevel != "intermediate" {
		t.Errorf("DurationDays = %d, SkillLevel = %q", in.DurationDays, in.SkillLevel)
	}
	if !slices.Contains(res.Dropped, "location_specific_agents") || !slices.Contains(res.Dropped, "unicorn_agent") {
		t.Errorf("Dropped = %v, want the group name and the unknown name", res.Dropped)
	}
	if _, ok := in.Context[specialist.Weather]; ok {
		t.Error("context kept for a specialist that is not required")
	}
	if in.Context[specialist.Trail] != "flowy singletrack" {
		t.Errorf("trail context = %q", in.Context[specialist.Trail])
	}
	if !strings.Contains(in.Context["sedona_agent"], "leveraging existing agent outputs for mountain biking") {
		t.Errorf("location context = %q", in.Context["sedona_agent"])
	}
	if !slices.Equal(in.SuggestedOrder, []string{specialist.Trail, specialist.Geo}) {
		t.Errorf("SuggestedOrder = %v", in.SuggestedOrder)
	}
}

func TestAnalyze_FallsBackToHeuristic(t *testing.T) {
	tests := []struct {
		name  string
		reply llm.FakeReply
	}{
		{"upstream error", llm.FakeReply{Err: errors.NewToolError("llm", "unexpected status 503", errors.ErrUpstream)}},
		{"prose reply", llm.FakeReply{Content: "I would love to help you plan!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(Options{LLM: llm.NewFake().Always(tt.reply)})
			res := a.Analyze(context.Background(), "weekend bikepacking trip near Flagstaff", state.Preferences{})
			if res.Source != SourceHeuristic {
				t.Fatalf("Source = %s, want heuristic", res.Source)
			}
			if res.Intent.ActivityType != "bikepacking" || res.Intent.DurationDays != 2 {
				t.Errorf("Intent = %+v", res.Intent)
			}
			if !slices.Contains(res.Intent.RequiredSpecialists, "flagstaff_agent") {
				t.Errorf("RequiredSpecialists = %v, want flagstaff_agent", res.Intent.RequiredSpecialists)
			}
		})
	}
}

func TestAnalyze_MinimalFallback(t *testing.T) {
	fake := llm.NewFake().Always(llm.FakeReply{Content: `{"required_agents": ["location_specific_agents"]}`})
	a := New(Options{LLM: fake})

	input := "something outdoors"
	res := a.Analyze(context.Background(), input, state.Preferences{})
	if res.Source != SourceMinimal {
		t.Fatalf("Source = %s, want minimal", res.Source)
	}
	in := res.Intent
	if !slices.Equal(in.RequiredSpecialists, []string{specialist.Geo, specialist.Trail}) {
		t.Errorf("RequiredSpecialists = %v", in.RequiredSpecialists)
	}
	if in.Context[specialist.Geo] != input || in.Context[specialist.Trail] != input {
		t.Errorf("Context = %v, want the input for both", in.Context)
	}
	if in.ActivityType != DefaultActivity || in.Location != "Arizona" {
		t.Errorf("ActivityType = %q, Location = %q", in.ActivityType, in.Location)
	}
}

func TestInferActivity(t *testing.T) {
	tests := []struct {
		adventure string
		prefs     state.Preferences
		want      string
	}{
		{"day hiking", state.Preferences{}, "hiking"},
		{"Trail Run", state.Preferences{}, "trail_running"},
		{"bikepacking overnighter", state.Preferences{}, "bikepacking"},
		{"desert tour", state.Preferences{ActivityType: "hiking"}, DefaultActivity},
		{"", state.Preferences{ActivityType: "hiking"}, "hiking"},
		{"", state.Preferences{AdventureType: "running"}, "trail_running"},
		{"", state.Preferences{}, DefaultActivity},
	}
	for _, tt := range tests {
		if got := inferActivity(tt.adventure, tt.prefs); got != tt.want {
			t.Errorf("inferActivity(%q, %+v) = %q, want %q", tt.adventure, tt.prefs, got, tt.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"3 day tour", 3},
		{"a 5-day loop", 5},
		{"2 nights out", 3},
		{"long weekend", 2},
		{"a week in the desert", 7},
		{"quick ride", 0},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.text); got != tt.want {
			t.Errorf("parseDuration(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestHeuristic(t *testing.T) {
	a := New(Options{})
	res := a.Analyze(context.Background(),
		"Beginner-friendly 3 day trip to Prescott with good food and a place to stay", state.Preferences{})

	in := res.Intent
	if res.Source != SourceHeuristic {
		t.Fatalf("Source = %s", res.Source)
	}
	if in.SkillLevel != "beginner" || in.DurationDays != 3 {
		t.Errorf("SkillLevel = %q, DurationDays = %d", in.SkillLevel, in.DurationDays)
	}
	for _, name := range []string{specialist.Geo, specialist.Weather, specialist.Trail,
		specialist.Food, specialist.Accommodation, specialist.Safety, "prescott_agent"} {
		if !slices.Contains(in.RequiredSpecialists, name) {
			t.Errorf("RequiredSpecialists = %v, missing %s", in.RequiredSpecialists, name)
		}
	}
	if in.Location != "Prescott, Arizona" {
		t.Errorf("Location = %q", in.Location)
	}
}

func TestAnalyze_RegionPreference(t *testing.T) {
	a := New(Options{})
	res := a.Analyze(context.Background(), "mountain biking", state.Preferences{Region: "Tucson"})
	if res.Intent.Location != "Tucson" {
		t.Errorf("Location = %q, want the preferred region", res.Intent.Location)
	}
	if !slices.Contains(res.Intent.RequiredSpecialists, "tucson_agent") {
		t.Errorf("RequiredSpecialists = %v, want tucson_agent", res.Intent.RequiredSpecialists)
	}
}

func TestAnalyze_ErrorContextInPrompt(t *testing.T) {
	fake := llm.NewFake().Always(llm.FakeReply{Content: `{"required_agents": ["geo_agent"]}`})
	a := New(Options{LLM: fake})

	rec := state.ErrorRecord{Specialist: specialist.Weather, Kind: errors.KindTransient, Message: "throttled"}
	a.Analyze(context.Background(), "ride in Payson", state.Preferences{}, WithErrorContext([]state.ErrorRecord{rec}))

	reqs := fake.RequestsFor(AgentName)
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	prompt := llm.Prompt(reqs[0])
	if !strings.Contains(prompt, "Previous agent executions encountered recoverable errors") ||
		!strings.Contains(prompt, "weather_agent (TRANSIENT): throttled") {
		t.Errorf("prompt lacks the error context:\n%s", prompt)
	}
}
