package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Iron-Ham/basecamp/internal/location"
	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/state"
)

// activityKeywords maps activities to the phrases that signal them. The
// first activity with a match wins, so more specific activities come first.
var activityKeywords = []struct {
	activity string
	words    []string
}{
	{"bikepacking", []string{"bikepacking", "bike packing", "bike-packing"}},
	{"trail_running", []string{"trail run", "trail running", "running", "ultra"}},
	{"hiking", []string{"hike", "hiking", "backpacking", "trek", "walk"}},
	{"mountain_biking", []string{"mountain bike", "mountain biking", "mtb", "singletrack", "ride", "biking"}},
}

// activityFromText returns the first activity the text mentions, or "".
func activityFromText(text string) string {
	t := strings.ToLower(text)
	for _, a := range activityKeywords {
		for _, w := range a.words {
			if strings.Contains(t, w) {
				return a.activity
			}
		}
	}
	return ""
}

// specialistKeywords selects optional specialists from the request text.
var specialistKeywords = map[string][]string{
	specialist.Permits:        {"permit", "pass", "fee", "wilderness"},
	specialist.Safety:         {"safe", "safety", "danger", "solo", "beginner", "heat"},
	specialist.BLM:            {"blm", "public land", "dispersed"},
	specialist.RoutePlanning:  {"route", "loop", "itinerary", "point to point"},
	specialist.Bikepacking:    {"bikepacking", "bike packing", "overnight"},
	specialist.Advocacy:       {"advocacy", "volunteer", "trail work", "stewardship"},
	specialist.Transportation: {"shuttle", "drive", "fly", "airport", "transport"},
	specialist.Accommodation:  {"stay", "lodging", "hotel", "camp", "cabin", "motel"},
	specialist.Food:           {"food", "eat", "restaurant", "brewery", "coffee", "resupply"},
	specialist.Gear:           {"gear", "pack", "bring", "equipment", "rental"},
	specialist.Community:      {"group ride", "club", "meetup", "local riders", "community"},
	specialist.Photography:    {"photo", "sunset", "sunrise", "view", "scenic"},
	specialist.Historical:     {"history", "historic", "ghost town", "mining", "ruins"},
	specialist.Planning:       {"plan", "schedule", "weekend", "trip"},
}

var skillKeywords = []struct {
	level string
	words []string
}{
	{"beginner", []string{"beginner", "novice", "first time", "easy", "new to"}},
	{"expert", []string{"expert", "advanced", "technical", "gnarly", "black diamond"}},
	{"intermediate", []string{"intermediate", "moderate"}},
}

var durationPattern = regexp.MustCompile(`(\d+)[\s-]*(day|night)s?`)

// heuristic reads an intent from keywords alone. It is used when no model
// is configured or the model's reply is unusable.
func heuristic(input string, prefs state.Preferences, locations *location.Registry) extraction {
	text := strings.ToLower(input)
	ex := extraction{
		ActivityType: activityFromText(text),
		DurationDays: parseDuration(text),
		SkillLevel:   prefs.SkillLevel,
		AgentContext: make(map[string]string),
	}
	if ex.ActivityType == "" {
		ex.ActivityType = prefs.ActivityType
	}
	if ex.DurationDays == 0 {
		ex.DurationDays = prefs.DurationDays
	}
	if ex.SkillLevel == "" {
		ex.SkillLevel = skillFromText(text)
	}
	if e, ok := locations.Find(input); ok {
		ex.Location = e.Name
	} else if prefs.Region != "" {
		ex.Location = prefs.Region
	}

	ex.RequiredAgents = []string{specialist.Geo, specialist.Weather, specialist.Trail}
	for _, name := range specialist.Core() {
		for _, w := range specialistKeywords[name] {
			if strings.Contains(text, w) {
				ex.RequiredAgents = append(ex.RequiredAgents, name)
				break
			}
		}
	}
	if ex.DurationDays > 1 {
		ex.RequiredAgents = append(ex.RequiredAgents, specialist.Accommodation, specialist.Planning)
	}
	for _, name := range ex.RequiredAgents {
		ex.AgentContext[name] = input
	}
	return ex
}

func parseDuration(text string) int {
	if m := durationPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			if m[2] == "night" {
				n++
			}
			return n
		}
	}
	switch {
	case strings.Contains(text, "weekend"):
		return 2
	case strings.Contains(text, "week"):
		return 7
	}
	return 0
}

func skillFromText(text string) string {
	for _, s := range skillKeywords {
		for _, w := range s.words {
			if strings.Contains(text, w) {
				return s.level
			}
		}
	}
	return ""
}

func (a *Analyzer) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You analyze adventure planning requests for Arizona. Identify the activity, the location, " +
		"the trip length and the skill level, and choose which specialists should contribute.\n\n")
	b.WriteString("Core specialists:\n")
	for _, name := range specialist.Core() {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteString("\nLocation specialists (include the one for the requested town):\n")
	for _, e := range a.locations.Entries() {
		fmt.Fprintf(&b, "- %s: %s\n", e.Agent, e.Name)
	}
	b.WriteString("\nReply with JSON only:\n" +
		`{"activity_type": "mountain_biking|hiking|trail_running|bikepacking", "adventure_type": "", ` +
		`"location": "", "duration_days": 0, "skill_level": "beginner|intermediate|expert", ` +
		`"required_agents": [], "agent_context": {"agent_name": "what that agent should focus on"}, ` +
		`"priority_order": []}` + "\n" +
		"Use exact specialist names. Never use group names such as location_specific_agents.")
	return b.String()
}

func userPrompt(input string, prefs state.Preferences, errCtx []state.ErrorRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", input)
	if p := describePreferences(prefs); p != "" {
		fmt.Fprintf(&b, "Preferences: %s\n", p)
	}
	if len(errCtx) > 0 {
		b.WriteString("\nPrevious agent executions encountered recoverable errors:\n")
		for _, r := range errCtx {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Specialist, r.Kind, r.Message)
		}
		b.WriteString("Choose specialists and context that avoid repeating them.\n")
	}
	return b.String()
}

func describePreferences(p state.Preferences) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("region", p.Region)
	if p.DurationDays > 0 {
		add("duration_days", strconv.Itoa(p.DurationDays))
	}
	add("skill_level", p.SkillLevel)
	add("activity_type", p.ActivityType)
	add("adventure_type", p.AdventureType)
	if p.GroupSize > 0 {
		add("group_size", strconv.Itoa(p.GroupSize))
	}
	add("budget", p.Budget)
	add("start_date", p.StartDate)
	return strings.Join(parts, ", ")
}
