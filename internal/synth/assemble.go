package synth

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Iron-Ham/basecamp/internal/state"
)

// sectionOf names the plan section a core specialist contributes to.
// Location agents contribute to "location".
var sectionOf = map[string]string{
	"geo_agent":            "location",
	"weather_agent":        "weather",
	"permits_agent":        "permits",
	"safety_agent":         "safety",
	"blm_agent":            "public_lands",
	"trail_agent":          "trails",
	"route_planning_agent": "route",
	"bikepacking_agent":    "bikepacking",
	"advocacy_agent":       "advocacy",
	"transportation_agent": "transportation",
	"accommodation_agent":  "accommodation",
	"food_agent":           "food",
	"gear_agent":           "gear",
	"community_agent":      "community",
	"photography_agent":    "photography",
	"historical_agent":     "history",
	"planning_agent":       "planning",
}

// assemble builds a plan directly from the specialist outputs. It is used
// when no model is configured.
func assemble(src Source) state.Plan {
	plan := state.Plan{
		Title:    defaultTitle(src),
		Sections: make(map[string]string),
	}

	var route *state.RoutePlan
	var guides []*state.Guide
	for _, name := range src.Required() {
		out, ok := src.Output(name)
		if !ok || out.Empty() {
			continue
		}
		section := sectionOf[name]
		if section == "" {
			section = "location"
		}
		text := describe(out)
		if text != "" {
			if prev := plan.Sections[section]; prev != "" {
				text = prev + "\n" + text
			}
			plan.Sections[section] = text
		}

		switch v := out.Payload.(type) {
		case *state.GearList:
			for _, it := range v.Items {
				plan.GearChecklist = append(plan.GearChecklist, it.Name)
			}
		case *state.WeatherResult:
			plan.SafetyNotes = append(plan.SafetyNotes, v.Alerts...)
		case *state.RoutePlan:
			if route == nil || len(v.Segments) > len(route.Segments) {
				route = v
			}
		case *state.Guide:
			if name == "safety_agent" {
				plan.SafetyNotes = append(plan.SafetyNotes, v.Highlights...)
			}
			guides = append(guides, v)
		}
	}

	plan.Itinerary = itinerary(src, route, guides)
	plan.Description = description(src, len(plan.Itinerary))
	if len(plan.Sections) == 0 {
		plan.Sections = nil
	}
	return plan
}

func defaultTitle(src Source) string {
	in := src.Intent()
	if in == nil {
		return "Adventure Plan"
	}
	what := titleCase(strings.ReplaceAll(in.ActivityType, "_", " "))
	where := in.Location
	if i := strings.Index(where, ","); i > 0 {
		where = where[:i]
	}
	switch {
	case in.DurationDays > 1 && where != "":
		return fmt.Sprintf("%d-Day %s Adventure in %s", in.DurationDays, what, where)
	case where != "":
		return fmt.Sprintf("%s Adventure in %s", what, where)
	}
	return what + " Adventure"
}

func description(src Source, days int) string {
	in := src.Intent()
	input := strings.TrimSpace(src.UserInput())
	if in == nil || days == 0 {
		return "Plan for: " + input
	}
	return fmt.Sprintf("A %d-day %s plan for: %s", days, strings.ReplaceAll(in.ActivityType, "_", " "), input)
}

// itinerary prefers route segments, then the planning guide's day_N
// sections, then one generic day per requested day.
func itinerary(src Source, route *state.RoutePlan, guides []*state.Guide) []state.DayPlan {
	if route != nil && len(route.Segments) > 0 {
		days := make([]state.DayPlan, 0, len(route.Segments))
		for _, seg := range route.Segments {
			d := state.DayPlan{Day: seg.Day, Title: fmt.Sprintf("%s to %s", seg.From, seg.To)}
			if seg.Miles > 0 {
				d.Activities = []string{fmt.Sprintf("%.1f miles", seg.Miles)}
			}
			if seg.Surface != "" {
				d.Notes = seg.Surface
			}
			days = append(days, d)
		}
		return days
	}

	for _, g := range guides {
		var keys []string
		for k := range g.Sections {
			if strings.HasPrefix(k, "day_") {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			continue
		}
		sort.Slice(keys, func(i, j int) bool { return dayNumber(keys[i]) < dayNumber(keys[j]) })
		days := make([]state.DayPlan, 0, len(keys))
		for _, k := range keys {
			n := dayNumber(k)
			days = append(days, state.DayPlan{Day: n, Title: fmt.Sprintf("Day %d", n), Activities: []string{g.Sections[k]}})
		}
		return days
	}

	n := 1
	if in := src.Intent(); in != nil && in.DurationDays > 0 {
		n = in.DurationDays
	}
	days := make([]state.DayPlan, n)
	for i := range days {
		days[i] = state.DayPlan{Day: i + 1, Title: fmt.Sprintf("Day %d", i+1)}
	}
	return days
}

func dayNumber(key string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(key, "day_"))
	return n
}

// describe renders one output as a short paragraph.
func describe(out state.Output) string {
	switch v := out.Payload.(type) {
	case *state.GeoResult:
		s := fmt.Sprintf("%s (%.4f, %.4f)", v.DisplayName, v.Lat, v.Lon)
		if v.ElevationFt > 0 {
			s += fmt.Sprintf(", elevation %d ft", v.ElevationFt)
		}
		return s
	case *state.WeatherResult:
		return v.Summary
	case *state.TrailList:
		names := make([]string, 0, len(v.Trails))
		for _, t := range head(v.Trails) {
			names = append(names, t.Name)
		}
		return joinSummary(v.Summary, names)
	case *state.PermitList:
		names := make([]string, 0, len(v.Permits))
		for _, p := range v.Permits {
			names = append(names, p.Name)
		}
		return joinSummary(v.Summary, names)
	case *state.LodgingList:
		names := make([]string, 0, len(v.Options))
		for _, o := range head(v.Options) {
			names = append(names, o.Name)
		}
		return joinSummary(v.Summary, names)
	case *state.FoodList:
		names := make([]string, 0, len(v.Options))
		for _, o := range head(v.Options) {
			names = append(names, o.Name)
		}
		return joinSummary(v.Summary, names)
	case *state.GearList:
		return v.Summary
	case *state.RoutePlan:
		if v.Summary != "" {
			return v.Summary
		}
		return fmt.Sprintf("%d segments, %.1f miles", len(v.Segments), v.TotalMiles)
	case *state.Guide:
		return joinSummary(v.Summary, v.Highlights)
	case *state.Raw:
		return truncate(out)
	}
	return ""
}

func joinSummary(summary string, items []string) string {
	if len(items) == 0 {
		return summary
	}
	list := strings.Join(items, ", ")
	if summary == "" {
		return list
	}
	return summary + ": " + list
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
