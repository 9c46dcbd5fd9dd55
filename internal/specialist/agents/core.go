package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/state"
)

type registration struct {
	name string
	impl specialist.Specialist
}

// trailRadiusKm is how far from the trip location trails are searched.
const trailRadiusKm = 25

func core(deps Deps) []registration {
	guide := func(name, system string, upstream []string, raw func(specialist.Request) *state.Guide) registration {
		return registration{name, &enhanced{
			name:     name,
			system:   system,
			upstream: upstream,
			deps:     deps,
			gather: func(_ context.Context, req specialist.Request) (any, state.Output, error) {
				g := raw(req)
				return g, state.NewOutput(g), nil
			},
			payload: func() state.Payload { return &state.Guide{} },
		}}
	}

	return []registration{
		{specialist.Geo, specialist.Func(func(ctx context.Context, req specialist.Request) (state.Output, error) {
			geo, err := resolve(ctx, deps, req)
			if err != nil {
				return state.Output{}, err
			}
			return state.NewOutput(geo), nil
		})},
		{specialist.Weather, specialist.Func(func(ctx context.Context, req specialist.Request) (state.Output, error) {
			return weather(ctx, deps, req)
		})},
		{specialist.Trail, &enhanced{
			name: specialist.Trail,
			system: "You are a trail expert. From the candidate trails in Facts, choose the ones that suit the " +
				"rider's or hiker's skill level and trip length. Reply with JSON: " +
				`{"trails":[{"name","length_mi","difficulty","surface","notes"}],"summary"}. Only use trails from Facts.`,
			upstream: []string{specialist.Geo},
			deps:     deps,
			gather:   func(ctx context.Context, req specialist.Request) (any, state.Output, error) { return trails(ctx, deps, req) },
			payload:  func() state.Payload { return &state.TrailList{} },
		}},
		{specialist.RoutePlanning, routeAgent(deps, specialist.RoutePlanning,
			"You plan multi-day routes. Split the trails in trail_agent output into daily legs that fit the "+
				"duration and skill level. Reply with JSON: "+
				`{"segments":[{"day","from","to","miles","gain_ft","surface"}],"total_miles","summary"}.`)},
		{specialist.Bikepacking, routeAgent(deps, specialist.Bikepacking,
			"You plan bikepacking routes with resupply and camp spots. Reply with JSON: "+
				`{"segments":[{"day","from","to","miles","gain_ft","surface"}],"total_miles","summary"}.`)},
		{specialist.Permits, &enhanced{
			name: specialist.Permits,
			system: "You know land-use permits and passes in Arizona. List the permits the trip needs. " +
				`Reply with JSON: {"permits":[{"name","agency","required","notes"}],"summary"}.`,
			deps: deps,
			gather: func(_ context.Context, req specialist.Request) (any, state.Output, error) {
				p := permits(deps, req)
				return p, state.NewOutput(p), nil
			},
			payload: func() state.Payload { return &state.PermitList{} },
		}},
		{specialist.Gear, &enhanced{
			name: specialist.Gear,
			system: "You build gear checklists. Adjust the checklist in Facts to the weather and trip length. " +
				`Reply with JSON: {"items":[{"name","category","required"}],"summary"}.`,
			upstream: []string{specialist.Weather},
			deps:     deps,
			gather: func(_ context.Context, req specialist.Request) (any, state.Output, error) {
				g := gearList(req)
				return g, state.NewOutput(g), nil
			},
			payload: func() state.Payload { return &state.GearList{} },
		}},
		{specialist.Accommodation, &enhanced{
			name: specialist.Accommodation,
			system: "You recommend campgrounds, dispersed sites and lodging near the route. " +
				`Reply with JSON: {"options":[{"name","type","price","notes"}],"summary"}.`,
			upstream: []string{specialist.Geo},
			deps:     deps,
			gather: func(_ context.Context, req specialist.Request) (any, state.Output, error) {
				l := &state.LodgingList{Summary: fmt.Sprintf("Camping and lodging near %s", placeName(req))}
				return l, state.NewOutput(l), nil
			},
			payload: func() state.Payload { return &state.LodgingList{} },
		}},
		{specialist.Food, &enhanced{
			name: specialist.Food,
			system: "You find restaurants, grocery stores and resupply points along the route. " +
				`Reply with JSON: {"options":[{"name","type","notes"}],"summary"}.`,
			upstream: []string{specialist.Trail},
			deps:     deps,
			gather: func(_ context.Context, req specialist.Request) (any, state.Output, error) {
				f := &state.FoodList{Summary: fmt.Sprintf("Resupply in %s before heading out", placeName(req))}
				return f, state.NewOutput(f), nil
			},
			payload: func() state.Payload { return &state.FoodList{} },
		}},
		guide(specialist.Safety,
			"You are a backcountry safety expert. Cover emergency contacts, heat and water, wildlife and "+
				`route risks for the trails given. Reply with JSON: {"topic","summary","highlights":[],"sections":{}}.`,
			[]string{specialist.Trail, specialist.Weather}, safetyGuide),
		guide(specialist.BLM,
			"You know Bureau of Land Management rules: dispersed camping limits, fire restrictions and "+
				`closures. Reply with JSON: {"topic","summary","highlights":[],"sections":{}}.`,
			nil, staticGuide(specialist.BLM, "Dispersed camping on BLM land is limited to 14 days in one spot.")),
		guide(specialist.Advocacy,
			"You advise on trail etiquette, Leave No Trace and local trail organizations. "+
				`Reply with JSON: {"topic","summary","highlights":[],"sections":{}}.`,
			nil, staticGuide(specialist.Advocacy, "Stay on designated trail, yield appropriately and pack out all trash.")),
		guide(specialist.Transportation,
			"You plan getting to and between trailheads: airports, shuttles, parking and road conditions. "+
				`Reply with JSON: {"topic","summary","highlights":[],"sections":{}}.`,
			[]string{specialist.Geo}, func(req specialist.Request) *state.Guide {
				return &state.Guide{Topic: specialist.Transportation,
					Summary: fmt.Sprintf("Plan to drive to %s; most trailheads have no transit service.", placeName(req))}
			}),
		guide(specialist.Community,
			"You know local clubs, group rides, events and bike shops. "+
				`Reply with JSON: {"topic","summary","highlights":[],"sections":{}}.`,
			nil, staticGuide(specialist.Community, "Check local shops for group rides and current trail conditions.")),
		guide(specialist.Photography,
			"You suggest photo spots and golden-hour timing along the trails. "+
				`Reply with JSON: {"topic","summary","highlights":[],"sections":{}}.`,
			[]string{specialist.Trail}, staticGuide(specialist.Photography, "Shoot red rock and canyon walls in the first and last hour of light.")),
		guide(specialist.Historical,
			"You tell the history and cultural sites along the route, including tribal lands etiquette. "+
				`Reply with JSON: {"topic","summary","highlights":[],"sections":{}}.`,
			[]string{specialist.Trail}, staticGuide(specialist.Historical, "Respect archaeological sites; do not touch or remove artifacts.")),
		guide(specialist.Planning,
			"You assemble a day-by-day outline from the other specialists' results. "+
				`Reply with JSON: {"topic","summary","highlights":[],"sections":{}}.`,
			[]string{specialist.Geo, specialist.Trail}, planningGuide),
	}
}

func weather(ctx context.Context, deps Deps, req specialist.Request) (state.Output, error) {
	geo, err := resolve(ctx, deps, req)
	if err != nil {
		return state.Output{}, err
	}
	if deps.Tools == nil {
		return state.NewOutput(&state.WeatherResult{
			Location: geo.DisplayName,
			Summary:  "No forecast service configured; check weather.gov before leaving.",
		}), nil
	}
	wx, err := deps.Tools.Forecast(ctx, geo.DisplayName, geo.Lat, geo.Lon)
	if err != nil {
		return state.Output{}, err
	}
	return state.NewOutput(wx), nil
}

func trails(ctx context.Context, deps Deps, req specialist.Request) (any, state.Output, error) {
	list := &state.TrailList{}
	if e, ok := lookupTown(deps.Locations, req); ok {
		for _, h := range e.Highlights {
			list.Trails = append(list.Trails, state.Trail{Name: h, Notes: e.Town()})
		}
	}
	if deps.Tools != nil {
		geo, err := resolve(ctx, deps, req)
		if err != nil {
			return nil, state.Output{}, err
		}
		found, err := deps.Tools.Trails(ctx, geo.Lat, geo.Lon, trailRadiusKm, activity(req))
		if err != nil {
			return nil, state.Output{}, err
		}
		list.Trails = append(found, list.Trails...)
	}
	list.Summary = fmt.Sprintf("%d candidate trails near %s", len(list.Trails), placeName(req))
	return list.Trails, state.NewOutput(list), nil
}

func routeAgent(deps Deps, name, system string) specialist.Specialist {
	return &enhanced{
		name:     name,
		system:   system,
		upstream: []string{specialist.Geo, specialist.Trail},
		deps:     deps,
		gather: func(_ context.Context, req specialist.Request) (any, state.Output, error) {
			plan := splitRoute(req)
			return plan, state.NewOutput(plan), nil
		},
		payload: func() state.Payload { return &state.RoutePlan{} },
	}
}

// splitRoute assigns the upstream trails to days in order.
func splitRoute(req specialist.Request) *state.RoutePlan {
	n := days(req)
	list := trailsOf(req)
	plan := &state.RoutePlan{}
	from := placeName(req)
	for day := 1; day <= n && day <= len(list); day++ {
		t := list[day-1]
		plan.Segments = append(plan.Segments, state.RouteSegment{
			Day:     day,
			From:    from,
			To:      t.Name,
			Miles:   t.LengthMi,
			Surface: t.Surface,
		})
		plan.TotalMiles += t.LengthMi
	}
	plan.Summary = fmt.Sprintf("%d-day route from %s", n, from)
	return plan
}

func permits(deps Deps, req specialist.Request) *state.PermitList {
	list := &state.PermitList{}
	if e, ok := lookupTown(deps.Locations, req); ok {
		if note := e.Notes["permits"]; note != "" {
			list.Permits = append(list.Permits, state.Permit{Name: e.Town() + " area pass", Required: true, Notes: note})
		}
	}
	if days(req) > 1 {
		list.Permits = append(list.Permits, state.Permit{
			Name:   "Fire restrictions check",
			Agency: "US Forest Service / BLM",
			Notes:  "Campfire rules change with drought stage",
		})
	}
	list.Summary = fmt.Sprintf("%d permits or checks identified", len(list.Permits))
	return list
}

func gearList(req specialist.Request) *state.GearList {
	items := []state.GearItem{
		{Name: "Water, 1 liter per 2 hours", Category: "hydration", Required: true},
		{Name: "First aid kit", Category: "safety", Required: true},
		{Name: "Sun protection", Category: "safety", Required: true},
		{Name: "Navigation (offline map)", Category: "navigation", Required: true},
	}
	act := activity(req)
	if strings.Contains(act, "bik") || strings.Contains(act, "cycl") {
		items = append(items,
			state.GearItem{Name: "Helmet", Category: "safety", Required: true},
			state.GearItem{Name: "Tubes, pump and multitool", Category: "repair", Required: true})
	}
	if days(req) > 1 {
		items = append(items,
			state.GearItem{Name: "Shelter and sleep system", Category: "camp", Required: true},
			state.GearItem{Name: "Stove and fuel", Category: "camp"})
	}
	return &state.GearList{Items: items, Summary: fmt.Sprintf("Checklist for %d days of %s", days(req), act)}
}

func safetyGuide(req specialist.Request) *state.Guide {
	g := &state.Guide{
		Topic:   specialist.Safety,
		Summary: "Tell someone your route, carry more water than you expect to need and turn back early in heat.",
		Highlights: []string{
			"Emergency: dial 911; cell coverage is unreliable in canyons",
			"Watch for rattlesnakes on warm rocks",
		},
	}
	if out, ok := req.Upstream(specialist.Weather); ok {
		if wx, ok := out.Payload.(*state.WeatherResult); ok {
			g.Highlights = append(g.Highlights, wx.Alerts...)
		}
	}
	return g
}

func planningGuide(req specialist.Request) *state.Guide {
	g := &state.Guide{Topic: specialist.Planning, Sections: map[string]string{}}
	list := trailsOf(req)
	for day := 1; day <= days(req); day++ {
		what := "Explore town and rest"
		if day <= len(list) {
			what = list[day-1].Name
		}
		g.Sections[fmt.Sprintf("day_%d", day)] = what
	}
	g.Summary = fmt.Sprintf("%d-day outline for %s", days(req), placeName(req))
	return g
}

func staticGuide(topic, summary string) func(specialist.Request) *state.Guide {
	return func(specialist.Request) *state.Guide {
		return &state.Guide{Topic: topic, Summary: summary}
	}
}

func placeName(req specialist.Request) string {
	if out, ok := req.Upstream(specialist.Geo); ok {
		if geo, ok := out.Payload.(*state.GeoResult); ok && geo.DisplayName != "" {
			return geo.DisplayName
		}
	}
	if req.Location != "" {
		return req.Location
	}
	return "the trip area"
}
