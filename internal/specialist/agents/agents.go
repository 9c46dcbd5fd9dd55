// Package agents provides the concrete specialists: the core planning
// specialists and one knowledge agent per registered Arizona town.
//
// Tool-backed specialists gather facts through the tools client and, when
// an LLM is configured, ask it to tailor those facts to the request. The
// untailored facts are always available through Raw, so a reply the model
// garbles degrades to the tool output instead of an empty section.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/llm"
	"github.com/Iron-Ham/basecamp/internal/location"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/state"
	"github.com/Iron-Ham/basecamp/internal/tools"
)

// Deps are the collaborators the specialists share.
type Deps struct {
	// LLM tailors gathered facts. Nil disables enhancement and every
	// specialist returns its raw facts.
	LLM llm.Client
	// Tools calls the geocoding, weather and trail services. Nil limits
	// the specialists to the embedded location registry.
	Tools *tools.Client
	// Locations is the town registry. Nil uses location.Arizona().
	Locations *location.Registry
	Logger    *logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Locations == nil {
		d.Locations = location.Arizona()
	}
	d.Logger = logging.OrNop(d.Logger)
	return d
}

// Register adds every core specialist and one specialist per location
// agent in deps.Locations.
func Register(reg *specialist.Registry, deps Deps) error {
	deps = deps.withDefaults()
	for _, s := range core(deps) {
		if err := reg.Register(s.name, s.impl); err != nil {
			return err
		}
	}
	for _, agent := range deps.Locations.Agents() {
		e, _ := deps.Locations.ByAgent(agent)
		if err := reg.Register(agent, newLocationAgent(e, deps)); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry populated by Register.
func NewRegistry(deps Deps) (*specialist.Registry, error) {
	reg := specialist.NewRegistry()
	if err := Register(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}

// resolve finds coordinates for the request: the geo specialist's output
// first, then the town registry, then the geocoder.
func resolve(ctx context.Context, deps Deps, req specialist.Request) (*state.GeoResult, error) {
	if out, ok := req.Upstream(specialist.Geo); ok {
		if geo, ok := out.Payload.(*state.GeoResult); ok {
			return geo, nil
		}
	}
	if e, ok := lookupTown(deps.Locations, req); ok {
		return &state.GeoResult{
			Query:       req.Location,
			DisplayName: e.Name,
			Lat:         e.Lat,
			Lon:         e.Lon,
			Region:      e.County,
			ElevationFt: e.ElevationFt,
		}, nil
	}
	if strings.TrimSpace(req.Location) == "" {
		return nil, errors.NewValidationError("location is required").WithField("location")
	}
	if deps.Tools == nil {
		return nil, errors.NewNotFoundError("location", req.Location)
	}
	return deps.Tools.Geocode(ctx, req.Location)
}

func lookupTown(reg *location.Registry, req specialist.Request) (location.Entry, bool) {
	if e, ok := reg.Lookup(req.Location); ok {
		return e, true
	}
	if e, ok := reg.Find(req.Location); ok {
		return e, true
	}
	return reg.Find(req.Context)
}

// brief renders the request and the selected upstream outputs as the user
// message for an enhancement prompt.
func brief(req specialist.Request, facts any, upstream ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", req.Context)
	if req.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", req.Location)
	}
	prefs, _ := json.Marshal(req.Preferences)
	fmt.Fprintf(&b, "Preferences: %s\n", prefs)
	if req.Intent != nil {
		fmt.Fprintf(&b, "Activity: %s\n", req.Intent.ActivityType)
		if req.Intent.DurationDays > 0 {
			fmt.Fprintf(&b, "Duration: %d days\n", req.Intent.DurationDays)
		}
	}
	for _, name := range upstream {
		if out, ok := req.Upstream(name); ok {
			data, _ := json.Marshal(out)
			fmt.Fprintf(&b, "%s output: %s\n", name, data)
		}
	}
	if facts != nil {
		data, _ := json.Marshal(facts)
		fmt.Fprintf(&b, "Facts: %s\n", data)
	}
	return b.String()
}

// activity returns the request's activity type with a default.
func activity(req specialist.Request) string {
	if req.Intent != nil && req.Intent.ActivityType != "" {
		return req.Intent.ActivityType
	}
	if req.Preferences.ActivityType != "" {
		return req.Preferences.ActivityType
	}
	return "mountain_biking"
}

func days(req specialist.Request) int {
	if req.Intent != nil && req.Intent.DurationDays > 0 {
		return req.Intent.DurationDays
	}
	if req.Preferences.DurationDays > 0 {
		return req.Preferences.DurationDays
	}
	return 1
}

func trailsOf(req specialist.Request) []state.Trail {
	out, ok := req.Upstream(specialist.Trail)
	if !ok {
		return nil
	}
	if tl, ok := out.Payload.(*state.TrailList); ok {
		return tl.Trails
	}
	return nil
}
