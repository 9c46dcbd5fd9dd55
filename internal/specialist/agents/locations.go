package agents

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/basecamp/internal/location"
	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/state"
)

// newLocationAgent returns the knowledge agent for one town. Its facts are
// the registry entry; the model tailors them to the request.
func newLocationAgent(e location.Entry, deps Deps) specialist.Specialist {
	system := fmt.Sprintf("You are a local expert on %s (%s). Using the local knowledge in Facts and the "+
		"other specialists' results, add what only a local would know: best trails for the skill level, "+
		"where to park, where to eat after, seasonal warnings. "+
		`Reply with JSON: {"topic","summary","highlights":[],"sections":{}}.`, e.Name, e.Description)

	return &enhanced{
		name:     e.Agent,
		system:   system,
		upstream: []string{specialist.Trail, specialist.Weather},
		deps:     deps,
		gather: func(_ context.Context, _ specialist.Request) (any, state.Output, error) {
			return e, state.NewOutput(townGuide(e, deps.Locations)), nil
		},
		payload: func() state.Payload { return &state.Guide{} },
	}
}

func townGuide(e location.Entry, reg *location.Registry) *state.Guide {
	g := &state.Guide{
		Topic:      e.Agent,
		Summary:    fmt.Sprintf("%s: %s", e.Name, e.Description),
		Highlights: append([]string(nil), e.Highlights...),
		Sections: map[string]string{
			"elevation": fmt.Sprintf("%d ft", e.ElevationFt),
		},
	}
	if e.County != "" {
		g.Sections["county"] = e.County
	}
	if d := reg.RegionDescription(e.Region); d != "" {
		g.Sections["region"] = d
	}
	for k, v := range e.Notes {
		g.Sections[k] = v
	}
	return g
}
