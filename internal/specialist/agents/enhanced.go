package agents

import (
	"context"

	"github.com/Iron-Ham/basecamp/internal/llm"
	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/state"
)

// enhancementTemperature keeps tailored output close to the facts.
const enhancementTemperature = 0.3

// gatherFunc collects a specialist's facts. It returns the facts to show
// the model and the output used when no model is available.
type gatherFunc func(ctx context.Context, req specialist.Request) (facts any, raw state.Output, err error)

// enhanced is a specialist that gathers facts and lets the model tailor
// them into a typed payload.
type enhanced struct {
	name     string
	system   string
	upstream []string
	deps     Deps
	gather   gatherFunc
	// payload returns an empty value of the result type.
	payload func() state.Payload
}

var _ specialist.Degradable = (*enhanced)(nil)

func (e *enhanced) Run(ctx context.Context, req specialist.Request) (state.Output, error) {
	facts, raw, err := e.gather(ctx, req)
	if err != nil {
		return state.Output{}, err
	}
	if e.deps.LLM == nil {
		return raw, nil
	}

	msg := llm.System(e.name, e.system, brief(req, facts, e.upstream...))
	msg.Temperature = llm.Temperature(enhancementTemperature)
	p := e.payload()
	if _, err := llm.CompleteJSON(ctx, e.deps.LLM, msg, p); err != nil {
		return state.Output{}, err
	}
	if g, ok := p.(*state.Guide); ok && g.Topic == "" {
		g.Topic = e.name
	}
	return state.NewOutput(p), nil
}

// Raw returns the gathered facts without enhancement.
func (e *enhanced) Raw(ctx context.Context, req specialist.Request) (state.Output, error) {
	_, raw, err := e.gather(ctx, req)
	return raw, err
}
