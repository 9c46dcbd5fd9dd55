// Package synth turns a run's specialist outputs into the final adventure
// plan.
//
// Synthesis never fails outright. A model reply that is empty, times out
// or cannot be parsed yields a minimal plan carrying the error, and every
// plan is annotated with the sections that were degraded (their specialist
// recorded an error) or missing (their specialist produced nothing).
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/llm"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/state"
)

const tracerName = "github.com/Iron-Ham/basecamp/internal/synth"

// AgentName identifies the synthesizer to the LLM client and in error
// records.
const AgentName = "synthesizer"

// DefaultTimeout bounds one synthesis call.
const DefaultTimeout = 60 * time.Second

// Prompt size limits per specialist output.
const (
	maxListItems   = 5
	maxOutputChars = 2000
)

const systemPrompt = `You are synthesizing a complete adventure plan from the results of specialized agents.
Produce one JSON object with:
  "title", "description",
  "itinerary": [{"day": 1, "title": "", "activities": [], "lodging": "", "notes": ""}],
  "sections": {"location": "", "weather": "", "permits": "", "safety": "", "trails": "", "route": "",
               "transportation": "", "accommodation": "", "food": "", "community": "",
               "photography": "", "history": "", "difficulty": "", "distance": ""},
  "gear_checklist": [], "safety_notes": []
Only use facts present in the agent results. Leave a section out when no agent covered it.`

const revisionPrompt = "\n\nIMPORTANT: This is a revision request. The human reviewer has provided feedback " +
	"that must be incorporated into the plan. Address all concerns and suggestions in the feedback."

// Source is the read-only surface the synthesizer consumes.
// *state.PlanState implements it.
type Source interface {
	RunID() string
	UserInput() string
	Preferences() state.Preferences
	Intent() *state.Intent
	Required() []string
	Output(name string) (state.Output, bool)
	Errors() state.ErrorLog
}

// Options configures a Synthesizer.
type Options struct {
	// LLM writes the plan. Nil assembles the plan from the outputs.
	LLM     llm.Client
	Timeout time.Duration
	Logger  *logging.Logger
}

// Synthesizer produces plans.
type Synthesizer struct {
	llm     llm.Client
	timeout time.Duration
	logger  *logging.Logger
	now     func() time.Time
}

// New creates a Synthesizer.
func New(opts Options) *Synthesizer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Synthesizer{
		llm:     opts.LLM,
		timeout: opts.Timeout,
		logger:  logging.OrNop(opts.Logger),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Result is a synthesized plan. Err is set when the plan is the minimal
// fallback.
type Result struct {
	Plan state.Plan
	Err  error
}

// Synthesize builds the plan for src. Feedback, when non-empty, is the
// reviewer's revision request.
func (s *Synthesizer) Synthesize(ctx context.Context, src Source, feedback string) Result {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "synth.synthesize")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", src.RunID()), attribute.Bool("synth.revision", feedback != ""))
	log := s.logger.WithRun(src.RunID()).WithPhase(string(state.PhaseSynthesizing))

	var res Result
	switch {
	case !hasOutputs(src):
		res = s.minimal(errors.NewValidationError("no specialist outputs to synthesize"),
			"Unable to generate a complete plan: no specialist data is available.")
	case s.llm == nil:
		res = Result{Plan: assemble(src)}
	default:
		res = s.generate(ctx, src, feedback)
	}
	annotate(&res.Plan, src)
	res.Plan.GeneratedAt = s.now()

	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Error())
		log.Warn("synthesis fell back to a minimal plan", "error", res.Err.Error(), "kind", string(errors.Classify(res.Err)))
	} else {
		log.Info("plan synthesized",
			"title", res.Plan.Title,
			"days", len(res.Plan.Itinerary),
			"degraded", res.Plan.DegradedSections,
			"missing", res.Plan.MissingSections)
	}
	return res
}

// planReply is the model's plan before normalization.
type planReply struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Itinerary     []state.DayPlan   `json:"itinerary"`
	Sections      map[string]string `json:"sections"`
	GearChecklist []string          `json:"gear_checklist"`
	SafetyNotes   []string          `json:"safety_notes"`
}

func (s *Synthesizer) generate(ctx context.Context, src Source, feedback string) Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	system := systemPrompt
	if feedback != "" {
		system += revisionPrompt
	}
	req := llm.System(AgentName, system, userPrompt(src, feedback))

	var reply planReply
	if _, err := llm.CompleteJSON(ctx, s.llm, req, &reply); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return s.minimal(errors.NewTimeoutError("synthesis", s.timeout), "Plan synthesis timed out. Please try again.")
		}
		return s.minimal(fmt.Errorf("synthesize error: %w", err), "Error generating plan: "+err.Error())
	}
	if strings.TrimSpace(reply.Title) == "" && strings.TrimSpace(reply.Description) == "" && len(reply.Itinerary) == 0 {
		return s.minimal(fmt.Errorf("synthesize error: %w", errors.ErrEmptyResponse), "The plan generator returned an empty plan.")
	}

	plan := state.Plan{
		Title:         reply.Title,
		Description:   reply.Description,
		Itinerary:     reply.Itinerary,
		Sections:      dropEmpty(reply.Sections),
		GearChecklist: reply.GearChecklist,
		SafetyNotes:   reply.SafetyNotes,
	}
	if plan.Title == "" {
		plan.Title = defaultTitle(src)
	}
	return Result{Plan: plan}
}

func (s *Synthesizer) minimal(err error, description string) Result {
	return Result{
		Plan: state.Plan{
			Title:       "Adventure Plan",
			Description: description,
			Error:       err.Error(),
		},
		Err: err,
	}
}

func userPrompt(src Source, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Request: %s\n", src.UserInput())
	prefs, _ := json.Marshal(src.Preferences())
	fmt.Fprintf(&b, "User Preferences: %s\n", prefs)
	if in := src.Intent(); in != nil {
		fmt.Fprintf(&b, "Activity: %s, Location: %s, Duration: %d days\n", in.ActivityType, in.Location, in.DurationDays)
	}
	b.WriteString("\nAgent Outputs:\n")
	for _, name := range src.Required() {
		out, ok := src.Output(name)
		if !ok || out.Empty() {
			fmt.Fprintf(&b, "- %s: (no data)\n", name)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, truncate(out))
	}
	if errs := src.Errors(); len(errs) > 0 {
		b.WriteString("\nDegraded agents (results may be partial):\n")
		for _, r := range errs {
			fmt.Fprintf(&b, "- %s: %s\n", r.Specialist, r.Kind)
		}
	}
	if feedback != "" {
		fmt.Fprintf(&b, "\nHuman Review Feedback: %s\n\nPlease revise the plan based on this feedback.\n", feedback)
	}
	b.WriteString("\nCreate a comprehensive adventure plan in JSON format.")
	return b.String()
}

// truncate renders an output for the prompt, keeping at most maxListItems
// entries of the payload's main list and maxOutputChars characters.
func truncate(out state.Output) string {
	var p any = out.Payload
	switch v := out.Payload.(type) {
	case *state.TrailList:
		cp := *v
		cp.Trails = head(cp.Trails)
		p = &cp
	case *state.LodgingList:
		cp := *v
		cp.Options = head(cp.Options)
		p = &cp
	case *state.FoodList:
		cp := *v
		cp.Options = head(cp.Options)
		p = &cp
	case *state.PermitList:
		cp := *v
		cp.Permits = head(cp.Permits)
		p = &cp
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "(unencodable)"
	}
	if len(data) > maxOutputChars {
		return string(data[:maxOutputChars]) + "…"
	}
	return string(data)
}

func head[T any](s []T) []T {
	if len(s) > maxListItems {
		return s[:maxListItems]
	}
	return s
}

func hasOutputs(src Source) bool {
	for _, name := range src.Required() {
		if out, ok := src.Output(name); ok && !out.Empty() {
			return true
		}
	}
	return false
}

// annotate records degraded and missing sections on plan.
func annotate(plan *state.Plan, src Source) {
	var degraded []string
	for _, r := range src.Errors() {
		if r.Specialist != AgentName && !slices.Contains(degraded, r.Specialist) {
			degraded = append(degraded, r.Specialist)
		}
	}
	slices.Sort(degraded)

	var missing []string
	for _, name := range src.Required() {
		if out, ok := src.Output(name); !ok || out.Empty() {
			missing = append(missing, name)
		}
	}
	slices.Sort(missing)

	plan.DegradedSections = degraded
	plan.MissingSections = missing
}

func dropEmpty(m map[string]string) map[string]string {
	for k, v := range m {
		if strings.TrimSpace(v) == "" {
			delete(m, k)
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
