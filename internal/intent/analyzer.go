// Package intent turns a free-text adventure request into a structured
// state.Intent: what the user wants to do, where, for how long, and which
// specialists must run.
//
// Analysis never fails. The model's structured reading is preferred; when
// no model is configured, or its reply cannot be used, a keyword heuristic
// takes over, and an intent that still names no usable specialist falls
// back to the geo and trail pair.
package intent

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Iron-Ham/basecamp/internal/llm"
	"github.com/Iron-Ham/basecamp/internal/location"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/state"
)

const tracerName = "github.com/Iron-Ham/basecamp/internal/intent"

// AgentName identifies the analyzer to the LLM client.
const AgentName = "orchestrator"

// DefaultActivity is used when neither the request nor the preferences
// name an activity.
const DefaultActivity = "mountain_biking"

// Source says which path produced an intent.
type Source string

// Analysis sources.
const (
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic"
	SourceMinimal   Source = "minimal"
)

// Result is an analyzed intent and how it was obtained.
type Result struct {
	Intent state.Intent
	Source Source
	// Dropped lists specialist names the analysis produced that are not
	// in the known vocabulary.
	Dropped []string
}

// Options configures an Analyzer.
type Options struct {
	// LLM performs structured extraction. Nil uses the heuristic only.
	LLM llm.Client
	// Locations is the town registry. Nil uses location.Arizona().
	Locations *location.Registry
	// Table is the specialist vocabulary. Nil builds one from Locations.
	Table  *specialist.Table
	Logger *logging.Logger
}

// Analyzer is the entry gate of every run.
type Analyzer struct {
	llm       llm.Client
	locations *location.Registry
	table     *specialist.Table
	logger    *logging.Logger
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	a := &Analyzer{
		llm:       opts.LLM,
		locations: opts.Locations,
		table:     opts.Table,
		logger:    logging.OrNop(opts.Logger),
	}
	if a.locations == nil {
		a.locations = location.Arizona()
	}
	if a.table == nil {
		a.table = specialist.NewTable(a.locations.Agents())
	}
	return a
}

type analyzeConfig struct {
	errorContext []state.ErrorRecord
}

// Option adjusts a single analysis.
type Option func(*analyzeConfig)

// WithErrorContext includes earlier recoverable failures in the prompt so
// the model can choose different specialists or context.
func WithErrorContext(records []state.ErrorRecord) Option {
	return func(c *analyzeConfig) {
		c.errorContext = append(c.errorContext, records...)
	}
}

// Analyze reads input and preferences into an intent.
func (a *Analyzer) Analyze(ctx context.Context, input string, prefs state.Preferences, opts ...Option) Result {
	var cfg analyzeConfig
	for _, o := range opts {
		o(&cfg)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "intent.analyze")
	defer span.End()

	var (
		raw    extraction
		source = SourceHeuristic
	)
	if a.llm != nil {
		ex, err := a.extract(ctx, input, prefs, cfg.errorContext)
		if err != nil {
			a.logger.Warn("intent extraction failed, using heuristic", "error", err.Error())
		} else {
			raw, source = ex, SourceLLM
		}
	}
	if source == SourceHeuristic {
		raw = heuristic(input, prefs, a.locations)
	}

	res := a.finalize(input, prefs, raw)
	if res.Source == "" {
		res.Source = source
	}

	span.SetAttributes(
		attribute.String("intent.source", string(res.Source)),
		attribute.String("intent.activity", res.Intent.ActivityType),
		attribute.StringSlice("intent.specialists", res.Intent.RequiredSpecialists),
	)
	a.logger.Info("intent analyzed",
		"source", string(res.Source),
		"activity_type", res.Intent.ActivityType,
		"location", res.Intent.Location,
		"specialists", res.Intent.RequiredSpecialists,
		"dropped", res.Dropped)
	return res
}

// extraction is the loosely typed reading that finalize normalizes.
type extraction struct {
	ActivityType   string            `mapstructure:"activity_type"`
	AdventureType  string            `mapstructure:"adventure_type"`
	Location       string            `mapstructure:"location"`
	DurationDays   int               `mapstructure:"duration_days"`
	SkillLevel     string            `mapstructure:"skill_level"`
	RequiredAgents []string          `mapstructure:"required_agents"`
	AgentContext   map[string]string `mapstructure:"agent_context"`
	PriorityOrder  []string          `mapstructure:"priority_order"`
}

func (a *Analyzer) extract(ctx context.Context, input string, prefs state.Preferences, errCtx []state.ErrorRecord) (extraction, error) {
	req := llm.System(AgentName, a.systemPrompt(), userPrompt(input, prefs, errCtx))
	var fields map[string]any
	if _, err := llm.CompleteJSON(ctx, a.llm, req, &fields); err != nil {
		return extraction{}, err
	}

	var ex extraction
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &ex,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return extraction{}, err
	}
	if err := dec.Decode(fields); err != nil {
		return extraction{}, fmt.Errorf("parse intent fields: %w", err)
	}
	return ex, nil
}

// finalize enforces the intent invariants on any extraction.
func (a *Analyzer) finalize(input string, prefs state.Preferences, ex extraction) Result {
	var res Result
	in := state.Intent{
		ActivityType:  strings.TrimSpace(ex.ActivityType),
		AdventureType: strings.TrimSpace(ex.AdventureType),
		Location:      strings.TrimSpace(ex.Location),
		SkillLevel:    strings.ToLower(strings.TrimSpace(ex.SkillLevel)),
		Context:       make(map[string]string),
	}
	if ex.DurationDays > 0 {
		in.DurationDays = ex.DurationDays
	}

	if in.ActivityType == "" {
		in.ActivityType = inferActivity(in.AdventureType, prefs)
	}

	valid, dropped := specialist.NormalizeAll(ex.RequiredAgents)
	res.Dropped = dropped
	for _, name := range valid {
		if !a.table.Known(name) {
			res.Dropped = append(res.Dropped, name)
			continue
		}
		if !slices.Contains(in.RequiredSpecialists, name) {
			in.RequiredSpecialists = append(in.RequiredSpecialists, name)
		}
	}
	for k, v := range ex.AgentContext {
		if n, err := specialist.Normalize(k); err == nil && strings.TrimSpace(v) != "" {
			in.Context[n] = v
		}
	}

	if len(in.RequiredSpecialists) == 0 {
		in.RequiredSpecialists = []string{specialist.Geo, specialist.Trail}
		in.Context[specialist.Geo] = input
		in.Context[specialist.Trail] = input
		res.Source = SourceMinimal
	}

	if in.Location == "" {
		if e, ok := a.locations.Find(input); ok {
			in.Location = e.Name
		} else if prefs.Region != "" {
			in.Location = prefs.Region
		} else {
			in.Location = location.DefaultRegion
		}
	}
	if e, ok := a.townFor(in.Location, input); ok && !slices.Contains(in.RequiredSpecialists, e.Agent) {
		in.RequiredSpecialists = append(in.RequiredSpecialists, e.Agent)
		in.Context[e.Agent] = fmt.Sprintf(
			"Provide detailed information about %s, leveraging existing agent outputs for %s in %s.",
			e.Name, strings.ReplaceAll(in.ActivityType, "_", " "), e.Name)
	}

	for k := range in.Context {
		if !slices.Contains(in.RequiredSpecialists, k) {
			delete(in.Context, k)
		}
	}
	if len(in.Context) == 0 {
		in.Context = nil
	}
	for _, name := range ex.PriorityOrder {
		if n, err := specialist.Normalize(name); err == nil &&
			slices.Contains(in.RequiredSpecialists, n) && !slices.Contains(in.SuggestedOrder, n) {
			in.SuggestedOrder = append(in.SuggestedOrder, n)
		}
	}

	res.Intent = in
	return res
}

// townFor finds the location agent for the resolved location. A generic
// region such as "Arizona" falls back to a town named in the input.
func (a *Analyzer) townFor(loc, input string) (location.Entry, bool) {
	if e, ok := a.locations.Lookup(loc); ok {
		return e, true
	}
	if e, ok := a.locations.Find(loc); ok {
		return e, true
	}
	if strings.EqualFold(loc, location.DefaultRegion) {
		return a.locations.Find(input)
	}
	return location.Entry{}, false
}

// inferActivity derives an activity from the adventure type, then the
// preferences.
func inferActivity(adventureType string, prefs state.Preferences) string {
	if adventureType != "" {
		if act := activityFromText(adventureType); act != "" {
			return act
		}
		return DefaultActivity
	}
	if prefs.ActivityType != "" {
		return prefs.ActivityType
	}
	if prefs.AdventureType != "" {
		if act := activityFromText(prefs.AdventureType); act != "" {
			return act
		}
	}
	return DefaultActivity
}
