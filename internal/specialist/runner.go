package specialist

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Iron-Ham/basecamp/internal/config"
	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/event"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/state"
)

const tracerName = "github.com/Iron-Ham/basecamp/internal/specialist"

// Default retry settings.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = time.Second
	DefaultBackoffFactor  = 2.0
	DefaultMaxBackoff     = 30 * time.Second
)

// Result is the outcome of one specialist run. Err is nil on success.
// A failed run still carries an Output (empty, or the raw fallback) and
// Cause holds the typed failure behind Err.
type Result struct {
	Name     string
	Output   state.Output
	Err      *state.ErrorRecord
	Cause    *errors.SpecialistError
	Attempts int
	Duration time.Duration
}

// OK reports whether the specialist succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Delta converts the result into a plan state contribution.
func (r Result) Delta() state.Delta {
	d := state.Delta{Specialist: r.Name, Output: r.Output}
	if r.Err != nil {
		d.Errors = []state.ErrorRecord{*r.Err}
	}
	return d
}

// RunnerOptions configures retry and timeouts.
type RunnerOptions struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	BackoffFactor  float64
	MaxBackoff     time.Duration
	// CallTimeout bounds each attempt. Zero means no per-attempt timeout.
	CallTimeout time.Duration

	Logger *logging.Logger
	Bus    *event.Bus
}

// Runner executes specialists from a registry.
type Runner struct {
	registry *Registry
	opts     RunnerOptions
	logger   *logging.Logger
	bus      *event.Bus

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRunner creates a Runner. Zero options take the package defaults.
func NewRunner(registry *Registry, opts RunnerOptions) *Runner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.BackoffFactor < 1 {
		opts.BackoffFactor = DefaultBackoffFactor
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	return &Runner{
		registry: registry,
		opts:     opts,
		logger:   logging.OrNop(opts.Logger),
		bus:      opts.Bus,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// RunnerFromConfig builds a Runner from the dispatch configuration section.
func RunnerFromConfig(registry *Registry, cfg config.DispatchConfig, logger *logging.Logger, bus *event.Bus) *Runner {
	return NewRunner(registry, RunnerOptions{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff(),
		BackoffFactor:  cfg.BackoffFactor,
		MaxBackoff:     cfg.MaxBackoff(),
		CallTimeout:    cfg.CallTimeout(),
		Logger:         logger,
		Bus:            bus,
	})
}

// Registry returns the registry the runner resolves names against.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Backoff returns the delay before retry attempt n (1-based count of
// attempts already made).
func (r *Runner) Backoff(n int) time.Duration {
	d := float64(r.opts.InitialBackoff) * math.Pow(r.opts.BackoffFactor, float64(n-1))
	if d > float64(r.opts.MaxBackoff) {
		return r.opts.MaxBackoff
	}
	return time.Duration(d)
}

// Run executes the named specialist against view. It never panics and
// never returns an error: every failure is classified into Result.Err.
func (r *Runner) Run(ctx context.Context, name string, view state.View) Result {
	start := r.now()
	runID := ""
	if view != nil {
		runID = view.RunID()
	}
	log := r.logger.WithRun(runID).WithSpecialist(name)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "specialist.run")
	span.SetAttributes(attribute.String("specialist.name", name), attribute.String("run.id", runID))
	defer span.End()

	res := r.run(ctx, name, view, log)
	res.Duration = r.now().Sub(start)

	kind := ""
	span.SetAttributes(attribute.Int("specialist.attempts", res.Attempts))
	if res.Err != nil {
		kind = string(res.Err.Kind)
		span.SetAttributes(attribute.String("error.kind", kind))
		span.SetStatus(codes.Error, res.Err.Message)
		log.Warn("specialist failed",
			"kind", kind,
			"error", res.Err.Message,
			"attempts", res.Attempts,
			"degraded", !res.Output.Empty(),
			"duration_ms", res.Duration.Milliseconds())
	} else {
		log.Info("specialist completed",
			"output_kind", string(res.Output.Kind()),
			"attempts", res.Attempts,
			"duration_ms", res.Duration.Milliseconds())
	}
	r.bus.Publish(event.NewSpecialistCompletedEvent(runID, name, kind, res.Attempts, res.Duration))
	return res
}

func (r *Runner) run(ctx context.Context, name string, view state.View, log *logging.Logger) Result {
	res := Result{Name: name}

	s, err := r.registry.Get(name)
	if err != nil {
		res.Cause = errors.NewSpecialistError(name, "lookup failed", err)
		res.Err = r.record(res.Cause)
		return res
	}
	req := NewRequest(name, view)

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		out, panicked, err := r.attempt(ctx, s, req)
		if err == nil {
			res.Output = out
			res.Cause = nil
			return res
		}

		cause := errors.NewSpecialistError(name, "run failed", err).WithAttempt(attempt)
		if panicked {
			cause = cause.WithPanic()
		}
		rec := r.record(cause)
		res.Cause = cause

		switch {
		case rec.Kind == errors.KindTransient && attempt < r.opts.MaxAttempts && ctx.Err() == nil:
			wait := r.Backoff(attempt)
			log.Debug("retrying specialist", "attempt", attempt, "error", err.Error(), "backoff_ms", wait.Milliseconds())
			if serr := r.sleep(ctx, wait); serr != nil {
				res.Err = rec
				return res
			}
			continue

		case rec.Kind == errors.KindLLMRecoverable:
			if d, ok := s.(Degradable); ok {
				raw, rerr := r.raw(ctx, d, req)
				if rerr == nil {
					res.Output = raw
				} else {
					log.Debug("raw fallback failed", "error", rerr.Error())
				}
			}
		}
		res.Err = rec
		return res
	}
}

// attempt runs one call under the per-call timeout, converting a panic into
// an error.
func (r *Runner) attempt(ctx context.Context, s Specialist, req Request) (out state.Output, panicked bool, err error) {
	if r.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("specialist panicked", "specialist", req.Name, "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			out, panicked, err = state.Output{}, true, fmt.Errorf("specialist %s panicked: %v", req.Name, p)
		}
	}()

	out, err = s.Run(ctx, req)
	return out, false, err
}

func (r *Runner) raw(ctx context.Context, d Degradable, req Request) (out state.Output, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = state.Output{}, fmt.Errorf("raw fallback panicked: %v", p)
		}
	}()
	return d.Raw(ctx, req)
}

// record classifies a failure. The record keeps the specialist's own
// message; the name and attempt count live in their own fields.
func (r *Runner) record(cause *errors.SpecialistError) *state.ErrorRecord {
	rec := state.NewErrorRecord(cause.Specialist, cause, cause.Attempt, r.now())
	rec.Message = cause.Cause().Error()
	return &rec
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
