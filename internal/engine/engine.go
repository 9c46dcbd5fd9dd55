// Package engine is the inbound API of the planner: Submit starts a run,
// GetState reads it and Resume continues a run paused for human review.
//
// A run moves through analysis, dispatch, the review gate and synthesis on
// a goroutine owned by the Engine. Calls return as soon as the work is
// handed off; Wait blocks until the run pauses or finishes. Paused and
// finished runs are saved to the store so another process can resume them.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Iron-Ham/basecamp/internal/dispatch"
	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/event"
	"github.com/Iron-Ham/basecamp/internal/intent"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/review"
	"github.com/Iron-Ham/basecamp/internal/state"
	"github.com/Iron-Ham/basecamp/internal/store"
	"github.com/Iron-Ham/basecamp/internal/synth"
)

const tracerName = "github.com/Iron-Ham/basecamp/internal/engine"

// Options wires an Engine. Analyzer, Dispatcher, Gate and Synthesizer are
// required.
type Options struct {
	Analyzer    *intent.Analyzer
	Dispatcher  *dispatch.Dispatcher
	Gate        *review.Gate
	Synthesizer *synth.Synthesizer
	// Store persists runs at every pause and at completion. Nil keeps runs
	// in memory only.
	Store store.Store
	// Archive stores finished plans in Store.
	Archive bool
	Logger  *logging.Logger
	Bus     *event.Bus
	// NewID generates run ids. Nil uses uuid.
	NewID func() string
}

// Engine runs adventure-planning requests.
type Engine struct {
	analyzer   *intent.Analyzer
	dispatcher *dispatch.Dispatcher
	gate       *review.Gate
	synth      *synth.Synthesizer
	store      store.Store
	archive    bool
	logger     *logging.Logger
	bus        *event.Bus
	newID      func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*run
}

// run is the in-memory handle of one run.
type run struct {
	ps      *state.PlanState
	sched   *dispatch.Scheduler
	started time.Time

	mu      sync.Mutex
	busy    bool
	settled chan struct{}
}

// New creates an Engine. Close stops its runs.
func New(opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		analyzer:   opts.Analyzer,
		dispatcher: opts.Dispatcher,
		gate:       opts.Gate,
		synth:      opts.Synthesizer,
		store:      opts.Store,
		archive:    opts.Archive && opts.Store != nil,
		logger:     logging.OrNop(opts.Logger),
		bus:        opts.Bus,
		newID:      opts.NewID,
		ctx:        ctx,
		cancel:     cancel,
		runs:       make(map[string]*run),
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Submit starts a run and returns its id. The run continues after Submit
// returns; ctx only bounds the hand-off.
func (e *Engine) Submit(ctx context.Context, userInput string, prefs state.Preferences) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.ctx.Err() != nil {
		return "", errors.NewRunError("engine is closed", errors.ErrCanceled)
	}
	if userInput == "" {
		return "", errors.NewValidationError("user input is required").WithField("user_input")
	}

	id := e.newID()
	r := &run{
		ps:      state.New(id, userInput, prefs),
		started: time.Now(),
		busy:    true,
		settled: make(chan struct{}),
	}
	e.mu.Lock()
	e.runs[id] = r
	e.mu.Unlock()

	e.logger.WithRun(id).Info("run submitted", "input_len", len(userInput))
	e.bus.Publish(event.NewRunSubmittedEvent(id, userInput))
	e.save(ctx, r)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.execute(r)
	}()
	return id, nil
}

// GetState returns a deep copy of the run's plan state. Repeated calls
// without an intervening transition return identical snapshots.
func (e *Engine) GetState(ctx context.Context, runID string) (state.Snapshot, error) {
	if r, ok := e.lookup(runID); ok {
		return r.ps.Snapshot()
	}
	if e.store == nil {
		return state.Snapshot{}, notFound(runID)
	}
	return e.store.Load(ctx, runID)
}

// Wait blocks until the run is paused for review or finished, and returns
// its state.
func (e *Engine) Wait(ctx context.Context, runID string) (state.Snapshot, error) {
	r, ok := e.lookup(runID)
	if !ok {
		return e.GetState(ctx, runID)
	}
	r.mu.Lock()
	busy, settled := r.busy, r.settled
	r.mu.Unlock()
	if busy {
		select {
		case <-settled:
		case <-ctx.Done():
			return state.Snapshot{}, ctx.Err()
		}
	}
	return r.ps.Snapshot()
}

// Resume applies a review decision to a paused run. Runs paused by another
// process are loaded from the store. Synthesis continues after Resume
// returns.
func (e *Engine) Resume(ctx context.Context, runID string, d review.Decision) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r, err := e.resumable(ctx, runID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return errors.Join(errors.ErrRunNotPaused, errors.NewRunError("run is in progress", nil).WithRunID(runID))
	}
	if err := e.gate.Resume(r.ps, d); err != nil {
		r.mu.Unlock()
		return err
	}
	r.busy = true
	r.settled = make(chan struct{})
	r.mu.Unlock()

	errorsAtDecision := r.ps.ErrorCount()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.continueAfterReview(r, d, errorsAtDecision)
	}()
	return nil
}

// PendingReviews returns runs paused in this process, oldest first.
func (e *Engine) PendingReviews() []string {
	return e.gate.PendingReviews()
}

// Runs lists stored runs. Without a store it lists runs in memory.
func (e *Engine) Runs(ctx context.Context) ([]store.Summary, error) {
	if e.store != nil {
		return e.store.List(ctx)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]store.Summary, 0, len(e.runs))
	for id, r := range e.runs {
		out = append(out, store.Summary{RunID: id, Phase: r.ps.Phase(), UserInput: r.ps.UserInput()})
	}
	return out, nil
}

// SearchArchive searches finished plans.
func (e *Engine) SearchArchive(ctx context.Context, query string, limit int) ([]store.ArchiveEntry, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.Search(ctx, query, limit)
}

// Close cancels every run in progress and waits for their goroutines.
// Canceled runs are recorded as abandoned.
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	return nil
}

func (e *Engine) lookup(runID string) (*run, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[runID]
	return r, ok
}

// resumable returns the in-memory run, loading it from the store when this
// process never saw it.
func (e *Engine) resumable(ctx context.Context, runID string) (*run, error) {
	if r, ok := e.lookup(runID); ok {
		return r, nil
	}
	if e.store == nil {
		return nil, notFound(runID)
	}
	snap, err := e.store.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	ps := state.Restore(snap)
	r := &run{
		ps:      ps,
		sched:   dispatch.NewScheduler(e.dispatcher.Table(), ps),
		started: time.Now(),
		settled: make(chan struct{}),
	}
	close(r.settled)

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.runs[runID]; ok {
		return existing, nil
	}
	e.runs[runID] = r
	return r, nil
}

// execute drives a new run up to the review gate or completion.
func (e *Engine) execute(r *run) {
	ctx, span := otel.Tracer(tracerName).Start(e.ctx, "engine.run")
	defer span.End()
	runID := r.ps.RunID()
	span.SetAttributes(attribute.String("run.id", runID))
	log := e.logger.WithRun(runID)

	res := e.analyzer.Analyze(ctx, r.ps.UserInput(), r.ps.Preferences())
	if err := r.ps.SetIntent(res.Intent); err != nil {
		log.Error("analyzer produced an unusable intent", "error", err.Error())
		e.abandon(r, errors.NewRunError("intent analysis failed", err).WithRunID(runID).WithPhase(string(state.PhaseDispatching)))
		return
	}
	e.bus.Publish(event.NewRunAnalyzedEvent(runID, res.Intent.ActivityType, res.Intent.Location, r.ps.Required(), string(res.Source)))

	r.sched = dispatch.NewScheduler(e.dispatcher.Table(), r.ps)
	if err := e.dispatcher.Dispatch(ctx, r.sched, r.ps); err != nil {
		e.abandon(r, errors.NewRunError("dispatch stopped", err).WithRunID(runID).WithPhase(string(state.PhaseDispatching)))
		return
	}

	reasons := e.gate.Evaluate(r.ps)
	phase, err := r.sched.Advance(len(reasons) > 0)
	if err != nil {
		e.abandon(r, errors.NewRunError("advance after dispatch", err).WithRunID(runID))
		return
	}
	e.transition(r, phase)
	if phase == state.PhaseHumanReview {
		e.pause(ctx, r, reasons)
		return
	}
	e.synthesize(ctx, r, "")
}

func (e *Engine) continueAfterReview(r *run, d review.Decision, errorsAtDecision int) {
	ctx, span := otel.Tracer(tracerName).Start(e.ctx, "engine.resume")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", r.ps.RunID()), attribute.String("review.status", string(d.Status)))

	phase, err := r.sched.Resume(d.Status)
	if err != nil {
		e.abandon(r, errors.NewRunError("resume", err).WithRunID(r.ps.RunID()))
		return
	}
	e.transition(r, phase)
	if phase == state.PhaseDone {
		if d.Status == state.ApprovalRejected {
			r.ps.Reject()
		}
		e.finish(ctx, r)
		return
	}

	feedback := ""
	if d.Status == state.ApprovalNeedsRevision {
		feedback = d.Feedback
	}
	if !e.synthesizePlan(ctx, r, feedback) {
		return
	}

	var reasons []string
	if d.Status == state.ApprovalNeedsRevision {
		r.ps.ClearFeedback()
		reasons = e.gate.ReEvaluate(r.ps, errorsAtDecision)
	}
	e.afterSynthesis(ctx, r, reasons)
}

// synthesize runs synthesis for a run that needed no review.
func (e *Engine) synthesize(ctx context.Context, r *run, feedback string) {
	if e.synthesizePlan(ctx, r, feedback) {
		e.afterSynthesis(ctx, r, nil)
	}
}

// synthesizePlan stores a new plan revision. It returns false when the run
// was abandoned instead.
func (e *Engine) synthesizePlan(ctx context.Context, r *run, feedback string) bool {
	res := e.synth.Synthesize(ctx, r.ps, feedback)
	if ctx.Err() != nil {
		e.abandon(r, errors.NewRunError("synthesis canceled", ctx.Err()).WithRunID(r.ps.RunID()).WithPhase(string(state.PhaseSynthesizing)))
		return false
	}
	if res.Err != nil {
		rec := state.NewErrorRecord(synth.AgentName, res.Err, 1, time.Now().UTC())
		if err := r.ps.RecordError(rec); err != nil {
			e.logger.WithRun(r.ps.RunID()).Warn("failed to record synthesis error", "error", err.Error())
		}
	}
	r.ps.SetPlan(res.Plan)
	return true
}

func (e *Engine) afterSynthesis(ctx context.Context, r *run, reasons []string) {
	phase, err := r.sched.Synthesized(len(reasons) > 0)
	if err != nil {
		e.abandon(r, errors.NewRunError("leave synthesis", err).WithRunID(r.ps.RunID()))
		return
	}
	e.transition(r, phase)
	if phase == state.PhaseHumanReview {
		e.pause(ctx, r, reasons)
		return
	}
	e.finish(ctx, r)
}

// transition mirrors a scheduler phase onto the plan state.
func (e *Engine) transition(r *run, to state.Phase) {
	from := r.ps.Phase()
	if from == to {
		return
	}
	r.ps.SetPhase(to)
	e.logger.WithRun(r.ps.RunID()).Info("phase changed", "from", string(from), "to", string(to))
	e.bus.Publish(event.NewPhaseChangedEvent(r.ps.RunID(), string(from), string(to)))
}

func (e *Engine) pause(ctx context.Context, r *run, reasons []string) {
	e.gate.Pause(r.ps, reasons)
	e.save(ctx, r)
	e.settle(r)
}

// abandon ends a run that cannot continue. The cause is recorded on the
// plan state so readers see why the run stopped.
func (e *Engine) abandon(r *run, cause error) {
	e.logger.WithRun(r.ps.RunID()).Error("run abandoned", "error", cause.Error())
	if err := r.ps.RecordError(state.NewErrorRecord("engine", cause, 0, time.Now().UTC())); err != nil {
		e.logger.WithRun(r.ps.RunID()).Warn("failed to record abandonment", "error", err.Error())
	}
	e.transition(r, state.PhaseDone)
	// The engine context may already be canceled; persistence still applies.
	e.finish(context.WithoutCancel(e.ctx), r)
}

func (e *Engine) finish(ctx context.Context, r *run) {
	runID := r.ps.RunID()
	e.gate.Forget(runID)
	plan := r.ps.Plan()
	status, _ := r.ps.Approval()
	rejected := status == state.ApprovalRejected

	if e.archive && plan != nil && !rejected {
		if err := e.archiveRun(ctx, r); err != nil {
			e.logger.WithRun(runID).Warn("failed to archive plan", "error", err.Error())
		}
	}
	e.save(ctx, r)

	dur := time.Since(r.started)
	e.logger.WithRun(runID).Info("run finished",
		"has_plan", plan != nil,
		"rejected", rejected,
		"errors", r.ps.ErrorCount(),
		"duration_ms", dur.Milliseconds())
	e.bus.Publish(event.NewRunFinishedEvent(runID, plan != nil, rejected, r.ps.ErrorCount(), dur))
	e.settle(r)
}

func (e *Engine) archiveRun(ctx context.Context, r *run) error {
	snap, err := r.ps.Snapshot()
	if err != nil {
		return err
	}
	entry, err := store.NewArchiveEntry(snap)
	if err != nil {
		return err
	}
	return e.store.Archive(ctx, entry)
}

// save persists the run. Failures are logged; the in-memory run stays
// authoritative.
func (e *Engine) save(ctx context.Context, r *run) {
	if e.store == nil {
		return
	}
	snap, err := r.ps.Snapshot()
	if err == nil {
		err = e.store.Save(context.WithoutCancel(ctx), snap)
	}
	if err != nil {
		e.logger.WithRun(r.ps.RunID()).Error("failed to save run", "error", err.Error())
	}
}

func (e *Engine) settle(r *run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy {
		r.busy = false
		close(r.settled)
	}
}

func notFound(runID string) error {
	return errors.Join(errors.ErrRunNotFound, errors.NewNotFoundError("run", runID))
}
