package review

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/basecamp/internal/config"
	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/event"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/state"
)

// DefaultDurationThresholdDays is the trip length above which a run pauses
// for review even without errors.
const DefaultDurationThresholdDays = 7

// Subject is the part of a run the gate inspects and mutates.
// *state.PlanState implements it.
type Subject interface {
	RunID() string
	Phase() state.Phase
	Preferences() state.Preferences
	Intent() *state.Intent
	Errors() state.ErrorLog
	ErrorCount() int
	Pause(reasons []string)
	RecordDecision(status state.ApprovalStatus, feedback string)
}

// Decision is a resume signal.
type Decision struct {
	Status   state.ApprovalStatus `json:"status"`
	Feedback string               `json:"feedback,omitempty"`
}

// ParseDecision validates a decision from an outside caller. Status is
// matched case-insensitively; "needs-revision" is accepted for
// "needs_revision".
func ParseDecision(status, feedback string) (Decision, error) {
	s := strings.ToLower(strings.TrimSpace(status))
	s = strings.ReplaceAll(s, "-", "_")
	d := Decision{Status: state.ApprovalStatus(s), Feedback: strings.TrimSpace(feedback)}
	if !d.Status.ValidDecision() {
		return Decision{}, fmt.Errorf("%w: %q", errors.ErrInvalidDecision, status)
	}
	return d, nil
}

// Validate reports whether d carries a valid status.
func (d Decision) Validate() error {
	if !d.Status.ValidDecision() {
		return fmt.Errorf("%w: %q", errors.ErrInvalidDecision, d.Status)
	}
	return nil
}

// Options configures a Gate.
type Options struct {
	// Disabled skips review entirely; Evaluate never reports a reason.
	Disabled              bool
	DurationThresholdDays int
	Logger                *logging.Logger
	Bus                   *event.Bus
}

type pausedRun struct {
	reasons  []string
	pausedAt time.Time
}

// Gate evaluates the review predicate and tracks paused runs.
type Gate struct {
	mu        sync.Mutex
	disabled  bool
	threshold int
	logger    *logging.Logger
	bus       *event.Bus
	pending   map[string]pausedRun // runID -> pause record

	now func() time.Time
}

// NewGate creates a Gate.
func NewGate(opts Options) *Gate {
	if opts.DurationThresholdDays <= 0 {
		opts.DurationThresholdDays = DefaultDurationThresholdDays
	}
	return &Gate{
		disabled:  opts.Disabled,
		threshold: opts.DurationThresholdDays,
		logger:    logging.OrNop(opts.Logger),
		bus:       opts.Bus,
		pending:   make(map[string]pausedRun),
		now:       time.Now,
	}
}

// FromConfig builds a Gate from the review configuration section.
func FromConfig(cfg config.ReviewConfig, logger *logging.Logger, bus *event.Bus) *Gate {
	return NewGate(Options{
		Disabled:              !cfg.Enabled,
		DurationThresholdDays: cfg.DurationThresholdDays,
		Logger:                logger,
		Bus:                   bus,
	})
}

// Threshold returns the duration threshold in days.
func (g *Gate) Threshold() int {
	return g.threshold
}

// Required reports whether a run with the given errors and duration must
// be reviewed.
func Required(errorCount, durationDays, threshold int) bool {
	return errorCount > 0 || durationDays > threshold
}

// Evaluate returns why s needs review. An empty result means the run may
// proceed to synthesis.
func (g *Gate) Evaluate(s Subject) []string {
	if g.disabled {
		return nil
	}
	var reasons []string
	if errs := s.Errors(); len(errs) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d specialist error(s): %s", len(errs), strings.Join(failedSpecialists(errs), ", ")))
	}
	if d := durationOf(s); d > g.threshold {
		reasons = append(reasons, fmt.Sprintf("duration %d days exceeds %d", d, g.threshold))
	}
	return reasons
}

// ReEvaluate decides whether a revised plan goes back to review. Only
// errors recorded after the decision count; duration alone never
// re-triggers review.
func (g *Gate) ReEvaluate(s Subject, errorsAtDecision int) []string {
	if g.disabled {
		return nil
	}
	n := s.ErrorCount() - errorsAtDecision
	if n <= 0 {
		return nil
	}
	errs := s.Errors()
	return []string{fmt.Sprintf("%d new error(s) during revision: %s", n, strings.Join(failedSpecialists(errs[errorsAtDecision:]), ", "))}
}

// Pause marks s as awaiting review.
func (g *Gate) Pause(s Subject, reasons []string) {
	runID := s.RunID()
	s.Pause(reasons)

	g.mu.Lock()
	g.pending[runID] = pausedRun{reasons: slices.Clone(reasons), pausedAt: g.now()}
	g.mu.Unlock()

	g.logger.WithRun(runID).Info("run paused for review", "reasons", reasons)
	g.bus.Publish(event.NewRunPausedEvent(runID, reasons))
}

// Resume applies a decision to a run paused at the gate. The run's phase
// must still be HUMAN_REVIEW. Runs restored from storage are accepted
// even though this gate never saw them pause.
func (g *Gate) Resume(s Subject, d Decision) error {
	if err := d.Validate(); err != nil {
		return err
	}
	runID := s.RunID()
	if p := s.Phase(); p != state.PhaseHumanReview {
		if p.Terminal() {
			return fmt.Errorf("%w: %s", errors.ErrRunTerminal, runID)
		}
		return fmt.Errorf("%w: %s is %s", errors.ErrRunNotPaused, runID, p)
	}

	s.RecordDecision(d.Status, d.Feedback)

	g.mu.Lock()
	delete(g.pending, runID)
	g.mu.Unlock()

	g.logger.WithRun(runID).Info("review decision recorded", "status", string(d.Status), "has_feedback", d.Feedback != "")
	g.bus.Publish(event.NewRunResumedEvent(runID, string(d.Status), d.Feedback))
	return nil
}

// Forget drops a run from the pending set, e.g. when it is abandoned.
func (g *Gate) Forget(runID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, runID)
}

// PendingReviews returns the ids of runs paused at this gate, oldest first.
func (g *Gate) PendingReviews() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return g.pending[a].pausedAt.Compare(g.pending[b].pausedAt)
	})
	return ids
}

// IsAwaitingReview reports whether runID paused at this gate and has not
// been resumed.
func (g *Gate) IsAwaitingReview(runID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[runID]
	return ok
}

func durationOf(s Subject) int {
	if d := s.Preferences().DurationDays; d > 0 {
		return d
	}
	if in := s.Intent(); in != nil {
		return in.DurationDays
	}
	return 0
}

func failedSpecialists(errs state.ErrorLog) []string {
	var names []string
	for _, r := range errs {
		if !slices.Contains(names, r.Specialist) {
			names = append(names, r.Specialist)
		}
	}
	return names
}
