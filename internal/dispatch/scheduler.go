package dispatch

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/state"
)

// ErrInvalidTransition is returned when a phase change is not allowed from
// the scheduler's current phase.
var ErrInvalidTransition = errors.New("invalid phase transition")

// Status is a specialist's dispatch status within one run.
type Status string

// Specialist dispatch statuses.
const (
	StatusPending   Status = "pending"
	StatusInFlight  Status = "in_flight"
	StatusCompleted Status = "completed"
)

// Progress is what the scheduler needs to rebuild itself for a run.
// *state.PlanState implements it.
type Progress interface {
	Required() []string
	Completed() []string
	Phase() state.Phase
}

// Scheduler is the run's macro-state machine. It decides which specialists
// may be dispatched next and which phase follows the current one. It does
// no I/O.
//
// Selection scans the required specialists in the table's fixed priority
// order, never request order. A specialist is ready when it is pending and
// every dependency it has within the run has completed.
type Scheduler struct {
	mu     sync.Mutex
	table  *specialist.Table
	order  []string
	status map[string]Status
	phase  state.Phase
}

// NewScheduler builds a scheduler for a run's progress. Specialists already
// completed stay completed; nothing is in flight.
func NewScheduler(table *specialist.Table, p Progress) *Scheduler {
	required := p.Required()
	s := &Scheduler{
		table:  table,
		order:  table.Order(required),
		status: make(map[string]Status, len(required)),
		phase:  p.Phase(),
	}
	if s.phase == "" {
		s.phase = state.PhaseDispatching
	}
	for _, name := range s.order {
		s.status[name] = StatusPending
	}
	for _, name := range p.Completed() {
		if _, ok := s.status[name]; ok {
			s.status[name] = StatusCompleted
		}
	}
	return s
}

// Order returns the required specialists in dispatch priority order.
func (s *Scheduler) Order() []string {
	return slices.Clone(s.order)
}

// Phase returns the current phase.
func (s *Scheduler) Phase() state.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Status returns a specialist's dispatch status.
func (s *Scheduler) Status(name string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[name]
	return st, ok
}

// Next returns up to limit ready specialists in priority order. A limit of
// zero or less means no limit. Nothing is returned outside DISPATCHING.
//
// When no specialist is ready and none is in flight, the first pending
// specialist is returned regardless of its dependencies, so a dependency
// cycle introduced through the table cannot stall a run.
func (s *Scheduler) Next(limit int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != state.PhaseDispatching {
		return nil
	}

	var ready []string
	for _, name := range s.order {
		if limit > 0 && len(ready) >= limit {
			break
		}
		if s.isReady(name) {
			ready = append(ready, name)
		}
	}
	if len(ready) == 0 && s.countLocked(StatusInFlight) == 0 {
		for _, name := range s.order {
			if s.status[name] == StatusPending {
				return []string{name}
			}
		}
	}
	return ready
}

func (s *Scheduler) isReady(name string) bool {
	if s.status[name] != StatusPending {
		return false
	}
	for _, dep := range s.table.Dependencies(name, s.order) {
		if s.status[dep] != StatusCompleted {
			return false
		}
	}
	return true
}

// Dispatched marks a specialist in flight. A specialist already in flight
// or completed is rejected so it is never dispatched twice.
func (s *Scheduler) Dispatched(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.status[name]
	switch {
	case !ok:
		return fmt.Errorf("%w: %s", errors.ErrUnknownSpecialist, name)
	case st == StatusInFlight:
		return fmt.Errorf("%w: %s", errors.ErrAlreadyInFlight, name)
	case st == StatusCompleted:
		return fmt.Errorf("%w: %s", errors.ErrSlotTaken, name)
	}
	s.status[name] = StatusInFlight
	return nil
}

// Completed records that an in-flight specialist reported, successfully or
// not.
func (s *Scheduler) Completed(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.status[name]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownSpecialist, name)
	}
	if st != StatusInFlight {
		return fmt.Errorf("%w: %s", errors.ErrNotInFlight, name)
	}
	s.status[name] = StatusCompleted
	return nil
}

// InFlight returns the specialists currently dispatched, in priority order.
func (s *Scheduler) InFlight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, name := range s.order {
		if s.status[name] == StatusInFlight {
			out = append(out, name)
		}
	}
	return out
}

// Done reports whether every required specialist has completed and none is
// in flight.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(StatusCompleted) == len(s.order)
}

func (s *Scheduler) countLocked(st Status) int {
	n := 0
	for _, v := range s.status {
		if v == st {
			n++
		}
	}
	return n
}

// Advance leaves DISPATCHING once every specialist has reported. It moves
// to HUMAN_REVIEW when review is required and to SYNTHESIZING otherwise.
func (s *Scheduler) Advance(reviewRequired bool) (state.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != state.PhaseDispatching {
		return s.phase, fmt.Errorf("%w: advance from %s", ErrInvalidTransition, s.phase)
	}
	if n := s.countLocked(StatusCompleted); n != len(s.order) {
		return s.phase, fmt.Errorf("%w: %d of %d specialists have reported", ErrInvalidTransition, n, len(s.order))
	}
	if reviewRequired {
		s.phase = state.PhaseHumanReview
	} else {
		s.phase = state.PhaseSynthesizing
	}
	return s.phase, nil
}

// Resume applies a review decision. Approved and needs_revision continue
// to SYNTHESIZING; rejected ends the run.
func (s *Scheduler) Resume(decision state.ApprovalStatus) (state.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != state.PhaseHumanReview {
		return s.phase, fmt.Errorf("%w: %s", errors.ErrRunNotPaused, s.phase)
	}
	switch decision {
	case state.ApprovalApproved, state.ApprovalNeedsRevision:
		s.phase = state.PhaseSynthesizing
	case state.ApprovalRejected:
		s.phase = state.PhaseDone
	default:
		return s.phase, fmt.Errorf("%w: %q", errors.ErrInvalidDecision, decision)
	}
	return s.phase, nil
}

// Synthesized leaves SYNTHESIZING. A revised plan that surfaced new errors
// goes back to HUMAN_REVIEW; otherwise the run is DONE.
func (s *Scheduler) Synthesized(reReview bool) (state.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != state.PhaseSynthesizing {
		return s.phase, fmt.Errorf("%w: synthesize from %s", ErrInvalidTransition, s.phase)
	}
	if reReview {
		s.phase = state.PhaseHumanReview
	} else {
		s.phase = state.PhaseDone
	}
	return s.phase, nil
}
