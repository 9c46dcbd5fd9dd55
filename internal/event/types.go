package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "run.paused", "specialist.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeRunSubmitted         = "run.submitted"
	TypeRunAnalyzed          = "run.analyzed"
	TypePhaseChanged         = "run.phase_changed"
	TypeRunPaused            = "run.paused"
	TypeRunResumed           = "run.resumed"
	TypeRunFinished          = "run.finished"
	TypeSpecialistDispatched = "specialist.dispatched"
	TypeSpecialistCompleted  = "specialist.completed"
	TypeLockout              = "ratelimit.lockout"
	TypeCacheLookup          = "cache.lookup"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunSubmittedEvent is emitted when a new run is accepted.
type RunSubmittedEvent struct {
	baseEvent
	RunID     string
	UserInput string
}

// NewRunSubmittedEvent creates a RunSubmittedEvent.
func NewRunSubmittedEvent(runID, userInput string) RunSubmittedEvent {
	return RunSubmittedEvent{
		baseEvent: newBaseEvent(TypeRunSubmitted),
		RunID:     runID,
		UserInput: userInput,
	}
}

// RunAnalyzedEvent is emitted once intent analysis has produced the
// required specialist list.
type RunAnalyzedEvent struct {
	baseEvent
	RunID       string
	Activity    string
	Location    string
	Specialists []string
	Fallback    string // "", "heuristic" or "minimal"
}

// NewRunAnalyzedEvent creates a RunAnalyzedEvent.
func NewRunAnalyzedEvent(runID, activity, location string, specialists []string, fallback string) RunAnalyzedEvent {
	return RunAnalyzedEvent{
		baseEvent:   newBaseEvent(TypeRunAnalyzed),
		RunID:       runID,
		Activity:    activity,
		Location:    location,
		Specialists: specialists,
		Fallback:    fallback,
	}
}

// PhaseChangedEvent is emitted on every scheduler state transition.
type PhaseChangedEvent struct {
	baseEvent
	RunID string
	From  string
	To    string
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(runID, from, to string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent(TypePhaseChanged),
		RunID:     runID,
		From:      from,
		To:        to,
	}
}

// RunPausedEvent is emitted when a run halts for human review.
type RunPausedEvent struct {
	baseEvent
	RunID   string
	Reasons []string
}

// NewRunPausedEvent creates a RunPausedEvent.
func NewRunPausedEvent(runID string, reasons []string) RunPausedEvent {
	return RunPausedEvent{
		baseEvent: newBaseEvent(TypeRunPaused),
		RunID:     runID,
		Reasons:   reasons,
	}
}

// RunResumedEvent is emitted when a review decision is applied.
type RunResumedEvent struct {
	baseEvent
	RunID    string
	Status   string
	Feedback string
}

// NewRunResumedEvent creates a RunResumedEvent.
func NewRunResumedEvent(runID, status, feedback string) RunResumedEvent {
	return RunResumedEvent{
		baseEvent: newBaseEvent(TypeRunResumed),
		RunID:     runID,
		Status:    status,
		Feedback:  feedback,
	}
}

// RunFinishedEvent is emitted when a run reaches DONE.
type RunFinishedEvent struct {
	baseEvent
	RunID    string
	HasPlan  bool
	Rejected bool
	Errors   int
	Duration time.Duration
}

// NewRunFinishedEvent creates a RunFinishedEvent.
func NewRunFinishedEvent(runID string, hasPlan, rejected bool, errors int, duration time.Duration) RunFinishedEvent {
	return RunFinishedEvent{
		baseEvent: newBaseEvent(TypeRunFinished),
		RunID:     runID,
		HasPlan:   hasPlan,
		Rejected:  rejected,
		Errors:    errors,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Specialist Events
// -----------------------------------------------------------------------------

// SpecialistDispatchedEvent is emitted when a specialist is handed to a worker.
type SpecialistDispatchedEvent struct {
	baseEvent
	RunID      string
	Specialist string
}

// NewSpecialistDispatchedEvent creates a SpecialistDispatchedEvent.
func NewSpecialistDispatchedEvent(runID, specialist string) SpecialistDispatchedEvent {
	return SpecialistDispatchedEvent{
		baseEvent:  newBaseEvent(TypeSpecialistDispatched),
		RunID:      runID,
		Specialist: specialist,
	}
}

// SpecialistCompletedEvent is emitted when a specialist reports, whether it
// succeeded or not. Kind is empty on success.
type SpecialistCompletedEvent struct {
	baseEvent
	RunID      string
	Specialist string
	Kind       string
	Attempts   int
	Duration   time.Duration
}

// NewSpecialistCompletedEvent creates a SpecialistCompletedEvent.
func NewSpecialistCompletedEvent(runID, specialist, kind string, attempts int, duration time.Duration) SpecialistCompletedEvent {
	return SpecialistCompletedEvent{
		baseEvent:  newBaseEvent(TypeSpecialistCompleted),
		RunID:      runID,
		Specialist: specialist,
		Kind:       kind,
		Attempts:   attempts,
		Duration:   duration,
	}
}

// Failed reports whether the specialist produced an error record.
func (e SpecialistCompletedEvent) Failed() bool {
	return e.Kind != ""
}

// -----------------------------------------------------------------------------
// Shared Resource Events
// -----------------------------------------------------------------------------

// LockoutEvent is emitted when an endpoint enters a rate-limit lockout.
type LockoutEvent struct {
	baseEvent
	Endpoint string
	Until    time.Time
}

// NewLockoutEvent creates a LockoutEvent.
func NewLockoutEvent(endpoint string, until time.Time) LockoutEvent {
	return LockoutEvent{
		baseEvent: newBaseEvent(TypeLockout),
		Endpoint:  endpoint,
		Until:     until,
	}
}

// CacheLookupEvent is emitted by the cache-around wrapper for every lookup.
type CacheLookupEvent struct {
	baseEvent
	Endpoint string
	Hit      bool
}

// NewCacheLookupEvent creates a CacheLookupEvent.
func NewCacheLookupEvent(endpoint string, hit bool) CacheLookupEvent {
	return CacheLookupEvent{
		baseEvent: newBaseEvent(TypeCacheLookup),
		Endpoint:  endpoint,
		Hit:       hit,
	}
}
