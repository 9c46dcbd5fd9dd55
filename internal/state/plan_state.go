package state

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Iron-Ham/basecamp/internal/errors"
)

// Sentinel errors for plan state mutations.
var (
	ErrIntentSet  = errors.New("intent already set")
	ErrNoIntent   = errors.New("intent not set")
	ErrPlanFrozen = errors.New("run is finished")
)

// Delta is one specialist's contribution to the plan state.
type Delta struct {
	Specialist string
	Output     Output
	Errors     []ErrorRecord
}

// View is the read-only surface specialists see while a run is in flight.
type View interface {
	RunID() string
	UserInput() string
	Preferences() Preferences
	Intent() *Intent
	Output(name string) (Output, bool)
	IsCompleted(name string) bool
}

// PlanState is the single mutable record of a run.
//
// The completed set and the error log are merged from any number of
// concurrent writers through Apply. Each output slot is written once, by
// the specialist that owns it; a second write is rejected. All fields are
// guarded by one mutex so readers always observe a consistent record.
type PlanState struct {
	mu sync.RWMutex

	runID       string
	userInput   string
	preferences Preferences
	intent      *Intent
	required    []string
	completed   *GSet
	errors      ErrorLog
	outputs     map[string]Output
	plan        *Plan
	phase       Phase

	approval      ApprovalStatus
	feedback      string
	reviewReasons []string
	history       []ReviewEntry

	createdAt time.Time
	updatedAt time.Time

	now func() time.Time
}

// New creates an empty plan state for a run.
func New(runID, userInput string, prefs Preferences) *PlanState {
	now := time.Now().UTC()
	return &PlanState{
		runID:       runID,
		userInput:   userInput,
		preferences: prefs,
		completed:   NewGSet(),
		outputs:     make(map[string]Output),
		phase:       PhaseDispatching,
		createdAt:   now,
		updatedAt:   now,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *PlanState) touch() {
	s.updatedAt = s.now()
}

// RunID returns the run identifier.
func (s *PlanState) RunID() string { return s.runID }

// UserInput returns the original request text.
func (s *PlanState) UserInput() string { return s.userInput }

// Preferences returns the request's structured hints.
func (s *PlanState) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preferences
}

// SetIntent records the analyzed intent and the required specialist list.
// It may be called once. Explicit preferences are merged with what the
// analyzer extracted; the explicit value wins.
func (s *PlanState) SetIntent(intent Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.intent != nil {
		return ErrIntentSet
	}
	if len(intent.RequiredSpecialists) == 0 {
		return errors.ErrNoSpecialists
	}

	required := make([]string, 0, len(intent.RequiredSpecialists))
	for _, name := range intent.RequiredSpecialists {
		if !slices.Contains(required, name) {
			required = append(required, name)
		}
	}
	intent.RequiredSpecialists = required

	cp := intent
	s.intent = &cp
	s.required = slices.Clone(required)
	s.preferences = s.preferences.Merge(Preferences{
		Region:        intent.Location,
		DurationDays:  intent.DurationDays,
		SkillLevel:    intent.SkillLevel,
		ActivityType:  intent.ActivityType,
		AdventureType: intent.AdventureType,
	})
	s.touch()
	return nil
}

// Intent returns a copy of the analyzed intent, or nil before analysis.
func (s *PlanState) Intent() *Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.intent == nil {
		return nil
	}
	cp := *s.intent
	cp.RequiredSpecialists = slices.Clone(s.intent.RequiredSpecialists)
	cp.SuggestedOrder = slices.Clone(s.intent.SuggestedOrder)
	if s.intent.Context != nil {
		cp.Context = make(map[string]string, len(s.intent.Context))
		for k, v := range s.intent.Context {
			cp.Context[k] = v
		}
	}
	return &cp
}

// Required returns the required specialists in request order.
func (s *PlanState) Required() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.required)
}

// Apply merges a specialist's contribution: its output slot, its error
// records and its completion marker. The specialist must be required and
// its slot must be unwritten.
func (s *PlanState) Apply(d Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseDone {
		return ErrPlanFrozen
	}
	if !slices.Contains(s.required, d.Specialist) {
		return fmt.Errorf("%w: %s", errors.ErrUnknownSpecialist, d.Specialist)
	}
	if _, taken := s.outputs[d.Specialist]; taken {
		return fmt.Errorf("%w: %s", errors.ErrSlotTaken, d.Specialist)
	}

	s.outputs[d.Specialist] = d.Output
	s.errors = s.errors.Merge(d.Errors)
	s.completed.Add(d.Specialist)
	s.touch()
	return nil
}

// RecordError appends run-level error records that belong to no
// specialist slot, such as a failed synthesis.
func (s *PlanState) RecordError(recs ...ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseDone {
		return ErrPlanFrozen
	}
	s.errors = s.errors.Append(recs...)
	s.touch()
	return nil
}

// IsCompleted reports whether name has reported.
func (s *PlanState) IsCompleted(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed.Has(name)
}

// Completed returns the completed specialists in sorted order.
func (s *PlanState) Completed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed.Members()
}

// AllCompleted reports whether every required specialist has reported.
func (s *PlanState) AllCompleted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.required) > 0 && s.completed.Equals(s.required)
}

// Pending returns required specialists that have not reported, in request
// order.
func (s *PlanState) Pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, name := range s.required {
		if !s.completed.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Output returns a specialist's slot.
func (s *PlanState) Output(name string) (Output, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outputs[name]
	return o, ok
}

// Errors returns a copy of the error log.
func (s *PlanState) Errors() ErrorLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.errors)
}

// ErrorCount returns the number of error records.
func (s *PlanState) ErrorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.errors)
}

// Phase returns the current macro-state.
func (s *PlanState) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// SetPhase records a scheduler transition.
func (s *PlanState) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
	s.touch()
}

// SetPlan stores the synthesized plan. Each call is a new revision.
func (s *PlanState) SetPlan(p Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan != nil {
		p.Revision = s.plan.Revision + 1
	} else {
		p.Revision = 1
	}
	s.plan = &p
	s.touch()
}

// Plan returns the synthesized plan, or nil.
func (s *PlanState) Plan() *Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return nil
	}
	cp := *s.plan
	return &cp
}

// Pause marks the run as awaiting human review.
func (s *PlanState) Pause(reasons []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approval = ApprovalPending
	s.reviewReasons = slices.Clone(reasons)
	s.touch()
}

// ReviewReasons returns why the run paused.
func (s *PlanState) ReviewReasons() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.reviewReasons)
}

// RecordDecision stores a review decision and appends it to the history.
func (s *PlanState) RecordDecision(status ApprovalStatus, feedback string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approval = status
	s.feedback = feedback
	s.history = append(s.history, ReviewEntry{
		Status:   status,
		Feedback: feedback,
		Reasons:  slices.Clone(s.reviewReasons),
		At:       s.now(),
	})
	s.reviewReasons = nil
	s.touch()
}

// Reject drops the synthesized plan of a rejected run. The discarded
// revision number is kept on the latest review entry.
func (s *PlanState) Reject() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan != nil && len(s.history) > 0 {
		s.history[len(s.history)-1].DiscardedRevision = s.plan.Revision
	}
	s.plan = nil
	s.touch()
}

// Approval returns the latest approval status and feedback.
func (s *PlanState) Approval() (ApprovalStatus, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approval, s.feedback
}

// ClearFeedback drops consumed feedback. The review history keeps it.
func (s *PlanState) ClearFeedback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = ""
	s.touch()
}

// History returns the review decisions in order.
func (s *PlanState) History() []ReviewEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// CreatedAt returns when the run started.
func (s *PlanState) CreatedAt() time.Time { return s.createdAt }

// Snapshot is the serializable form of a plan state. Its JSON encoding is
// deterministic: sets are sorted and maps are encoded with sorted keys.
type Snapshot struct {
	RunID                string            `json:"run_id"`
	Phase                Phase             `json:"phase"`
	UserInput            string            `json:"user_input"`
	Preferences          Preferences       `json:"user_preferences"`
	Intent               *Intent           `json:"intent,omitempty"`
	RequiredSpecialists  []string          `json:"required_specialists"`
	CompletedSpecialists []string          `json:"completed_specialists"`
	CompletionLog        []string          `json:"completion_log"`
	ErrorRecords         []ErrorRecord     `json:"error_records"`
	Outputs              map[string]Output `json:"outputs"`
	AdventurePlan        *Plan             `json:"adventure_plan,omitempty"`
	ApprovalStatus       ApprovalStatus    `json:"approval_status,omitempty"`
	HumanFeedback        string            `json:"human_feedback,omitempty"`
	ReviewReasons        []string          `json:"review_reasons,omitempty"`
	ReviewHistory        []ReviewEntry     `json:"review_history,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

func (s *PlanState) document() Snapshot {
	required := s.required
	if required == nil {
		required = []string{}
	}
	log := s.completed.log
	if log == nil {
		log = []string{}
	}
	errs := []ErrorRecord(s.errors)
	if errs == nil {
		errs = []ErrorRecord{}
	}
	return Snapshot{
		RunID:                s.runID,
		Phase:                s.phase,
		UserInput:            s.userInput,
		Preferences:          s.preferences,
		Intent:               s.intent,
		RequiredSpecialists:  required,
		CompletedSpecialists: s.completed.Members(),
		CompletionLog:        log,
		ErrorRecords:         errs,
		Outputs:              s.outputs,
		AdventurePlan:        s.plan,
		ApprovalStatus:       s.approval,
		HumanFeedback:        s.feedback,
		ReviewReasons:        s.reviewReasons,
		ReviewHistory:        s.history,
		CreatedAt:            s.createdAt,
		UpdatedAt:            s.updatedAt,
	}
}

// MarshalJSON encodes the current state.
func (s *PlanState) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.document())
}

// Snapshot returns a deep copy of the current state.
func (s *PlanState) Snapshot() (Snapshot, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Restore rebuilds a plan state from a snapshot, e.g. when resuming a
// paused run.
func Restore(snap Snapshot) *PlanState {
	s := New(snap.RunID, snap.UserInput, snap.Preferences)
	s.phase = snap.Phase
	if snap.Intent != nil {
		cp := *snap.Intent
		s.intent = &cp
	}
	s.required = slices.Clone(snap.RequiredSpecialists)
	s.completed = NewGSet()
	for _, n := range snap.CompletionLog {
		s.completed.Add(n)
	}
	// Older snapshots may lack the log; membership is what matters.
	for _, n := range snap.CompletedSpecialists {
		if !s.completed.Has(n) {
			s.completed.Add(n)
		}
	}
	s.errors = slices.Clone(ErrorLog(snap.ErrorRecords))
	for k, v := range snap.Outputs {
		s.outputs[k] = v
	}
	if snap.AdventurePlan != nil {
		cp := *snap.AdventurePlan
		s.plan = &cp
	}
	s.approval = snap.ApprovalStatus
	s.feedback = snap.HumanFeedback
	s.reviewReasons = slices.Clone(snap.ReviewReasons)
	s.history = slices.Clone(snap.ReviewHistory)
	s.createdAt = snap.CreatedAt
	s.updatedAt = snap.UpdatedAt
	return s
}
