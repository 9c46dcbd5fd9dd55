package state

import (
	"time"

	"github.com/Iron-Ham/basecamp/internal/errors"
)

// Phase is the run's macro-state as driven by the dispatch scheduler.
type Phase string

// Run phases.
const (
	PhaseDispatching  Phase = "DISPATCHING"
	PhaseHumanReview  Phase = "HUMAN_REVIEW"
	PhaseSynthesizing Phase = "SYNTHESIZING"
	PhaseDone         Phase = "DONE"
)

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone
}

// ApprovalStatus is the human-review decision recorded on the run.
type ApprovalStatus string

// Approval statuses. Pending is set when a run pauses; the others arrive
// with a resume signal.
const (
	ApprovalNone          ApprovalStatus = ""
	ApprovalPending       ApprovalStatus = "pending"
	ApprovalApproved      ApprovalStatus = "approved"
	ApprovalRejected      ApprovalStatus = "rejected"
	ApprovalNeedsRevision ApprovalStatus = "needs_revision"
)

// ValidDecision reports whether s may be supplied on resume.
func (s ApprovalStatus) ValidDecision() bool {
	switch s {
	case ApprovalApproved, ApprovalRejected, ApprovalNeedsRevision:
		return true
	}
	return false
}

// Intent is the structured reading of the user's request. It is created
// once per run by the intent analyzer and not modified afterwards.
type Intent struct {
	ActivityType        string            `json:"activity_type"`
	AdventureType       string            `json:"adventure_type,omitempty"`
	Location            string            `json:"location,omitempty"`
	DurationDays        int               `json:"duration_days,omitempty"`
	SkillLevel          string            `json:"skill_level,omitempty"`
	RequiredSpecialists []string          `json:"required_specialists"`
	Context             map[string]string `json:"specialist_context,omitempty"`
	SuggestedOrder      []string          `json:"suggested_order,omitempty"`
}

// ContextFor returns the free-text context for a specialist.
func (i *Intent) ContextFor(name string) string {
	if i == nil {
		return ""
	}
	return i.Context[name]
}

// ErrorRecord is the structured form of a specialist failure.
type ErrorRecord struct {
	Specialist     string      `json:"specialist"`
	Kind           errors.Kind `json:"kind"`
	Message        string      `json:"message"`
	UnderlyingType string      `json:"underlying_type"`
	Attempts       int         `json:"attempts,omitempty"`
	At             time.Time   `json:"at"`
}

// NewErrorRecord classifies err and builds a record for specialist.
func NewErrorRecord(specialist string, err error, attempts int, at time.Time) ErrorRecord {
	return ErrorRecord{
		Specialist:     specialist,
		Kind:           errors.Classify(err),
		Message:        err.Error(),
		UnderlyingType: errors.UnderlyingType(err),
		Attempts:       attempts,
		At:             at.UTC(),
	}
}

// DayPlan is one day of the synthesized itinerary.
type DayPlan struct {
	Day        int      `json:"day"`
	Title      string   `json:"title"`
	Activities []string `json:"activities,omitempty"`
	Lodging    string   `json:"lodging,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Plan is the final synthesized adventure plan.
type Plan struct {
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Itinerary        []DayPlan         `json:"itinerary,omitempty"`
	Sections         map[string]string `json:"sections,omitempty"`
	GearChecklist    []string          `json:"gear_checklist,omitempty"`
	SafetyNotes      []string          `json:"safety_notes,omitempty"`
	DegradedSections []string          `json:"degraded_sections,omitempty"`
	MissingSections  []string          `json:"missing_sections,omitempty"`
	Error            string            `json:"error,omitempty"`
	Revision         int               `json:"revision"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// Minimal reports whether the plan is the fallback produced when
// synthesis failed.
func (p *Plan) Minimal() bool {
	return p != nil && p.Error != ""
}

// ReviewEntry records one human-review decision.
type ReviewEntry struct {
	Status   ApprovalStatus `json:"status"`
	Feedback string         `json:"feedback,omitempty"`
	Reasons  []string       `json:"reasons,omitempty"`
	At       time.Time      `json:"at"`

	// DiscardedRevision is the plan revision dropped by a rejection.
	DiscardedRevision int `json:"discarded_revision,omitempty"`
}
