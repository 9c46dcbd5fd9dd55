package dispatch

import (
	"slices"
	"testing"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/state"
)

type progress struct {
	required  []string
	completed []string
	phase     state.Phase
}

func (p progress) Required() []string  { return p.required }
func (p progress) Completed() []string { return p.completed }
func (p progress) Phase() state.Phase  { return p.phase }

func newScheduler(required ...string) *Scheduler {
	return NewScheduler(specialist.NewTable([]string{"sedona_agent", "jerome_agent"}), progress{required: required})
}

func TestNext_PriorityNotRequestOrder(t *testing.T) {
	s := newScheduler(specialist.Trail, specialist.Geo)
	if got := s.Next(0); !slices.Equal(got, []string{specialist.Geo}) {
		t.Errorf("Next() = %v, want [geo_agent]", got)
	}
}

func TestNext_ReadyRespectsDependencies(t *testing.T) {
	s := newScheduler(specialist.Planning, specialist.Trail, specialist.Weather, specialist.Geo, "sedona_agent", "mystery_agent")

	tests := []struct {
		complete []string
		want     []string
	}{
		{nil, []string{specialist.Geo, specialist.Weather, "mystery_agent"}},
		{[]string{specialist.Geo}, []string{specialist.Trail, "sedona_agent"}},
		{[]string{specialist.Trail}, []string{specialist.Planning}},
	}
	for i, tt := range tests {
		for _, name := range tt.complete {
			if err := s.Completed(name); err != nil {
				t.Fatalf("step %d: Completed(%s): %v", i, name, err)
			}
		}
		got := s.Next(0)
		if !slices.Equal(got, tt.want) {
			t.Fatalf("step %d: Next() = %v, want %v", i, got, tt.want)
		}
		for _, name := range got {
			if err := s.Dispatched(name); err != nil {
				t.Fatalf("step %d: Dispatched(%s): %v", i, name, err)
			}
		}
	}
}

func TestNext_Limit(t *testing.T) {
	s := newScheduler(specialist.Geo, specialist.Weather, specialist.Permits)
	if got := s.Next(2); !slices.Equal(got, []string{specialist.Geo, specialist.Weather}) {
		t.Errorf("Next(2) = %v", got)
	}
}

func TestNext_UnknownScheduledLast(t *testing.T) {
	s := newScheduler("zeta_agent", "alpha_agent", specialist.Gear, "jerome_agent")
	want := []string{specialist.Gear, "jerome_agent", "zeta_agent", "alpha_agent"}
	if got := s.Order(); !slices.Equal(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
}

func TestNext_CycleFallback(t *testing.T) {
	table := specialist.NewTable(nil)
	table.SetDependencies(specialist.Geo, specialist.Trail)
	s := NewScheduler(table, progress{required: []string{specialist.Geo, specialist.Trail}})

	if got := s.Next(0); !slices.Equal(got, []string{specialist.Geo}) {
		t.Errorf("Next() = %v, want the first pending specialist", got)
	}
}

func TestDispatched_NoRedispatch(t *testing.T) {
	s := newScheduler(specialist.Geo)

	if err := s.Dispatched(specialist.Geo); err != nil {
		t.Fatalf("Dispatched: %v", err)
	}
	if got := s.Next(0); len(got) != 0 {
		t.Errorf("Next() = %v while geo is in flight, want none", got)
	}
	if err := s.Dispatched(specialist.Geo); !errors.Is(err, errors.ErrAlreadyInFlight) {
		t.Errorf("second Dispatched = %v, want ErrAlreadyInFlight", err)
	}
	if err := s.Completed(specialist.Geo); err != nil {
		t.Fatalf("Completed: %v", err)
	}
	if err := s.Completed(specialist.Geo); !errors.Is(err, errors.ErrNotInFlight) {
		t.Errorf("second Completed = %v, want ErrNotInFlight", err)
	}
	if err := s.Dispatched(specialist.Geo); !errors.Is(err, errors.ErrSlotTaken) {
		t.Errorf("Dispatched after completion = %v, want ErrSlotTaken", err)
	}
	if err := s.Dispatched("ghost_agent"); !errors.Is(err, errors.ErrUnknownSpecialist) {
		t.Errorf("Dispatched(unknown) = %v, want ErrUnknownSpecialist", err)
	}
}

func TestAdvance(t *testing.T) {
	s := newScheduler(specialist.Geo)

	if _, err := s.Advance(false); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Advance before completion = %v, want ErrInvalidTransition", err)
	}
	_ = s.Dispatched(specialist.Geo)
	if _, err := s.Advance(false); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Advance while in flight = %v, want ErrInvalidTransition", err)
	}
	_ = s.Completed(specialist.Geo)

	if !s.Done() {
		t.Fatal("Done() = false after the only specialist completed")
	}
	phase, err := s.Advance(true)
	if err != nil || phase != state.PhaseHumanReview {
		t.Fatalf("Advance(true) = %s, %v; want HUMAN_REVIEW", phase, err)
	}
	if got := s.Next(0); got != nil {
		t.Errorf("Next() outside DISPATCHING = %v", got)
	}
}

func TestResume(t *testing.T) {
	tests := []struct {
		decision state.ApprovalStatus
		want     state.Phase
		wantErr  error
	}{
		{state.ApprovalApproved, state.PhaseSynthesizing, nil},
		{state.ApprovalNeedsRevision, state.PhaseSynthesizing, nil},
		{state.ApprovalRejected, state.PhaseDone, nil},
		{"maybe", state.PhaseHumanReview, errors.ErrInvalidDecision},
	}
	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			s := NewScheduler(specialist.NewTable(nil), progress{
				required:  []string{specialist.Geo},
				completed: []string{specialist.Geo},
				phase:     state.PhaseHumanReview,
			})
			got, err := s.Resume(tt.decision)
			if got != tt.want {
				t.Errorf("Resume(%s) phase = %s, want %s", tt.decision, got, tt.want)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Resume(%s) err = %v, want %v", tt.decision, err, tt.wantErr)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Resume(%s) err = %v", tt.decision, err)
			}
		})
	}

	s := newScheduler(specialist.Geo)
	if _, err := s.Resume(state.ApprovalApproved); !errors.Is(err, errors.ErrRunNotPaused) {
		t.Errorf("Resume while dispatching = %v, want ErrRunNotPaused", err)
	}
}

func TestSynthesized(t *testing.T) {
	s := NewScheduler(specialist.NewTable(nil), progress{
		required:  []string{specialist.Geo},
		completed: []string{specialist.Geo},
		phase:     state.PhaseSynthesizing,
	})
	if phase, err := s.Synthesized(true); err != nil || phase != state.PhaseHumanReview {
		t.Fatalf("Synthesized(true) = %s, %v", phase, err)
	}
	if _, err := s.Synthesized(false); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Synthesized from HUMAN_REVIEW = %v, want ErrInvalidTransition", err)
	}
	_, _ = s.Resume(state.ApprovalApproved)
	if phase, _ := s.Synthesized(false); phase != state.PhaseDone {
		t.Errorf("phase = %s, want DONE", phase)
	}
}
