package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/basecamp/internal/errors"
)

func newTestState(t *testing.T, required ...string) *PlanState {
	t.Helper()
	s := New("run-1", "5 day bikepacking trip near Sedona", Preferences{SkillLevel: "expert"})
	if err := s.SetIntent(Intent{ActivityType: "bikepacking", Location: "Sedona", DurationDays: 5, SkillLevel: "beginner", RequiredSpecialists: required}); err != nil {
		t.Fatalf("SetIntent: %v", err)
	}
	return s
}

func TestSetIntent(t *testing.T) {
	s := newTestState(t, "geo_agent", "trail_agent", "geo_agent")

	if got := s.Required(); len(got) != 2 || got[0] != "geo_agent" || got[1] != "trail_agent" {
		t.Errorf("Required() = %v, want deduplicated request order", got)
	}

	prefs := s.Preferences()
	if prefs.SkillLevel != "expert" {
		t.Errorf("SkillLevel = %q, explicit preference should win", prefs.SkillLevel)
	}
	if prefs.Region != "Sedona" || prefs.DurationDays != 5 {
		t.Errorf("Preferences = %+v, extracted values should fill gaps", prefs)
	}

	if err := s.SetIntent(Intent{RequiredSpecialists: []string{"x"}}); !errors.Is(err, ErrIntentSet) {
		t.Errorf("second SetIntent = %v, want ErrIntentSet", err)
	}

	empty := New("r", "", Preferences{})
	if err := empty.SetIntent(Intent{}); !errors.Is(err, errors.ErrNoSpecialists) {
		t.Errorf("SetIntent(empty) = %v, want ErrNoSpecialists", err)
	}
}

func TestApply(t *testing.T) {
	s := newTestState(t, "geo_agent", "trail_agent")

	if err := s.Apply(Delta{Specialist: "geo_agent", Output: NewOutput(&GeoResult{DisplayName: "Sedona, AZ"})}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !s.IsCompleted("geo_agent") || s.AllCompleted() {
		t.Error("geo_agent should be complete, the run should not")
	}
	if got := s.Pending(); len(got) != 1 || got[0] != "trail_agent" {
		t.Errorf("Pending() = %v, want [trail_agent]", got)
	}

	tests := []struct {
		name string
		d    Delta
		want error
	}{
		{"second write to a slot", Delta{Specialist: "geo_agent"}, errors.ErrSlotTaken},
		{"not required", Delta{Specialist: "gear_agent"}, errors.ErrUnknownSpecialist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Apply(tt.d); !errors.Is(err, tt.want) {
				t.Errorf("Apply() = %v, want %v", err, tt.want)
			}
		})
	}

	rec := NewErrorRecord("trail_agent", fmt.Errorf("overpass: connection refused"), 3, time.Now())
	if err := s.Apply(Delta{Specialist: "trail_agent", Errors: []ErrorRecord{rec}}); err != nil {
		t.Fatalf("Apply failure delta: %v", err)
	}
	if !s.AllCompleted() {
		t.Error("a failing specialist still completes")
	}
	if out, ok := s.Output("trail_agent"); !ok || !out.Empty() {
		t.Errorf("failing specialist should own an empty slot, got %v, %v", out, ok)
	}
	errs := s.Errors()
	if len(errs) != 1 || errs[0].Kind != errors.KindTransient {
		t.Errorf("Errors() = %+v, want one TRANSIENT record", errs)
	}
}

func TestApply_FrozenWhenDone(t *testing.T) {
	s := newTestState(t, "geo_agent")
	s.SetPhase(PhaseDone)
	if err := s.Apply(Delta{Specialist: "geo_agent"}); !errors.Is(err, ErrPlanFrozen) {
		t.Errorf("Apply after DONE = %v, want ErrPlanFrozen", err)
	}
}

func TestApply_OrderIndependent(t *testing.T) {
	names := []string{"geo_agent", "weather_agent", "trail_agent", "gear_agent"}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}

	var want []string
	for i, order := range orders {
		s := newTestState(t, names...)
		for _, idx := range order {
			var errs []ErrorRecord
			if names[idx] == "weather_agent" {
				errs = []ErrorRecord{{Specialist: "weather_agent", Kind: errors.KindPermanent, Message: "boom"}}
			}
			if err := s.Apply(Delta{Specialist: names[idx], Errors: errs}); err != nil {
				t.Fatalf("Apply: %v", err)
			}
		}
		got := s.Completed()
		if i == 0 {
			want = got
			continue
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("order %v: Completed() = %v, want %v", order, got, want)
		}
		if s.ErrorCount() != 1 {
			t.Errorf("order %v: ErrorCount() = %d, want 1", order, s.ErrorCount())
		}
	}
}

func TestApply_ConcurrentWritersLoseNothing(t *testing.T) {
	var names []string
	for i := 0; i < 40; i++ {
		names = append(names, fmt.Sprintf("s%02d_agent", i))
	}
	s := newTestState(t, names...)

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			rec := ErrorRecord{Specialist: n, Kind: errors.KindUserFixable, Message: "missing dates"}
			_ = s.Apply(Delta{Specialist: n, Errors: []ErrorRecord{rec}})
		}(n)
	}
	wg.Wait()

	if !s.AllCompleted() {
		t.Errorf("AllCompleted() = false, pending %v", s.Pending())
	}
	if s.ErrorCount() != len(names) {
		t.Errorf("ErrorCount() = %d, want %d", s.ErrorCount(), len(names))
	}
}

func TestSnapshot_DeterministicAndRestorable(t *testing.T) {
	s := newTestState(t, "trail_agent", "geo_agent")
	_ = s.Apply(Delta{Specialist: "trail_agent", Output: NewOutput(&TrailList{Trails: []Trail{{Name: "Slim Shady", LengthMi: 3.5}}})})
	_ = s.Apply(Delta{Specialist: "geo_agent", Output: NewOutput(&GeoResult{DisplayName: "Sedona", Lat: 34.87, Lon: -111.76})})
	s.Pause([]string{"duration exceeds 7 days"})

	first, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, _ := json.Marshal(s)
	if !bytes.Equal(first, second) {
		t.Error("repeated encodings differ")
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restored := Restore(snap)
	third, _ := json.Marshal(restored)
	if !bytes.Equal(first, third) {
		t.Errorf("restored state encodes differently:\n%s\n%s", first, third)
	}

	out, ok := restored.Output("geo_agent")
	if !ok {
		t.Fatal("restored state lost geo_agent output")
	}
	geo, ok := out.Payload.(*GeoResult)
	if !ok || geo.Lat != 34.87 {
		t.Errorf("restored payload = %#v, want *GeoResult", out.Payload)
	}
	if got := restored.Completed(); fmt.Sprint(got) != "[geo_agent trail_agent]" {
		t.Errorf("Completed() = %v", got)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := newTestState(t, "gear_agent")
	_ = s.Apply(Delta{Specialist: "gear_agent", Output: NewOutput(&GearList{Items: []GearItem{{Name: "tent"}}})})

	snap, _ := s.Snapshot()
	snap.Outputs["gear_agent"].Payload.(*GearList).Items[0].Name = "changed"
	snap.RequiredSpecialists[0] = "changed"

	out, _ := s.Output("gear_agent")
	if out.Payload.(*GearList).Items[0].Name != "tent" {
		t.Error("mutating a snapshot changed the live state")
	}
	if s.Required()[0] != "gear_agent" {
		t.Error("mutating a snapshot changed the required list")
	}
}

func TestReviewLifecycle(t *testing.T) {
	s := newTestState(t, "geo_agent")
	s.Pause([]string{"errors"})
	if status, _ := s.Approval(); status != ApprovalPending {
		t.Errorf("Approval() = %q, want pending", status)
	}

	s.RecordDecision(ApprovalNeedsRevision, "add a rest day")
	status, feedback := s.Approval()
	if status != ApprovalNeedsRevision || feedback != "add a rest day" {
		t.Errorf("Approval() = %q, %q", status, feedback)
	}

	s.ClearFeedback()
	if _, feedback := s.Approval(); feedback != "" {
		t.Error("feedback should be cleared")
	}
	hist := s.History()
	if len(hist) != 1 || hist[0].Feedback != "add a rest day" || hist[0].Reasons[0] != "errors" {
		t.Errorf("History() = %+v", hist)
	}
	if len(s.ReviewReasons()) != 0 {
		t.Error("reasons should be cleared after a decision")
	}
}

func TestSetPlan_Revisions(t *testing.T) {
	s := newTestState(t, "geo_agent")
	s.SetPlan(Plan{Title: "v1"})
	s.SetPlan(Plan{Title: "v2"})

	p := s.Plan()
	if p.Title != "v2" || p.Revision != 2 {
		t.Errorf("Plan() = %+v, want v2 revision 2", p)
	}
}

func TestReject_DropsPlanKeepsHistory(t *testing.T) {
	s := newTestState(t, "geo_agent")
	s.SetPlan(Plan{Title: "v1"})
	s.SetPlan(Plan{Title: "v2"})
	s.Pause([]string{"errors"})
	s.RecordDecision(ApprovalRejected, "")
	s.Reject()

	if p := s.Plan(); p != nil {
		t.Errorf("Plan() = %+v, want nil after Reject", p)
	}
	h := s.History()
	if len(h) != 1 || h[0].DiscardedRevision != 2 {
		t.Errorf("History() = %+v, want one entry discarding revision 2", h)
	}
}
