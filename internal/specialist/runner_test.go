package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/event"
	"github.com/Iron-Ham/basecamp/internal/state"
)

func testRunner(t *testing.T, reg *Registry, opts RunnerOptions) (*Runner, *[]time.Duration) {
	t.Helper()
	r := NewRunner(reg, opts)
	var mu sync.Mutex
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func testView(t *testing.T, required ...string) *state.PlanState {
	t.Helper()
	s := state.New("run-1", "3 days of hiking around Flagstaff", state.Preferences{})
	if err := s.SetIntent(state.Intent{
		ActivityType:        "hiking",
		Location:            "Flagstaff",
		RequiredSpecialists: required,
		Context:             map[string]string{Geo: "resolve Flagstaff"},
	}); err != nil {
		t.Fatalf("SetIntent: %v", err)
	}
	return s
}

func TestRunner_Success(t *testing.T) {
	reg := NewRegistry()
	var got Request
	reg.MustRegister(Geo, Func(func(_ context.Context, req Request) (state.Output, error) {
		got = req
		return state.NewOutput(&state.GeoResult{DisplayName: "Flagstaff, AZ"}), nil
	}))
	r, _ := testRunner(t, reg, RunnerOptions{})

	res := r.Run(context.Background(), Geo, testView(t, Geo, Trail))
	if !res.OK() || res.Attempts != 1 {
		t.Fatalf("Run() = %+v, want one successful attempt", res)
	}
	if res.Output.Kind() != state.KindGeo {
		t.Errorf("Output.Kind() = %s, want geo", res.Output.Kind())
	}
	if got.Location != "Flagstaff" || got.Context != "resolve Flagstaff" {
		t.Errorf("request = %+v", got)
	}

	d := res.Delta()
	if d.Specialist != Geo || len(d.Errors) != 0 {
		t.Errorf("Delta() = %+v", d)
	}
}

func TestRunner_ContextFallsBackToInput(t *testing.T) {
	reg := NewRegistry()
	var got Request
	reg.MustRegister(Trail, Func(func(_ context.Context, req Request) (state.Output, error) {
		got = req
		return state.Output{}, nil
	}))
	r, _ := testRunner(t, reg, RunnerOptions{})
	r.Run(context.Background(), Trail, testView(t, Trail))

	if got.Context != "3 days of hiking around Flagstaff" {
		t.Errorf("Context = %q, want the user input", got.Context)
	}
}

func TestRunner_Classification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantKind     errors.Kind
		wantAttempts int
		wantSleeps   int
	}{
		{"transient retried to exhaustion", fmt.Errorf("connection reset by peer"), errors.KindTransient, 3, 2},
		{"llm recoverable not retried", fmt.Errorf("failed to parse model output"), errors.KindLLMRecoverable, 1, 0},
		{"user fixable not retried", fmt.Errorf("start date is required"), errors.KindUserFixable, 1, 0},
		{"missing key is permanent", fmt.Errorf("OPENWEATHER api key missing"), errors.KindPermanent, 1, 0},
		{"unknown is permanent", fmt.Errorf("boom"), errors.KindPermanent, 1, 0},
		{"deadline is transient", context.DeadlineExceeded, errors.KindTransient, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			var calls atomic.Int32
			reg.MustRegister(Weather, Func(func(context.Context, Request) (state.Output, error) {
				calls.Add(1)
				return state.Output{}, tt.err
			}))
			r, slept := testRunner(t, reg, RunnerOptions{MaxAttempts: 3})

			res := r.Run(context.Background(), Weather, testView(t, Weather))
			if res.OK() {
				t.Fatal("Run() succeeded, want failure")
			}
			if res.Err.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", res.Err.Kind, tt.wantKind)
			}
			if res.Attempts != tt.wantAttempts || int(calls.Load()) != tt.wantAttempts {
				t.Errorf("attempts = %d (calls %d), want %d", res.Attempts, calls.Load(), tt.wantAttempts)
			}
			if len(*slept) != tt.wantSleeps {
				t.Errorf("sleeps = %v, want %d", *slept, tt.wantSleeps)
			}
			if !res.Output.Empty() {
				t.Error("failed specialist should produce an empty output")
			}
			if res.Err.Specialist != Weather || res.Err.UnderlyingType == "" {
				t.Errorf("ErrorRecord = %+v", res.Err)
			}
			if d := res.Delta(); len(d.Errors) != 1 {
				t.Errorf("Delta() carries %d errors, want exactly 1", len(d.Errors))
			}
		})
	}
}

func TestRunner_TransientThenSuccess(t *testing.T) {
	reg := NewRegistry()
	var calls atomic.Int32
	reg.MustRegister(Weather, Func(func(context.Context, Request) (state.Output, error) {
		if calls.Add(1) == 1 {
			return state.Output{}, fmt.Errorf("429 too many requests")
		}
		return state.NewOutput(&state.WeatherResult{Summary: "clear"}), nil
	}))
	r, slept := testRunner(t, reg, RunnerOptions{InitialBackoff: 10 * time.Millisecond})

	res := r.Run(context.Background(), Weather, testView(t, Weather))
	if !res.OK() || res.Attempts != 2 {
		t.Errorf("Run() = %+v, want success on attempt 2", res)
	}
	if len(*slept) != 1 || (*slept)[0] != 10*time.Millisecond {
		t.Errorf("sleeps = %v, want [10ms]", *slept)
	}
	if res.Cause != nil {
		t.Errorf("Cause = %v, want nil after a successful retry", res.Cause)
	}
}

func TestRunner_Backoff(t *testing.T) {
	r := NewRunner(NewRegistry(), RunnerOptions{InitialBackoff: time.Second, BackoffFactor: 2, MaxBackoff: 5 * time.Second})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := r.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestRunner_DegradesToRaw(t *testing.T) {
	reg := NewRegistry()
	raw := state.NewOutput(&state.Raw{Source: "overpass", Data: json.RawMessage(`{"elements":[]}`)})
	reg.MustRegister(Trail, WithRaw(
		Func(func(context.Context, Request) (state.Output, error) {
			return state.Output{}, fmt.Errorf("malformed JSON from model")
		}),
		func(context.Context, Request) (state.Output, error) { return raw, nil },
	))
	r, _ := testRunner(t, reg, RunnerOptions{})

	res := r.Run(context.Background(), Trail, testView(t, Trail))
	if res.OK() {
		t.Fatal("degraded run should still carry its error record")
	}
	if res.Err.Kind != errors.KindLLMRecoverable {
		t.Errorf("Kind = %s, want LLM_RECOVERABLE", res.Err.Kind)
	}
	if res.Output.Kind() != state.KindRaw {
		t.Errorf("Output.Kind() = %s, want raw", res.Output.Kind())
	}
}

func TestRunner_RecoversPanics(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Gear, Func(func(context.Context, Request) (state.Output, error) {
		panic("network timeout while packing")
	}))
	r, slept := testRunner(t, reg, RunnerOptions{})

	res := r.Run(context.Background(), Gear, testView(t, Gear))
	if res.OK() || res.Err.Kind != errors.KindPermanent {
		t.Fatalf("Run() = %+v, want PERMANENT failure", res)
	}
	if len(*slept) != 0 {
		t.Error("panics must not be retried")
	}
	if res.Cause == nil || !res.Cause.Panicked {
		t.Errorf("Cause = %+v, want a panicked SpecialistError", res.Cause)
	}
}

func TestRunner_FailureCarriesSpecialistError(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Permits, Func(func(context.Context, Request) (state.Output, error) {
		return state.Output{}, fmt.Errorf("connection reset by peer")
	}))
	r, _ := testRunner(t, reg, RunnerOptions{MaxAttempts: 2})

	res := r.Run(context.Background(), Permits, testView(t, Permits))
	if res.OK() {
		t.Fatal("Run() succeeded, want failure")
	}
	if res.Cause == nil {
		t.Fatal("Cause = nil, want SpecialistError")
	}
	if res.Cause.Specialist != Permits || res.Cause.Attempt != 2 {
		t.Errorf("Cause = %s/%d, want %s/2", res.Cause.Specialist, res.Cause.Attempt, Permits)
	}
	if res.Err.Message != "connection reset by peer" {
		t.Errorf("Message = %q, want the specialist's own message", res.Err.Message)
	}
	if res.Err.Attempts != 2 || res.Err.Kind != errors.KindTransient {
		t.Errorf("record = %+v, want 2 TRANSIENT attempts", res.Err)
	}
}

func TestRunner_UnknownSpecialist(t *testing.T) {
	r, _ := testRunner(t, NewRegistry(), RunnerOptions{})
	res := r.Run(context.Background(), "mystery_agent", testView(t, "mystery_agent"))
	if res.OK() || res.Err.Kind != errors.KindPermanent {
		t.Errorf("Run() = %+v, want PERMANENT failure", res)
	}
	if res.Name != "mystery_agent" {
		t.Errorf("Name = %q", res.Name)
	}
	if res.Cause == nil || !errors.Is(res.Cause, errors.ErrUnknownSpecialist) {
		t.Errorf("Cause = %v, want ErrUnknownSpecialist", res.Cause)
	}
}

func TestRunner_CallTimeout(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Geo, Func(func(ctx context.Context, _ Request) (state.Output, error) {
		<-ctx.Done()
		return state.Output{}, ctx.Err()
	}))
	r, _ := testRunner(t, reg, RunnerOptions{MaxAttempts: 1, CallTimeout: 10 * time.Millisecond})

	res := r.Run(context.Background(), Geo, testView(t, Geo))
	if res.OK() || res.Err.Kind != errors.KindTransient {
		t.Errorf("Run() = %+v, want TRANSIENT timeout", res)
	}
}

func TestRunner_CanceledRunStopsRetrying(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	reg.MustRegister(Geo, Func(func(context.Context, Request) (state.Output, error) {
		calls.Add(1)
		cancel()
		return state.Output{}, fmt.Errorf("connection refused")
	}))
	r, _ := testRunner(t, reg, RunnerOptions{MaxAttempts: 5})

	res := r.Run(ctx, Geo, testView(t, Geo))
	if res.OK() || calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 after cancellation", calls.Load())
	}
}

func TestRunner_PublishesCompletion(t *testing.T) {
	bus := event.NewBus(nil)
	var got []event.SpecialistCompletedEvent
	bus.Subscribe(event.TypeSpecialistCompleted, func(e event.Event) {
		got = append(got, e.(event.SpecialistCompletedEvent))
	})

	reg := NewRegistry()
	reg.MustRegister(Permits, Func(func(context.Context, Request) (state.Output, error) {
		return state.Output{}, fmt.Errorf("permit office down")
	}))
	r, _ := testRunner(t, reg, RunnerOptions{Bus: bus})
	r.Run(context.Background(), Permits, testView(t, Permits))

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if !got[0].Failed() || got[0].RunID != "run-1" || got[0].Specialist != Permits {
		t.Errorf("event = %+v", got[0])
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	noop := Func(func(context.Context, Request) (state.Output, error) { return state.Output{}, nil })

	if err := reg.Register("Trail Agent", noop); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("trail_agent", noop); err == nil {
		t.Error("duplicate Register should fail")
	}
	if err := reg.Register("location_specific_agents", noop); err == nil {
		t.Error("placeholder name should be rejected")
	}
	if err := reg.Register(Geo, nil); err == nil {
		t.Error("nil specialist should be rejected")
	}
	if _, err := reg.Get("geo_agent"); !errors.Is(err, errors.ErrUnknownSpecialist) {
		t.Errorf("Get(unregistered) = %v, want ErrUnknownSpecialist", err)
	}
	if !reg.Has(Trail) || reg.Len() != 1 || reg.Names()[0] != Trail {
		t.Errorf("registry contents = %v", reg.Names())
	}
}
