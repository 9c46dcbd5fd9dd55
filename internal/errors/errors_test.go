package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Domain Error Tests
// -----------------------------------------------------------------------------

func TestRunError(t *testing.T) {
	err := NewRunError("resume failed", ErrRunNotPaused).WithRunID("abc").WithPhase("DISPATCHING")

	want := "run error [run=abc, phase=DISPATCHING]: resume failed: run is not awaiting review"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrRunNotPaused) {
		t.Error("errors.Is(err, ErrRunNotPaused) = false, want true")
	}

	var runErr *RunError
	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.As(wrapped, &runErr) {
		t.Fatal("errors.As failed to find RunError")
	}
	if runErr.RunID != "abc" {
		t.Errorf("RunID = %q, want %q", runErr.RunID, "abc")
	}
}

func TestSpecialistError(t *testing.T) {
	cause := errors.New("boom")
	err := NewSpecialistError("geo_agent", "lookup failed", cause).WithAttempt(2)

	want := "specialist error [specialist=geo_agent, attempt=2]: lookup failed: boom"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if err.Cause() != cause {
		t.Errorf("Cause() = %v, want %v", err.Cause(), cause)
	}

	panicked := NewSpecialistError("trail_agent", "run failed", cause).WithAttempt(1).WithPanic()
	want = "specialist error [specialist=trail_agent, attempt=1, panic]: run failed: boom"
	if got := panicked.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var specErr *SpecialistError
	if !errors.As(fmt.Errorf("dispatch: %w", panicked), &specErr) || !specErr.Panicked {
		t.Error("errors.As did not find the panicked SpecialistError")
	}
}

func TestToolError_StatusCode(t *testing.T) {
	tests := []struct {
		code      int
		rateLimit bool
	}{
		{429, true},
		{500, false},
		{503, false},
		{404, false},
		{401, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := NewToolError("nominatim", "geocode", ErrUpstream).WithStatusCode(tt.code)
			if err.StatusCode != tt.code {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.code)
			}
			if got := errors.Is(err, ErrRateLimited); got != tt.rateLimit {
				t.Errorf("Is(ErrRateLimited) = %v, want %v", got, tt.rateLimit)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("run", "r1")
	if got := err.Error(); got != "run 'r1' not found" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(errors.Join(ErrRunNotFound, err), ErrRunNotFound) {
		t.Error("joined NotFoundError lost its sentinel")
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("synthesize plan", time.Minute)
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false, want true")
	}
	if got := err.Error(); got != "timeout error: synthesize plan (timeout: 1m0s)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) != nil")
	}
	plain := errors.New("plain")
	wrapped := Wrap(plain, "step")
	if got := wrapped.Error(); got != "step: plain" {
		t.Errorf("Wrap() = %q", got)
	}
	if !errors.Is(wrapped, plain) {
		t.Error("Wrap() lost the cause")
	}
}
