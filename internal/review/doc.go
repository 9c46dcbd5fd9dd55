// Package review is the human-review gate: the one externally resumable
// pause point of a run.
//
// Once every specialist has reported, [Gate.Evaluate] decides whether a
// person must look at the run before synthesis. A run pauses when any
// error record exists or when the requested duration exceeds the
// configured threshold. A paused run resumes only through [Gate.Resume]
// with one of approved, rejected or needs_revision.
//
// # Usage
//
//	gate := review.NewGate(review.Options{DurationThresholdDays: 7, Bus: bus})
//
//	if reasons := gate.Evaluate(planState); len(reasons) > 0 {
//	    gate.Pause(planState, reasons)
//	    // persist and return; the run waits for a decision
//	}
//
//	// later, from the HTTP API, the CLI or a signal file
//	err := gate.Resume(planState, review.Decision{Status: state.ApprovalApproved})
//
// # Thread Safety
//
// All methods on [Gate] are safe for concurrent use via an internal mutex.
package review
