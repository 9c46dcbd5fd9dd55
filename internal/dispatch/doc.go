// Package dispatch schedules a run's specialists.
//
// [Scheduler] is the pure state machine: it tracks which required
// specialists are pending, in flight or completed, selects the ready ones in
// the fixed priority order, and owns the phase transitions
// DISPATCHING → HUMAN_REVIEW | SYNTHESIZING → DONE.
//
// [Dispatcher] drives a Scheduler through DISPATCHING. Independent
// specialists run concurrently on a bounded pool; a specialist that
// consumes another's output waits for that specialist's completion marker.
//
// Usage:
//
//	sched := dispatch.NewScheduler(table, planState)
//	if err := dispatcher.Dispatch(ctx, sched, planState); err != nil {
//	    // run canceled
//	}
//	phase, err := sched.Advance(len(gate.Evaluate(planState)) > 0)
package dispatch
