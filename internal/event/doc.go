// Package event provides a synchronous pub-sub bus for run lifecycle
// notifications.
//
// The engine, dispatcher, review gate and rate limiter publish events; the
// metrics recorder, the CLI watch command and tests subscribe. Publishers
// never depend on who is listening.
//
// # Event Categories
//
// Run lifecycle:
//   - [RunSubmittedEvent], [RunAnalyzedEvent], [PhaseChangedEvent]
//   - [RunPausedEvent], [RunResumedEvent], [RunFinishedEvent]
//
// Specialists:
//   - [SpecialistDispatchedEvent], [SpecialistCompletedEvent]
//
// Shared resources:
//   - [LockoutEvent], [CacheLookupEvent]
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine; a panicking handler is logged and skipped.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeRunPaused, func(e event.Event) {
//	    paused := e.(event.RunPausedEvent)
//	    fmt.Println("awaiting review:", paused.RunID)
//	})
package event
