// Package specialist defines the units of work a run fans out to and the
// runner that executes them.
//
// A specialist gathers one category of information (trails, weather,
// permits, a town's local knowledge) and returns a typed [state.Output].
// Specialists are looked up by name in a [Registry] that is built once at
// process start and passed to the dispatcher by reference.
//
// The [Table] fixes a total priority order over every specialist name and
// records which specialists consume another's output. The dispatcher uses it
// to pick what runs next and what may run concurrently.
//
// The [Runner] executes one specialist and never fails: transient errors are
// retried with backoff, recoverable parse failures fall back to raw tool
// output where the specialist supports it, and anything else becomes a
// classified [state.ErrorRecord] next to an empty output.
//
// Usage:
//
//	reg := specialist.NewRegistry()
//	reg.Register(specialist.Geo, geoSpecialist)
//
//	runner := specialist.NewRunner(reg, specialist.RunnerOptions{MaxAttempts: 3})
//	res := runner.Run(ctx, specialist.Geo, planState)
//	planState.Apply(res.Delta())
package specialist
