// Package logging provides structured logging for basecamp runs.
//
// It wraps Go's log/slog to write JSON lines that can be filtered after a
// run finishes. Every component that accepts a [*Logger] falls back to
// [NopLogger] when given nil.
//
// # Context Propagation
//
// Child loggers carry persistent attributes:
//
//	runLog := logger.WithRun(runID)
//	specLog := runLog.WithSpecialist("weather_agent")
//	specLog.Info("specialist completed", "duration_ms", 412)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"specialist completed","run_id":"...","specialist":"weather_agent","duration_ms":412}
//
// # Rotation
//
// [NewLoggerWithRotation] rotates debug.log by size into debug.log.1 ...
// debug.log.N, newest first.
//
// # Querying
//
// [ReadEntries] and [Filter] load a log file back and select lines by level,
// run, specialist, or phase. The `basecamp logs` command is built on them.
package logging
