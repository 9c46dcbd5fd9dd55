// Package errors provides centralized error definitions and error handling utilities
// for basecamp. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and the failure classifier that
// drives retry and surfacing policy for every specialist.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - RunError: errors related to a planning run (submit, resume, persistence)
//   - SpecialistError: errors raised while executing one specialist
//   - ToolError: errors returned by an outbound tool call (HTTP endpoints)
//   - ConfigError: errors caused by missing or invalid configuration
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
//	err := errors.NewRunError("resume failed", errors.ErrRunNotPaused).WithRunID(id)
//
//	if errors.Is(err, errors.ErrRunNotPaused) { ... }
//
//	switch errors.Classify(err) {
//	case errors.KindTransient:
//	    // retry with backoff
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Run-related sentinel errors
var (
	// ErrRunNotFound indicates that no run exists for the given handle.
	ErrRunNotFound = New("run not found")
	// ErrRunNotPaused indicates a resume was attempted on a run that is not awaiting review.
	ErrRunNotPaused = New("run is not awaiting review")
	// ErrRunTerminal indicates the run already reached DONE.
	ErrRunTerminal = New("run already finished")
	// ErrInvalidDecision indicates a resume signal carried an unknown status.
	ErrInvalidDecision = New("invalid review decision")
	// ErrNoSpecialists indicates analysis produced nothing to dispatch.
	ErrNoSpecialists = New("no specialists to dispatch")
)

// Dispatch-related sentinel errors
var (
	// ErrUnknownSpecialist indicates a specialist name outside the known vocabulary.
	ErrUnknownSpecialist = New("unknown specialist")
	// ErrAlreadyInFlight indicates a specialist was dispatched twice.
	ErrAlreadyInFlight = New("specialist already in flight")
	// ErrNotInFlight indicates a completion was reported for a specialist that was not dispatched.
	ErrNotInFlight = New("specialist not in flight")
	// ErrSlotTaken indicates a second write to a single-writer output slot.
	ErrSlotTaken = New("output slot already written")
)

// Tool-related sentinel errors
var (
	// ErrRateLimited indicates the upstream endpoint rejected the call for rate reasons.
	ErrRateLimited = New("rate limit exceeded")
	// ErrUpstream indicates a non-success response from an upstream endpoint.
	ErrUpstream = New("upstream request failed")
	// ErrEmptyResponse indicates an upstream returned no usable content.
	ErrEmptyResponse = New("empty response")
)

// Config-related sentinel errors
var (
	// ErrMissingAPIKey indicates a required API key is not configured.
	ErrMissingAPIKey = New("api key not configured")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message string
	cause   error
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// format renders "prefix [k=v, ...]: message: cause".
func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// RunError represents errors related to a planning run.
//
// Example:
//
//	err := errors.NewRunError("resume failed", errors.ErrRunNotPaused).WithRunID("4c1e")
//	fmt.Println(err) // "run error [run=4c1e]: resume failed: run is not awaiting review"
type RunError struct {
	baseError
	RunID string
	Phase string
}

// NewRunError creates a new RunError.
func NewRunError(message string, cause error) *RunError {
	return &RunError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithRunID adds a run ID to the error context.
func (e *RunError) WithRunID(id string) *RunError {
	e.RunID = id
	return e
}

// WithPhase adds the scheduler phase the run was in.
func (e *RunError) WithPhase(phase string) *RunError {
	e.Phase = phase
	return e
}

// Error returns the formatted error message.
func (e *RunError) Error() string {
	var parts []string
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	return e.format("run error", parts)
}

// Is checks if this error matches the target.
func (e *RunError) Is(target error) bool {
	if _, ok := target.(*RunError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SpecialistError represents a failure inside one specialist. The runner
// wraps every failed attempt in one before recording it.
//
// Example:
//
//	err := errors.NewSpecialistError("weather_agent", "forecast lookup failed", cause).WithAttempt(2)
type SpecialistError struct {
	baseError
	Specialist string
	Attempt    int
	// Panicked is set when the specialist panicked instead of returning.
	// Classify treats such failures as PERMANENT whatever the message.
	Panicked bool
}

// NewSpecialistError creates a new SpecialistError.
func NewSpecialistError(specialist, message string, cause error) *SpecialistError {
	return &SpecialistError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
		Specialist: specialist,
	}
}

// WithAttempt records which attempt failed (1-based).
func (e *SpecialistError) WithAttempt(n int) *SpecialistError {
	e.Attempt = n
	return e
}

// WithPanic marks the failure as a recovered panic.
func (e *SpecialistError) WithPanic() *SpecialistError {
	e.Panicked = true
	return e
}

// Cause returns the error the specialist produced.
func (e *SpecialistError) Cause() error {
	return e.cause
}

// Error returns the formatted error message.
func (e *SpecialistError) Error() string {
	var parts []string
	if e.Specialist != "" {
		parts = append(parts, fmt.Sprintf("specialist=%s", e.Specialist))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	if e.Panicked {
		parts = append(parts, "panic")
	}
	return e.format("specialist error", parts)
}

// Is checks if this error matches the target.
func (e *SpecialistError) Is(target error) bool {
	if _, ok := target.(*SpecialistError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ToolError represents a failed outbound tool call.
//
// Example:
//
//	err := errors.NewToolError("nominatim", "geocode failed", errors.ErrUpstream).WithStatusCode(503)
type ToolError struct {
	baseError
	Endpoint   string
	StatusCode int
}

// NewToolError creates a new ToolError.
func NewToolError(endpoint, message string, cause error) *ToolError {
	return &ToolError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
		Endpoint: endpoint,
	}
}

// WithStatusCode records the HTTP status code of the failed response.
func (e *ToolError) WithStatusCode(code int) *ToolError {
	e.StatusCode = code
	return e
}

// Error returns the formatted error message.
func (e *ToolError) Error() string {
	var parts []string
	if e.Endpoint != "" {
		parts = append(parts, fmt.Sprintf("endpoint=%s", e.Endpoint))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	return e.format("tool error", parts)
}

// Is checks if this error matches the target.
func (e *ToolError) Is(target error) bool {
	if _, ok := target.(*ToolError); ok {
		return true
	}
	if e.StatusCode == 429 && errors.Is(target, ErrRateLimited) {
		return true
	}
	return e.baseError.Is(target)
}

// ConfigError represents a missing or invalid configuration value.
type ConfigError struct {
	baseError
	Key string
}

// NewConfigError creates a new ConfigError for the given key.
func NewConfigError(key, message string, cause error) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
		Key: key,
	}
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}
	return e.format("configuration error", parts)
}

// Is checks if this error matches the target.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("run", "abc123")
//	fmt.Println(err) // "run 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message: fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("user input cannot be empty").WithField("user_input")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message: message,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("synthesize plan", 60*time.Second)
//	fmt.Println(err) // "timeout error: synthesize plan (timeout: 1m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message: operation,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
