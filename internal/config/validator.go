package config

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "dispatch.max_concurrency")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// endpointNameRegex validates rate-limit endpoint keys
var endpointNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLLM()...)
	errors = append(errors, c.validateDispatch()...)
	errors = append(errors, c.validateReview()...)
	errors = append(errors, c.validateCache()...)
	errors = append(errors, c.validateRateLimit()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateLLM validates the LLMConfig
func (c *Config) validateLLM() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.LLM.Model) == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.model",
			Value:   c.LLM.Model,
			Message: "must not be empty",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Value:   c.LLM.Temperature,
			Message: "must be between 0 and 2",
		})
	}

	if c.LLM.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.timeout_seconds",
			Value:   c.LLM.TimeoutSeconds,
			Message: "must be non-negative",
		})
	}

	if c.LLM.RequestsPerSecond < 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.requests_per_second",
			Value:   c.LLM.RequestsPerSecond,
			Message: "must be non-negative",
		})
	}

	if c.LLM.BaseURL != "" && !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Value:   c.LLM.BaseURL,
			Message: "must start with http:// or https://",
		})
	}

	return errors
}

// validateDispatch validates the DispatchConfig
func (c *Config) validateDispatch() []ValidationError {
	var errors []ValidationError

	// Reasonable upper bound on parallel specialists
	const maxConcurrencyLimit = 32
	if c.Dispatch.MaxConcurrency < 1 || c.Dispatch.MaxConcurrency > maxConcurrencyLimit {
		errors = append(errors, ValidationError{
			Field:   "dispatch.max_concurrency",
			Value:   c.Dispatch.MaxConcurrency,
			Message: fmt.Sprintf("must be between 1 and %d", maxConcurrencyLimit),
		})
	}

	if c.Dispatch.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.max_attempts",
			Value:   c.Dispatch.MaxAttempts,
			Message: "must be at least 1",
		})
	}

	if c.Dispatch.InitialBackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.initial_backoff_ms",
			Value:   c.Dispatch.InitialBackoffMs,
			Message: "must be non-negative",
		})
	}

	if c.Dispatch.BackoffFactor < 1 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.backoff_factor",
			Value:   c.Dispatch.BackoffFactor,
			Message: "must be at least 1",
		})
	}

	if c.Dispatch.MaxBackoffMs < c.Dispatch.InitialBackoffMs {
		errors = append(errors, ValidationError{
			Field:   "dispatch.max_backoff_ms",
			Value:   c.Dispatch.MaxBackoffMs,
			Message: "must be at least dispatch.initial_backoff_ms",
		})
	}

	if c.Dispatch.CallTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.call_timeout_seconds",
			Value:   c.Dispatch.CallTimeoutSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateReview validates the ReviewConfig
func (c *Config) validateReview() []ValidationError {
	var errors []ValidationError

	if c.Review.DurationThresholdDays < 1 {
		errors = append(errors, ValidationError{
			Field:   "review.duration_threshold_days",
			Value:   c.Review.DurationThresholdDays,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateCache validates the CacheConfig
func (c *Config) validateCache() []ValidationError {
	var errors []ValidationError

	if c.Cache.DefaultTTLSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.default_ttl_seconds",
			Value:   c.Cache.DefaultTTLSeconds,
			Message: "must be positive",
		})
	}

	if c.Cache.MaxSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.max_size",
			Value:   c.Cache.MaxSize,
			Message: "must be positive",
		})
	}

	if c.Cache.Shards < 1 || c.Cache.Shards > c.Cache.MaxSize {
		errors = append(errors, ValidationError{
			Field:   "cache.shards",
			Value:   c.Cache.Shards,
			Message: "must be between 1 and cache.max_size",
		})
	}

	return errors
}

// validateRateLimit validates the RateLimitConfig
func (c *Config) validateRateLimit() []ValidationError {
	var errors []ValidationError

	if c.RateLimit.LockoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "ratelimit.lockout_seconds",
			Value:   c.RateLimit.LockoutSeconds,
			Message: "must be non-negative",
		})
	}

	// Iterate in sorted order so error output is stable
	names := make([]string, 0, len(c.RateLimit.Endpoints))
	for name := range c.RateLimit.Endpoints {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		limit := c.RateLimit.Endpoints[name]
		field := "ratelimit.endpoints." + name
		if !endpointNameRegex.MatchString(name) {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   name,
				Message: "endpoint names must be lowercase letters, digits and underscores",
			})
		}
		if limit.PerSecond < 0 || limit.PerMinute < 0 || limit.PerHour < 0 {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   limit,
				Message: "budgets must be non-negative",
			})
		}
	}

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidBackends(), c.Store.Backend) {
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Value:   c.Store.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}

	if strings.ContainsRune(c.Store.Dir, 0) {
		errors = append(errors, ValidationError{
			Field:   "store.dir",
			Value:   c.Store.Dir,
			Message: "contains invalid characters",
		})
	}

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "must be host:port",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
