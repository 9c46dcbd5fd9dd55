package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete basecamp configuration
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Review    ReviewConfig    `mapstructure:"review"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// LLMConfig controls the language model provider used by the analyzer,
// the specialists' enhancement step and the synthesizer.
type LLMConfig struct {
	// Model is the default model name (default: "gpt-4o-mini")
	Model string `mapstructure:"model"`
	// Temperature is the sampling temperature (0.0-2.0, default: 0.7)
	Temperature float64 `mapstructure:"temperature"`
	// BaseURL overrides the provider endpoint for OpenAI-compatible servers
	BaseURL string `mapstructure:"base_url"`
	// APIKey is the provider key. When empty, OPENAI_API_KEY is used.
	APIKey string `mapstructure:"api_key"`
	// TimeoutSeconds bounds a single completion request
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// RequestsPerSecond paces all completion requests (0 = unlimited)
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// AgentModels overrides Model for individual specialists, keyed by name
	AgentModels map[string]string `mapstructure:"agent_models"`
}

// DispatchConfig controls specialist scheduling and retry
type DispatchConfig struct {
	// MaxConcurrency is the number of specialists that may run at once (default: 4)
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// MaxAttempts is the number of tries for a TRANSIENT failure (default: 3)
	MaxAttempts int `mapstructure:"max_attempts"`
	// InitialBackoffMs is the delay before the first retry
	InitialBackoffMs int `mapstructure:"initial_backoff_ms"`
	// BackoffFactor multiplies the delay after each retry
	BackoffFactor float64 `mapstructure:"backoff_factor"`
	// MaxBackoffMs caps the retry delay
	MaxBackoffMs int `mapstructure:"max_backoff_ms"`
	// CallTimeoutSeconds bounds one specialist invocation (0 = no timeout)
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds"`
}

// ReviewConfig controls the human-review gate
type ReviewConfig struct {
	// Enabled turns the gate on. When false runs always proceed to synthesis.
	Enabled bool `mapstructure:"enabled"`
	// DurationThresholdDays triggers review for trips longer than this (default: 7)
	DurationThresholdDays int `mapstructure:"duration_threshold_days"`
}

// CacheConfig controls the tool result cache
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// DefaultTTLSeconds is used when a tool call does not specify a TTL
	DefaultTTLSeconds int `mapstructure:"default_ttl_seconds"`
	// MaxSize is the maximum number of cached entries (default: 1000)
	MaxSize int `mapstructure:"max_size"`
	// Shards is the number of independently locked segments (default: 16)
	Shards int `mapstructure:"shards"`
}

// EndpointLimitConfig holds the window budgets for one endpoint.
// A zero budget disables that window.
type EndpointLimitConfig struct {
	PerSecond int `mapstructure:"per_second" yaml:"per_second"`
	PerMinute int `mapstructure:"per_minute" yaml:"per_minute"`
	PerHour   int `mapstructure:"per_hour" yaml:"per_hour"`
}

// RateLimitConfig controls outbound tool call pacing
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// LockoutSeconds is the cooldown applied after an observed rate-limit error
	LockoutSeconds int `mapstructure:"lockout_seconds"`
	// Endpoints maps an endpoint identifier to its budgets. The "default"
	// entry applies to endpoints without their own entry.
	Endpoints map[string]EndpointLimitConfig `mapstructure:"endpoints"`
}

// StoreConfig controls paused-run persistence and the plan archive
type StoreConfig struct {
	// Backend is "json" (one file per run) or "sqlite"
	Backend string `mapstructure:"backend"`
	// Dir is the data directory. Empty means DataDir().
	Dir string `mapstructure:"dir"`
	// Archive stores finished plans for later search (default: true)
	Archive bool `mapstructure:"archive"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is active (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// DefaultEndpointLimits returns the built-in budgets for the tool endpoints.
func DefaultEndpointLimits() map[string]EndpointLimitConfig {
	return map[string]EndpointLimitConfig{
		"nominatim":   {PerSecond: 1, PerMinute: 60},
		"opencage":    {PerSecond: 2, PerMinute: 120},
		"openweather": {PerSecond: 1, PerMinute: 60},
		"weather_gov": {PerSecond: 1, PerMinute: 60},
		"overpass":    {PerSecond: 1, PerMinute: 30},
		"default":     {PerSecond: 1, PerMinute: 60},
	}
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:             "gpt-4o-mini",
			Temperature:       0.7,
			TimeoutSeconds:    60,
			RequestsPerSecond: 5,
			AgentModels:       map[string]string{},
		},
		Dispatch: DispatchConfig{
			MaxConcurrency:     4,
			MaxAttempts:        3,
			InitialBackoffMs:   1000,
			BackoffFactor:      2.0,
			MaxBackoffMs:       30000,
			CallTimeoutSeconds: 90,
		},
		Review: ReviewConfig{
			Enabled:               true,
			DurationThresholdDays: 7,
		},
		Cache: CacheConfig{
			Enabled:           true,
			DefaultTTLSeconds: 3600,
			MaxSize:           1000,
			Shards:            16,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			LockoutSeconds: 60,
			Endpoints:      DefaultEndpointLimits(),
		},
		Store: StoreConfig{
			Backend: "json",
			Dir:     "",
			Archive: true,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8321",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Timeout returns the completion timeout as a time.Duration (0 means none)
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ModelFor returns the model configured for a specialist, or the default.
func (c *LLMConfig) ModelFor(specialist string) string {
	if m, ok := c.AgentModels[specialist]; ok && m != "" {
		return m
	}
	return c.Model
}

// ResolvedAPIKey returns APIKey, falling back to the OPENAI_API_KEY variable.
func (c *LLMConfig) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// InitialBackoff returns the first retry delay as a time.Duration
func (c *DispatchConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the retry delay cap as a time.Duration
func (c *DispatchConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// CallTimeout returns the per-call timeout as a time.Duration (0 means none)
func (c *DispatchConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// DefaultTTL returns the default cache TTL as a time.Duration
func (c *CacheConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// Lockout returns the rate-limit cooldown as a time.Duration
func (c *RateLimitConfig) Lockout() time.Duration {
	return time.Duration(c.LockoutSeconds) * time.Second
}

// ResolvedDir returns Dir, or DataDir() when Dir is empty.
func (c *StoreConfig) ResolvedDir() string {
	if c.Dir == "" {
		return DataDir()
	}
	return expandHome(c.Dir)
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// LLM defaults
	viper.SetDefault("llm.model", defaults.LLM.Model)
	viper.SetDefault("llm.temperature", defaults.LLM.Temperature)
	viper.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	viper.SetDefault("llm.api_key", defaults.LLM.APIKey)
	viper.SetDefault("llm.timeout_seconds", defaults.LLM.TimeoutSeconds)
	viper.SetDefault("llm.requests_per_second", defaults.LLM.RequestsPerSecond)
	viper.SetDefault("llm.agent_models", defaults.LLM.AgentModels)

	// Dispatch defaults
	viper.SetDefault("dispatch.max_concurrency", defaults.Dispatch.MaxConcurrency)
	viper.SetDefault("dispatch.max_attempts", defaults.Dispatch.MaxAttempts)
	viper.SetDefault("dispatch.initial_backoff_ms", defaults.Dispatch.InitialBackoffMs)
	viper.SetDefault("dispatch.backoff_factor", defaults.Dispatch.BackoffFactor)
	viper.SetDefault("dispatch.max_backoff_ms", defaults.Dispatch.MaxBackoffMs)
	viper.SetDefault("dispatch.call_timeout_seconds", defaults.Dispatch.CallTimeoutSeconds)

	// Review defaults
	viper.SetDefault("review.enabled", defaults.Review.Enabled)
	viper.SetDefault("review.duration_threshold_days", defaults.Review.DurationThresholdDays)

	// Cache defaults
	viper.SetDefault("cache.enabled", defaults.Cache.Enabled)
	viper.SetDefault("cache.default_ttl_seconds", defaults.Cache.DefaultTTLSeconds)
	viper.SetDefault("cache.max_size", defaults.Cache.MaxSize)
	viper.SetDefault("cache.shards", defaults.Cache.Shards)

	// Rate limit defaults
	viper.SetDefault("ratelimit.enabled", defaults.RateLimit.Enabled)
	viper.SetDefault("ratelimit.lockout_seconds", defaults.RateLimit.LockoutSeconds)
	for name, limit := range defaults.RateLimit.Endpoints {
		prefix := "ratelimit.endpoints." + name
		viper.SetDefault(prefix+".per_second", limit.PerSecond)
		viper.SetDefault(prefix+".per_minute", limit.PerMinute)
		viper.SetDefault(prefix+".per_hour", limit.PerHour)
	}

	// Store defaults
	viper.SetDefault("store.backend", defaults.Store.Backend)
	viper.SetDefault("store.dir", defaults.Store.Dir)
	viper.SetDefault("store.archive", defaults.Store.Archive)

	// Server defaults
	viper.SetDefault("server.addr", defaults.Server.Addr)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "basecamp")
	}
	// Fall back to ~/.config/basecamp
	home, err := os.UserHomeDir()
	if err != nil {
		return ".basecamp"
	}
	return filepath.Join(home, ".config", "basecamp")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the default directory for persisted runs, the archive
// and logs.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "basecamp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".basecamp"
	}
	return filepath.Join(home, ".local", "share", "basecamp")
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// ValidBackends returns the list of valid store backends
func ValidBackends() []string {
	return []string{"json", "sqlite"}
}
