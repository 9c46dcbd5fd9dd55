package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default LLM config
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want %q", cfg.LLM.Model, "gpt-4o-mini")
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("LLM.Temperature = %f, want 0.7", cfg.LLM.Temperature)
	}

	// Verify default dispatch config
	if cfg.Dispatch.MaxConcurrency != 4 {
		t.Errorf("Dispatch.MaxConcurrency = %d, want 4", cfg.Dispatch.MaxConcurrency)
	}
	if cfg.Dispatch.MaxAttempts != 3 {
		t.Errorf("Dispatch.MaxAttempts = %d, want 3", cfg.Dispatch.MaxAttempts)
	}
	if cfg.Dispatch.InitialBackoff() != time.Second {
		t.Errorf("Dispatch.InitialBackoff() = %v, want 1s", cfg.Dispatch.InitialBackoff())
	}

	// Verify default review config
	if !cfg.Review.Enabled {
		t.Error("Review.Enabled should be true by default")
	}
	if cfg.Review.DurationThresholdDays != 7 {
		t.Errorf("Review.DurationThresholdDays = %d, want 7", cfg.Review.DurationThresholdDays)
	}

	// Verify default cache and rate limit config
	if cfg.Cache.DefaultTTL() != time.Hour {
		t.Errorf("Cache.DefaultTTL() = %v, want 1h", cfg.Cache.DefaultTTL())
	}
	if cfg.RateLimit.Lockout() != time.Minute {
		t.Errorf("RateLimit.Lockout() = %v, want 1m", cfg.RateLimit.Lockout())
	}
	if got := cfg.RateLimit.Endpoints["overpass"]; got.PerMinute != 30 {
		t.Errorf("overpass PerMinute = %d, want 30", got.PerMinute)
	}
	if _, ok := cfg.RateLimit.Endpoints["default"]; !ok {
		t.Error("RateLimit.Endpoints should contain a default entry")
	}

	if cfg.Store.Backend != "json" {
		t.Errorf("Store.Backend = %q, want json", cfg.Store.Backend)
	}
}

func TestLLMConfig_ModelFor(t *testing.T) {
	cfg := LLMConfig{
		Model:       "base",
		AgentModels: map[string]string{"trail_agent": "big", "geo_agent": ""},
	}

	tests := []struct {
		specialist string
		want       string
	}{
		{"trail_agent", "big"},
		{"geo_agent", "base"},
		{"weather_agent", "base"},
	}
	for _, tt := range tests {
		if got := cfg.ModelFor(tt.specialist); got != tt.want {
			t.Errorf("ModelFor(%q) = %q, want %q", tt.specialist, got, tt.want)
		}
	}
}

func TestLLMConfig_ResolvedAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg := LLMConfig{}
	if got := cfg.ResolvedAPIKey(); got != "from-env" {
		t.Errorf("ResolvedAPIKey() = %q, want from-env", got)
	}

	cfg.APIKey = "explicit"
	if got := cfg.ResolvedAPIKey(); got != "explicit" {
		t.Errorf("ResolvedAPIKey() = %q, want explicit", got)
	}
}

func TestDurations(t *testing.T) {
	d := DispatchConfig{InitialBackoffMs: 250, MaxBackoffMs: 4000, CallTimeoutSeconds: 0}
	if d.InitialBackoff() != 250*time.Millisecond {
		t.Errorf("InitialBackoff() = %v", d.InitialBackoff())
	}
	if d.MaxBackoff() != 4*time.Second {
		t.Errorf("MaxBackoff() = %v", d.MaxBackoff())
	}
	if d.CallTimeout() != 0 {
		t.Errorf("CallTimeout() = %v, want 0", d.CallTimeout())
	}

	l := LLMConfig{TimeoutSeconds: 30}
	if l.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v", l.Timeout())
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := "/custom/config/basecamp"
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		result := ConfigDir()

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "basecamp")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := "/custom/config/basecamp/config.yaml"
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestStoreConfig_ResolvedDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"empty uses data dir", "", "/data/basecamp"},
		{"absolute", "/srv/runs", "/srv/runs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := StoreConfig{Dir: tt.dir}
			if got := cfg.ResolvedDir(); got != tt.want {
				t.Errorf("ResolvedDir() = %q, want %q", got, tt.want)
			}
		})
	}

	home, err := os.UserHomeDir()
	if err == nil {
		cfg := StoreConfig{Dir: "~/plans"}
		if got := cfg.ResolvedDir(); got != filepath.Join(home, "plans") {
			t.Errorf("ResolvedDir() = %q, want home-relative path", got)
		}
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	// Set defaults in viper first (normally done by cmd init)
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Dispatch.MaxConcurrency != 4 {
		t.Errorf("Get().Dispatch.MaxConcurrency = %d, want 4", cfg.Dispatch.MaxConcurrency)
	}
	if got := cfg.RateLimit.Endpoints["nominatim"]; got.PerSecond != 1 || got.PerMinute != 60 {
		t.Errorf("nominatim limits = %+v, want 1/s 60/min", got)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()
	viper.Set("store.backend", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for an unknown backend")
	}
	if cfg := Get(); cfg.Store.Backend != "json" {
		t.Errorf("Get() should fall back to defaults, got backend %q", cfg.Store.Backend)
	}
}
