package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/basecamp/internal/config"
	"github.com/Iron-Ham/basecamp/internal/engine"
	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/state"
	"github.com/Iron-Ham/basecamp/internal/store"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// setupTestEnvironment points the config and data directories at a
// temporary directory and returns the data directory.
func setupTestEnvironment(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir+"/config")
	t.Setenv("BASECAMP_STORE_DIR", dir+"/data")
	t.Setenv("BASECAMP_LOGGING_ENABLED", "false")
	t.Cleanup(func() {
		viper.Reset()
		resumeSignal = false
		resumeFeedback = ""
		statusJSON = false
	})
	return dir + "/data"
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "basecamp" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "basecamp")
	}

	// Compare by Name(), not Use which includes args
	expectedCmds := []string{"submit", "status", "resume", "review", "watch", "serve", "archive", "logs", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{"llm.model", "gpt-4o", "gpt-4o", false},
		{"llm.temperature", "0.2", 0.2, false},
		{"llm.temperature", "warm", nil, true},
		{"dispatch.max_concurrency", "8", 8, false},
		{"dispatch.max_concurrency", "-1", nil, true},
		{"dispatch.max_concurrency", "lots", nil, true},
		{"review.enabled", "false", false, false},
		{"review.enabled", "no", nil, true},
		{"store.backend", "sqlite", "sqlite", false},
		{"store.backend", "postgres", nil, true},
		{"logging.level", "WARN", "warn", false},
		{"logging.level", "loud", nil, true},
		{"tui.theme", "dark", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseConfigValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseConfigValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestSettableKeysHaveDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	for key := range settableKeys {
		if !viper.IsSet(key) {
			t.Errorf("settable key %q has no default", key)
		}
	}
}

func TestParsePreferences(t *testing.T) {
	prefs, err := parsePreferences(map[string]string{
		"duration_days": "3",
		" skill_level ": " beginner ",
	})
	if err != nil {
		t.Fatalf("parsePreferences() error = %v", err)
	}
	if prefs.DurationDays != 3 {
		t.Errorf("DurationDays = %d, want 3", prefs.DurationDays)
	}
	if prefs.SkillLevel != "beginner" {
		t.Errorf("SkillLevel = %q, want %q", prefs.SkillLevel, "beginner")
	}

	if _, err := parsePreferences(map[string]string{"duration_days": "a week"}); err == nil {
		t.Error("parsePreferences() accepted a non-numeric duration")
	}
}

func TestShowConfig_MasksAPIKey(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("llm.api_key", "sk-very-secret")

	var buf bytes.Buffer
	if err := showConfig(&buf); err != nil {
		t.Fatalf("showConfig() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "sk-very-secret") || !strings.Contains(out, "********") {
		t.Error("showConfig() did not mask the api key")
	}
	for _, want := range []string{"max_concurrency: 4", "duration_threshold_days: 7"} {
		if !strings.Contains(out, want) {
			t.Errorf("showConfig() missing %q in:\n%s", want, out)
		}
	}
}

func TestResumeCommand_WritesSignal(t *testing.T) {
	dataDir := setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "resume", "run-1", "--status", "Needs-Revision", "--feedback", "shorter days", "--signal")
	if err != nil {
		t.Fatalf("resume --signal failed: %v\n%s", err, output)
	}

	data, err := os.ReadFile(engine.SignalPath(dataDir, "run-1"))
	if err != nil {
		t.Fatalf("signal not written: %v", err)
	}
	var sig map[string]string
	if err := json.Unmarshal(data, &sig); err != nil {
		t.Fatalf("signal is not JSON: %v", err)
	}
	if sig["status"] != string(state.ApprovalNeedsRevision) {
		t.Errorf("status = %q, want %q", sig["status"], state.ApprovalNeedsRevision)
	}
	if sig["feedback"] != "shorter days" {
		t.Errorf("feedback = %q, want %q", sig["feedback"], "shorter days")
	}
}

func TestResumeCommand_InvalidStatus(t *testing.T) {
	setupTestEnvironment(t)

	_, err := executeCommand(rootCmd, "resume", "run-1", "--status", "perhaps", "--signal")
	if !errors.Is(err, errors.ErrInvalidDecision) {
		t.Errorf("error = %v, want ErrInvalidDecision", err)
	}
}

func TestStatusCommand(t *testing.T) {
	dataDir := setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(output, "No runs found.") {
		t.Errorf("status output = %q, want no runs", output)
	}

	st, err := store.NewJSONStore(dataDir)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	now := time.Now()
	snap := state.Snapshot{
		RunID:         "run-7",
		Phase:         state.PhaseHumanReview,
		UserInput:     "a week in the Grand Canyon",
		ReviewReasons: []string{"duration 8 days exceeds 7"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := st.Save(context.Background(), snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	output, err = executeCommand(rootCmd, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(output, "run-7") || !strings.Contains(output, "HUMAN_REVIEW") {
		t.Errorf("status output missing run:\n%s", output)
	}

	output, err = executeCommand(rootCmd, "status", "run-7")
	if err != nil {
		t.Fatalf("status run-7 failed: %v", err)
	}
	for _, want := range []string{"Awaiting review", "duration 8 days exceeds 7", "basecamp review run-7"} {
		if !strings.Contains(output, want) {
			t.Errorf("status run-7 missing %q in:\n%s", want, output)
		}
	}

	_, err = executeCommand(rootCmd, "status", "run-404")
	if !errors.Is(err, errors.ErrRunNotFound) {
		t.Errorf("status run-404 error = %v, want ErrRunNotFound", err)
	}
}

func TestPrintSnapshot(t *testing.T) {
	snap := state.Snapshot{
		RunID:                "run-2",
		Phase:                state.PhaseDone,
		UserInput:            "ride Sedona",
		RequiredSpecialists:  []string{"geo", "trail"},
		CompletedSpecialists: []string{"geo", "trail"},
		ErrorRecords:         []state.ErrorRecord{{Specialist: "weather", Kind: errors.KindTransient, Message: "timeout"}},
		AdventurePlan: &state.Plan{
			Title:            "Slickrock Weekend",
			Itinerary:        []state.DayPlan{{Day: 1, Title: "Bell Rock", Activities: []string{"Big Park Loop"}}},
			Sections:         map[string]string{"weather": "Sunny, 75F"},
			GearChecklist:    []string{"helmet"},
			DegradedSections: []string{"weather"},
		},
	}

	var buf bytes.Buffer
	printSnapshot(&buf, snap)
	out := buf.String()
	for _, want := range []string{"run-2", "DONE", "Slickrock Weekend", "Day 1", "Big Park Loop", "Sunny, 75F", "[ ] helmet", "degraded: weather", "weather [TRANSIENT] timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("printSnapshot() missing %q in:\n%s", want, out)
		}
	}
}

func TestDisplayLogs(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []logging.Entry{
		{Time: base, Level: "INFO", Message: "run submitted", RunID: "run-1"},
		{Time: base.Add(time.Second), Level: "WARN", Message: "specialist failed", RunID: "run-1", Specialist: "weather", Attrs: map[string]any{"error": "429 too many requests"}},
		{Time: base.Add(2 * time.Second), Level: "INFO", Message: "run submitted", RunID: "run-2"},
		{Time: base.Add(3 * time.Second), Level: "ERROR", Message: "synthesis failed", RunID: "run-1"},
	}

	tests := []struct {
		name  string
		q     logging.Query
		grep  string
		tail  int
		want  []string
		avoid []string
	}{
		{"by run", logging.Query{RunID: "run-2"}, "", 0, []string{"run-2"}, []string{"run-1"}},
		{"by level", logging.Query{MinLevel: "warn"}, "", 0, []string{"specialist failed", "synthesis failed"}, []string{"run submitted"}},
		{"grep attrs", logging.Query{}, "429", 0, []string{"specialist failed", "error=429"}, []string{"synthesis failed"}},
		{"tail", logging.Query{}, "", 1, []string{"synthesis failed"}, []string{"specialist failed"}},
		{"nothing", logging.Query{RunID: "run-9"}, "", 0, []string{"No matching log entries found."}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var re *regexp.Regexp
			if tt.grep != "" {
				re = regexp.MustCompile(tt.grep)
			}
			var buf bytes.Buffer
			if err := displayLogs(&buf, entries, tt.q, re, tt.tail); err != nil {
				t.Fatalf("displayLogs() error = %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, a := range tt.avoid {
				if strings.Contains(out, a) {
					t.Errorf("output contains %q:\n%s", a, out)
				}
			}
		})
	}
}
