package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRotatingWriter_Rotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LogFileName)

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()

	chunk := []byte(strings.Repeat("x", 600*1024) + "\n")
	for i := 0; i < 4; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write #%d: %v", i, err)
		}
	}

	for _, name := range []string{LogFileName, LogFileName + ".1", LogFileName + ".2"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, LogFileName+".3")); !os.IsNotExist(err) {
		t.Error("backup beyond MaxBackups should not exist")
	}
	if rw.CurrentSize() > 1024*1024 {
		t.Errorf("CurrentSize() = %d, exceeds limit", rw.CurrentSize())
	}
}

func TestRotatingWriter_Disabled(t *testing.T) {
	dir := t.TempDir()
	rw, err := NewRotatingWriter(filepath.Join(dir, LogFileName), RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, _ = rw.Write([]byte("line\n"))
	}
	_ = rw.Close()

	if _, err := os.Stat(filepath.Join(dir, LogFileName+".1")); !os.IsNotExist(err) {
		t.Error("no backup expected when rotation is disabled")
	}
	if _, err := rw.Write([]byte("after close")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestReadEntriesAndFilter(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLoggerWithRotation(dir, LevelDebug, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLoggerWithRotation: %v", err)
	}

	runA := logger.WithRun("a")
	runA.WithSpecialist("geo_agent").Info("specialist completed")
	runA.WithSpecialist("trail_agent").Warn("specialist failed", "kind", "TRANSIENT")
	logger.WithRun("b").Debug("analysis done")
	_ = logger.Close()

	entries, err := ReadEntries(dir)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	tests := []struct {
		name string
		q    Query
		want int
	}{
		{"empty", Query{}, 3},
		{"by run", Query{RunID: "a"}, 2},
		{"by specialist", Query{Specialist: "trail_agent"}, 1},
		{"min level", Query{MinLevel: "warn"}, 1},
		{"contains", Query{Contains: "COMPLETED"}, 1},
		{"since future", Query{Since: time.Now().Add(time.Hour)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Filter(entries, tt.q)); got != tt.want {
				t.Errorf("Filter() returned %d, want %d", got, tt.want)
			}
		})
	}

	warn := Filter(entries, Query{MinLevel: LevelWarn})[0]
	if warn.Attrs["kind"] != "TRANSIENT" {
		t.Errorf("Attrs[kind] = %v, want TRANSIENT", warn.Attrs["kind"])
	}
	if line := warn.Line(); !strings.Contains(line, "[trail_agent]") || !strings.Contains(line, "kind=TRANSIENT") {
		t.Errorf("Line() = %q", line)
	}
}

func TestReadEntries_Missing(t *testing.T) {
	if _, err := ReadEntries(t.TempDir()); err == nil {
		t.Error("expected error for missing log file")
	}
}
