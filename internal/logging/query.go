package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed JSON log line.
type Entry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"msg"`
	RunID      string         `json:"run_id,omitempty"`
	Specialist string         `json:"specialist,omitempty"`
	Phase      string         `json:"phase,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// Query selects entries. Zero-valued fields do not filter.
type Query struct {
	// MinLevel keeps entries at or above this level.
	MinLevel   string
	RunID      string
	Specialist string
	Phase      string
	Since      time.Time
	Contains   string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

var standardKeys = map[string]bool{
	"time": true, "level": true, "msg": true,
	"run_id": true, "specialist": true, "phase": true,
}

// ReadEntries loads {dir}/debug.log sorted by time. Unparseable lines are
// skipped so a partially written tail does not hide the rest of the log.
func ReadEntries(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, LogFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file in %s: %w", dir, err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	entries, err := parseEntries(f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	return entries, nil
}

func parseEntries(r io.Reader) ([]Entry, error) {
	const maxLine = 1024 * 1024
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var entries []Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}
	return entries, nil
}

func parseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, fmt.Errorf("invalid log line: %w", err)
	}

	e := Entry{Attrs: make(map[string]any)}
	if s, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			e.Time = t
		}
	}
	e.Level, _ = raw["level"].(string)
	e.Message, _ = raw["msg"].(string)
	e.RunID, _ = raw["run_id"].(string)
	e.Specialist, _ = raw["specialist"].(string)
	e.Phase, _ = raw["phase"].(string)

	for k, v := range raw {
		if !standardKeys[k] {
			e.Attrs[k] = v
		}
	}
	return e, nil
}

// Filter returns the entries matching every set field of q.
func Filter(entries []Entry, q Query) []Entry {
	var out []Entry
	for _, e := range entries {
		if q.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (q Query) matches(e Entry) bool {
	if q.MinLevel != "" && levelOrder[strings.ToUpper(e.Level)] < levelOrder[ParseLevel(q.MinLevel)] {
		return false
	}
	if q.RunID != "" && e.RunID != q.RunID {
		return false
	}
	if q.Specialist != "" && e.Specialist != q.Specialist {
		return false
	}
	if q.Phase != "" && e.Phase != q.Phase {
		return false
	}
	if !q.Since.IsZero() && e.Time.Before(q.Since) {
		return false
	}
	if q.Contains != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(q.Contains)) {
		return false
	}
	return true
}

// Line renders an entry as a single human-readable line.
func (e Entry) Line() string {
	var sb strings.Builder
	sb.WriteString(e.Time.Format("15:04:05.000"))
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%-5s", e.Level))
	if e.Specialist != "" {
		sb.WriteString(" [" + e.Specialist + "]")
	} else if e.Phase != "" {
		sb.WriteString(" [" + e.Phase + "]")
	}
	sb.WriteString(" " + e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, e.Attrs[k]))
	}
	return sb.String()
}
