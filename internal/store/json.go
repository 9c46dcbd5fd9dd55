package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/state"
)

const (
	runsDirName    = "runs"
	archiveDirName = "archive"
)

// JSONStore keeps one JSON file per run under dir/runs and one per archive
// entry under dir/archive. Writes are atomic and every operation holds the
// directory flock.
type JSONStore struct {
	dir string
}

// NewJSONStore creates the store directories under dir.
func NewJSONStore(dir string) (*JSONStore, error) {
	for _, sub := range []string{runsDirName, archiveDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &JSONStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *JSONStore) Dir() string { return s.dir }

func (s *JSONStore) runPath(id string) string {
	return filepath.Join(s.dir, runsDirName, id+".json")
}

func (s *JSONStore) archivePath(id string) string {
	return filepath.Join(s.dir, archiveDirName, id+".json")
}

func (s *JSONStore) Save(ctx context.Context, snap state.Snapshot) error {
	if err := validID("run", snap.RunID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", snap.RunID, err)
	}
	return withLock(s.dir, true, func() error {
		return writeAtomic(s.runPath(snap.RunID), data)
	})
}

func (s *JSONStore) Load(ctx context.Context, runID string) (state.Snapshot, error) {
	var snap state.Snapshot
	if err := validID("run", runID); err != nil {
		return snap, err
	}
	if err := ctx.Err(); err != nil {
		return snap, err
	}
	err := withLock(s.dir, false, func() error {
		return readJSON(s.runPath(runID), &snap)
	})
	if os.IsNotExist(err) {
		return snap, runNotFound(runID)
	}
	return snap, err
}

func (s *JSONStore) Delete(ctx context.Context, runID string) error {
	if err := validID("run", runID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return withLock(s.dir, true, func() error {
		if err := os.Remove(s.runPath(runID)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete run %s: %w", runID, err)
		}
		return nil
	})
}

func (s *JSONStore) List(ctx context.Context) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Summary
	err := withLock(s.dir, false, func() error {
		return eachJSON(filepath.Join(s.dir, runsDirName), func(path string) error {
			var snap state.Snapshot
			if err := readJSON(path, &snap); err != nil {
				return err
			}
			out = append(out, Summary{
				RunID:     snap.RunID,
				Phase:     snap.Phase,
				UserInput: snap.UserInput,
				UpdatedAt: snap.UpdatedAt,
			})
			return nil
		})
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, err
}

func (s *JSONStore) Archive(ctx context.Context, e ArchiveEntry) error {
	if err := validID("archive", e.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive entry %s: %w", e.ID, err)
	}
	return withLock(s.dir, true, func() error {
		return writeAtomic(s.archivePath(e.ID), data)
	})
}

func (s *JSONStore) Archived(ctx context.Context, id string) (ArchiveEntry, error) {
	var e ArchiveEntry
	if err := validID("archive", id); err != nil {
		return e, err
	}
	if err := ctx.Err(); err != nil {
		return e, err
	}
	err := withLock(s.dir, false, func() error {
		return readJSON(s.archivePath(id), &e)
	})
	if os.IsNotExist(err) {
		return e, errors.NewNotFoundError("archive entry", id)
	}
	return e, err
}

func (s *JSONStore) Search(ctx context.Context, query string, limit int) ([]ArchiveEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []ArchiveEntry
	err := withLock(s.dir, false, func() error {
		return eachJSON(filepath.Join(s.dir, archiveDirName), func(path string) error {
			var e ArchiveEntry
			if err := readJSON(path, &e); err != nil {
				return err
			}
			if e.Matches(query) {
				out = append(out, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n := limitOr(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Close is a no-op; the JSON store holds no open handles between calls.
func (s *JSONStore) Close() error { return nil }

// writeAtomic writes data to a temporary file and renames it into place.
func writeAtomic(target string, data []byte) error {
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// readJSON decodes path into v. A missing file is returned unwrapped so
// callers can test it with os.IsNotExist.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// eachJSON calls fn for every .json file in dir. Leftover .tmp files from
// an interrupted write are skipped.
func eachJSON(dir string, fn func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		if err := fn(filepath.Join(dir, ent.Name())); err != nil {
			return err
		}
	}
	return nil
}
