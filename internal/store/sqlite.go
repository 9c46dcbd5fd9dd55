package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/state"
)

const dbFileName = "basecamp.db"

// SQLiteStore keeps runs and the archive in one SQLite database. Full
// snapshots are stored as JSON next to the columns used for listing and
// search.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) dir/basecamp.db.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	path := filepath.Join(dir, dbFileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers inside the process; SQLite's
	// own locking covers other processes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) init() error {
	schema := `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		user_input TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS archive (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		title TEXT NOT NULL,
		location TEXT,
		activity_type TEXT,
		duration_days INTEGER,
		user_input TEXT,
		state TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_updated ON runs(updated_at);
	CREATE INDEX IF NOT EXISTS idx_archive_created ON archive(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap state.Snapshot) error {
	if err := validID("run", snap.RunID); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", snap.RunID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, phase, user_input, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			phase = excluded.phase,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, snap.RunID, string(snap.Phase), snap.UserInput, string(data),
		snap.CreatedAt.UnixNano(), snap.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", snap.RunID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, runID string) (state.Snapshot, error) {
	var snap state.Snapshot
	if err := validID("run", runID); err != nil {
		return snap, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if err == sql.ErrNoRows {
		return snap, runNotFound(runID)
	}
	if err != nil {
		return snap, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return snap, fmt.Errorf("unmarshal run %s: %w", runID, err)
	}
	return snap, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, runID string) error {
	if err := validID("run", runID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, phase, user_input, updated_at
		FROM runs ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var phase string
		var updated int64
		if err := rows.Scan(&sum.RunID, &phase, &sum.UserInput, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.Phase = state.Phase(phase)
		sum.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Archive(ctx context.Context, e ArchiveEntry) error {
	if err := validID("archive", e.ID); err != nil {
		return err
	}
	data, err := json.Marshal(e.State)
	if err != nil {
		return fmt.Errorf("marshal archive entry %s: %w", e.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO archive (id, run_id, title, location, activity_type, duration_days, user_input, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			location = excluded.location,
			activity_type = excluded.activity_type,
			duration_days = excluded.duration_days,
			state = excluded.state
	`, e.ID, e.RunID, e.Title, e.Location, e.ActivityType, e.DurationDays,
		e.State.UserInput, string(data), e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", e.ID, err)
	}
	return nil
}

const archiveColumns = `id, run_id, title, location, activity_type, duration_days, state, created_at`

func (s *SQLiteStore) Archived(ctx context.Context, id string) (ArchiveEntry, error) {
	if err := validID("archive", id); err != nil {
		return ArchiveEntry{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+archiveColumns+` FROM archive WHERE id = ?`, id)
	e, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return e, errors.NewNotFoundError("archive entry", id)
	}
	return e, err
}

func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]ArchiveEntry, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+archiveColumns+` FROM archive
		WHERE lower(title) LIKE ?1 ESCAPE '\'
			OR lower(coalesce(location, '')) LIKE ?1 ESCAPE '\'
			OR lower(coalesce(activity_type, '')) LIKE ?1 ESCAPE '\'
			OR lower(coalesce(user_input, '')) LIKE ?1 ESCAPE '\'
		ORDER BY created_at DESC
		LIMIT ?2
	`, pattern, limitOr(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search archive: %w", err)
	}
	defer rows.Close()

	var out []ArchiveEntry
	for rows.Next() {
		e, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArchive(r scanner) (ArchiveEntry, error) {
	var e ArchiveEntry
	var location, activity sql.NullString
	var days sql.NullInt64
	var data string
	var created int64
	if err := r.Scan(&e.ID, &e.RunID, &e.Title, &location, &activity, &days, &data, &created); err != nil {
		if err == sql.ErrNoRows {
			return e, err
		}
		return e, fmt.Errorf("failed to scan archive entry: %w", err)
	}
	e.Location = location.String
	e.ActivityType = activity.String
	e.DurationDays = int(days.Int64)
	e.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(data), &e.State); err != nil {
		return e, fmt.Errorf("unmarshal archive entry %s: %w", e.ID, err)
	}
	return e, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
