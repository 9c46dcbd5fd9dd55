// Package store persists runs so a paused run can be resumed by another
// process, and archives finished plans for later search.
//
// Two backends implement [Store]: [JSONStore] writes one file per run
// under a flock-protected directory, [SQLiteStore] keeps runs and the
// archive in a single database file. [Open] picks one from configuration.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/basecamp/internal/config"
	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/state"
)

// Backend names.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultSearchLimit caps archive search results when no limit is given.
const DefaultSearchLimit = 50

// Summary is a stored run as listed by [Store.List].
type Summary struct {
	RunID     string      `json:"run_id"`
	Phase     state.Phase `json:"phase"`
	UserInput string      `json:"user_input"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ArchiveEntry is a finished run kept for search.
type ArchiveEntry struct {
	ID           string         `json:"id"`
	RunID        string         `json:"run_id"`
	Title        string         `json:"title"`
	Location     string         `json:"location,omitempty"`
	ActivityType string         `json:"activity_type,omitempty"`
	DurationDays int            `json:"duration_days,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	State        state.Snapshot `json:"state"`
}

// NewArchiveEntry builds an archive entry for a finished run. The run must
// carry a plan.
func NewArchiveEntry(snap state.Snapshot) (ArchiveEntry, error) {
	if snap.AdventurePlan == nil {
		return ArchiveEntry{}, errors.NewValidationError("run has no plan to archive").WithField("adventure_plan")
	}
	e := ArchiveEntry{
		ID:        uuid.NewString(),
		RunID:     snap.RunID,
		Title:     snap.AdventurePlan.Title,
		CreatedAt: time.Now().UTC(),
		State:     snap,
	}
	if in := snap.Intent; in != nil {
		e.Location = in.Location
		e.ActivityType = in.ActivityType
		e.DurationDays = in.DurationDays
	}
	return e, nil
}

// Matches reports whether the entry contains query, case-insensitively, in
// its title, location, activity type or original request.
func (e ArchiveEntry) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range []string{e.Title, e.Location, e.ActivityType, e.State.UserInput} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Store persists run snapshots and archived plans.
type Store interface {
	// Save writes or replaces a run snapshot.
	Save(ctx context.Context, snap state.Snapshot) error
	// Load reads a run snapshot. A missing run is errors.ErrRunNotFound.
	Load(ctx context.Context, runID string) (state.Snapshot, error)
	// Delete removes a run snapshot. Deleting a missing run is not an error.
	Delete(ctx context.Context, runID string) error
	// List returns stored runs, most recently updated first.
	List(ctx context.Context) ([]Summary, error)

	// Archive stores a finished run.
	Archive(ctx context.Context, e ArchiveEntry) error
	// Archived reads one archive entry by id.
	Archived(ctx context.Context, id string) (ArchiveEntry, error)
	// Search returns archive entries matching query, newest first. An empty
	// query lists the archive. A limit of zero or less uses
	// DefaultSearchLimit.
	Search(ctx context.Context, query string, limit int) ([]ArchiveEntry, error)

	Close() error
}

// Open returns the backend named by cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	dir := cfg.ResolvedDir()
	switch cfg.Backend {
	case "", BackendJSON:
		return NewJSONStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(dir)
	}
	return nil, errors.NewConfigError("store.backend", fmt.Sprintf("unknown backend %q", cfg.Backend), nil)
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// validID rejects ids that could escape the store directory.
func validID(kind, id string) error {
	if !idPattern.MatchString(id) {
		return errors.NewValidationError("invalid " + kind + " id").WithField(kind + "_id").WithValue(id)
	}
	return nil
}

func runNotFound(runID string) error {
	return fmt.Errorf("%w: %s", errors.ErrRunNotFound, runID)
}

func limitOr(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}
