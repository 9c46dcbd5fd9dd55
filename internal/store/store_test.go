package store

import (
	"context"
	"testing"
	"time"

	"github.com/Iron-Ham/basecamp/internal/config"
	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/state"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	js, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	sq, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{BackendJSON: js, BackendSQLite: sq}
}

func pausedRun(t *testing.T, id, input string) state.Snapshot {
	t.Helper()
	ps := state.New(id, input, state.Preferences{Region: "Sedona"})
	if err := ps.SetIntent(state.Intent{
		ActivityType:        "hiking",
		Location:            "Sedona, Arizona",
		DurationDays:        3,
		RequiredSpecialists: []string{"geo_agent", "trail_agent"},
	}); err != nil {
		t.Fatalf("SetIntent: %v", err)
	}
	_ = ps.Apply(state.Delta{Specialist: "geo_agent", Output: state.NewOutput(&state.GeoResult{DisplayName: "Sedona", Lat: 34.87, Lon: -111.76})})
	_ = ps.Apply(state.Delta{Specialist: "trail_agent", Output: state.NewOutput(&state.TrailList{Trails: []state.Trail{{Name: "Devil's Bridge"}}})})
	ps.SetPhase(state.PhaseHumanReview)
	ps.Pause([]string{"duration 3 days exceeds 2"})
	snap, err := ps.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

func finishedRun(t *testing.T, id, input, title string) state.Snapshot {
	t.Helper()
	snap := pausedRun(t, id, input)
	ps := state.Restore(snap)
	ps.SetPlan(state.Plan{Title: title})
	ps.SetPhase(state.PhaseDone)
	out, err := ps.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return out
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			snap := pausedRun(t, "run-a", "three days hiking Sedona")
			if err := s.Save(ctx, snap); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := s.Load(ctx, "run-a")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.Phase != state.PhaseHumanReview || got.UserInput != snap.UserInput {
				t.Errorf("Load = %+v", got)
			}
			if len(got.CompletedSpecialists) != 2 {
				t.Errorf("CompletedSpecialists = %v, want 2", got.CompletedSpecialists)
			}
			out, ok := got.Outputs["trail_agent"]
			if !ok {
				t.Fatal("trail_agent output lost")
			}
			if tl, ok := out.Payload.(*state.TrailList); !ok || tl.Trails[0].Name != "Devil's Bridge" {
				t.Errorf("trail output = %#v", out.Payload)
			}

			restored := state.Restore(got)
			if !restored.AllCompleted() {
				t.Error("restored run not complete")
			}
		})
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			snap := pausedRun(t, "run-b", "hike")
			if err := s.Save(ctx, snap); err != nil {
				t.Fatal(err)
			}
			snap.Phase = state.PhaseDone
			snap.UpdatedAt = snap.UpdatedAt.Add(time.Second)
			if err := s.Save(ctx, snap); err != nil {
				t.Fatal(err)
			}
			got, err := s.Load(ctx, "run-b")
			if err != nil {
				t.Fatal(err)
			}
			if got.Phase != state.PhaseDone {
				t.Errorf("Phase = %s, want DONE", got.Phase)
			}
			list, err := s.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 1 {
				t.Errorf("List = %d runs, want 1", len(list))
			}
		})
	}
}

func TestStore_NotFoundAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Load(ctx, "missing"); !errors.Is(err, errors.ErrRunNotFound) {
				t.Errorf("Load(missing) = %v, want ErrRunNotFound", err)
			}
			if err := s.Delete(ctx, "missing"); err != nil {
				t.Errorf("Delete(missing) = %v, want nil", err)
			}

			if err := s.Save(ctx, pausedRun(t, "run-c", "hike")); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, "run-c"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Load(ctx, "run-c"); !errors.Is(err, errors.ErrRunNotFound) {
				t.Errorf("Load after Delete = %v, want ErrRunNotFound", err)
			}
		})
	}
}

func TestStore_RejectsUnsafeIDs(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"", "../escape", "a/b", "-leading"} {
				if _, err := s.Load(ctx, id); err == nil {
					t.Errorf("Load(%q) = nil error", id)
				}
			}
		})
	}
}

func TestStore_ListOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
			for i, id := range []string{"old", "newest", "middle"} {
				snap := pausedRun(t, id, "hike "+id)
				snap.UpdatedAt = base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
				if err := s.Save(ctx, snap); err != nil {
					t.Fatal(err)
				}
			}
			list, err := s.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, sum := range list {
				got = append(got, sum.RunID)
			}
			want := []string{"newest", "middle", "old"}
			if len(got) != len(want) {
				t.Fatalf("List = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("List = %v, want %v", got, want)
					break
				}
			}
		})
	}
}

func TestStore_Archive(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var ids []string
			for i, run := range []struct{ id, input, title string }{
				{"r1", "Sedona slickrock weekend", "Red Rock Weekend"},
				{"r2", "Flagstaff bikepacking", "Pines and Dirt"},
				{"r3", "Tucson desert hike 100%", "Saguaro Stroll"},
			} {
				e, err := NewArchiveEntry(finishedRun(t, run.id, run.input, run.title))
				if err != nil {
					t.Fatalf("NewArchiveEntry: %v", err)
				}
				e.CreatedAt = time.Date(2026, 5, 1+i, 0, 0, 0, 0, time.UTC)
				if err := s.Archive(ctx, e); err != nil {
					t.Fatalf("Archive: %v", err)
				}
				ids = append(ids, e.ID)
			}

			got, err := s.Archived(ctx, ids[0])
			if err != nil {
				t.Fatalf("Archived: %v", err)
			}
			if got.Title != "Red Rock Weekend" || got.Location != "Sedona, Arizona" || got.State.AdventurePlan == nil {
				t.Errorf("Archived = %+v", got)
			}

			var nf *errors.NotFoundError
			if _, err := s.Archived(ctx, "nope"); !errors.As(err, &nf) {
				t.Errorf("Archived(nope) = %v, want NotFoundError", err)
			}

			tests := []struct {
				query string
				limit int
				want  []string
			}{
				{"", 0, []string{"Saguaro Stroll", "Pines and Dirt", "Red Rock Weekend"}},
				{"pines", 0, []string{"Pines and Dirt"}},
				{"SLICKROCK", 0, []string{"Red Rock Weekend"}},
				{"hiking", 2, []string{"Saguaro Stroll", "Pines and Dirt"}},
				{"100%", 0, []string{"Saguaro Stroll"}},
				{"glacier", 0, nil},
			}
			for _, tt := range tests {
				res, err := s.Search(ctx, tt.query, tt.limit)
				if err != nil {
					t.Fatalf("Search(%q): %v", tt.query, err)
				}
				var titles []string
				for _, e := range res {
					titles = append(titles, e.Title)
				}
				if len(titles) != len(tt.want) {
					t.Errorf("Search(%q) = %v, want %v", tt.query, titles, tt.want)
					continue
				}
				for i := range tt.want {
					if titles[i] != tt.want[i] {
						t.Errorf("Search(%q) = %v, want %v", tt.query, titles, tt.want)
						break
					}
				}
			}
		})
	}
}

func TestNewArchiveEntry_RequiresPlan(t *testing.T) {
	if _, err := NewArchiveEntry(pausedRun(t, "r", "hike")); err == nil {
		t.Error("NewArchiveEntry without a plan = nil error")
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{BackendJSON, false},
		{BackendSQLite, false},
		{"postgres", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s, err := Open(config.StoreConfig{Backend: tt.backend, Dir: t.TempDir()})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}
