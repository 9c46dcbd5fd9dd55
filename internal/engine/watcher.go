package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/review"
)

// SignalDirName is the directory under the store where resume signals are
// dropped.
const SignalDirName = "signals"

// signal is the on-disk form of a resume request.
type signal struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback,omitempty"`
}

// SignalPath returns where the resume signal for runID is written.
func SignalPath(dir, runID string) string {
	return filepath.Join(dir, SignalDirName, runID+".json")
}

// WriteSignal drops a resume signal for runID into dir/signals. The file
// is renamed into place so a watcher never reads a partial write.
func WriteSignal(dir, runID string, d review.Decision) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, SignalDirName), 0o755); err != nil {
		return fmt.Errorf("create signal directory: %w", err)
	}
	data, err := json.Marshal(signal{Status: string(d.Status), Feedback: d.Feedback})
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	target := SignalPath(dir, runID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write signal: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename signal: %w", err)
	}
	return nil
}

// Watcher applies resume signals written by other processes.
type Watcher struct {
	engine *Engine
	dir    string
	logger *logging.Logger
	// applied is called after each signal is handled, with the run id and
	// the resume error. Tests use it to synchronize.
	applied func(runID string, err error)

	wg sync.WaitGroup
}

// NewWatcher watches dir/signals and resumes runs through e.
func NewWatcher(e *Engine, dir string, logger *logging.Logger) *Watcher {
	return &Watcher{
		engine: e,
		dir:    filepath.Join(dir, SignalDirName),
		logger: logging.OrNop(logger).With("component", "signal_watcher"),
	}
}

// Run watches until ctx is done. Signals already present when Run starts
// are applied first.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create signal directory: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	defer w.wg.Wait()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching for resume signals", "dir", w.dir)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read signal directory: %w", err)
	}
	for _, ent := range entries {
		w.handle(ctx, filepath.Join(w.dir, ent.Name()))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				w.handle(ctx, ev.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err.Error())
		}
	}
}

// handle applies one signal file. The file is removed once the signal is
// applied or can never apply; an unreadable file is left for the next
// write event.
func (w *Watcher) handle(ctx context.Context, path string) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".json") {
		return
	}
	runID := strings.TrimSuffix(name, ".json")
	log := w.logger.WithRun(runID)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("failed to read resume signal", "error", err.Error())
		}
		return
	}
	var sig signal
	if err := json.Unmarshal(data, &sig); err != nil {
		log.Warn("malformed resume signal", "error", err.Error())
		return
	}

	d, err := review.ParseDecision(sig.Status, sig.Feedback)
	if err == nil {
		err = w.engine.Resume(ctx, runID, d)
	}
	switch {
	case err == nil:
		log.Info("resume signal applied", "status", string(d.Status))
	case errors.Is(err, errors.ErrRunNotPaused) && !errors.Is(err, errors.ErrRunTerminal) && w.engine.isBusy(runID):
		// The run has not reached the gate yet. Keep the signal and retry
		// once the run settles.
		log.Debug("run not paused yet, deferring signal")
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if _, err := w.engine.Wait(ctx, runID); err == nil {
				w.handle(ctx, path)
			}
		}()
		return
	default:
		log.Warn("resume signal rejected", "error", err.Error())
	}
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		log.Warn("failed to remove resume signal", "error", rmErr.Error())
	}
	w.notify(runID, err)
}

func (w *Watcher) notify(runID string, err error) {
	if w.applied != nil {
		w.applied(runID, err)
	}
}

// isBusy reports whether runID is in memory and still working.
func (e *Engine) isBusy(runID string) bool {
	r, ok := e.lookup(runID)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}
