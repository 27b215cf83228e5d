package async

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/receipt-pipeline/internal/pipeline"
)

// TriggerWatcher tails a drop directory for *.json trigger files and feeds
// decoded triggers into the queue. Malformed files are logged and skipped;
// delivery is at-least-once, so a file seen twice just reruns the job.
type TriggerWatcher struct {
	dir      string
	queue    Queue
	logger   *slog.Logger
	debounce time.Duration
}

func NewTriggerWatcher(dir string, queue Queue, logger *slog.Logger) *TriggerWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriggerWatcher{
		dir:      dir,
		queue:    queue,
		logger:   logger,
		debounce: 200 * time.Millisecond,
	}
}

// Run blocks until ctx is cancelled. Existing trigger files are picked up
// first so a restart does not strand pending work.
func (w *TriggerWatcher) Run(ctx context.Context) error {
	if w.dir == "" {
		return errors.New("no trigger directory provided")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() && isTriggerFile(e.Name()) {
			w.ingest(ctx, filepath.Join(w.dir, e.Name()))
		}
	}

	// The debounce timer only feeds a channel read back into this select,
	// so pending is owned by this goroutine alone.
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	pending := map[string]struct{}{}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-watcher.Events:
			if !isTriggerFile(e.Name) || e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending[e.Name] = struct{}{}
			// Coalesce the create+write burst from a single drop.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			for p := range pending {
				delete(pending, p)
				w.ingest(ctx, p)
			}
		case err := <-watcher.Errors:
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *TriggerWatcher) ingest(ctx context.Context, path string) {
	payload, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("trigger file unreadable", "path", path, "error", err)
		return
	}
	trigger, err := pipeline.DecodeTrigger(payload)
	if err != nil {
		w.logger.Warn("trigger file skipped", "path", path, "error", err)
		return
	}
	if err := w.queue.Enqueue(ctx, NewJob(trigger)); err != nil {
		w.logger.Error("enqueue failed", "path", path, "error", err)
		return
	}
	// Consumed triggers are removed so restarts do not replay them.
	if err := os.Remove(path); err != nil {
		w.logger.Warn("trigger file cleanup failed", "path", path, "error", err)
	}
}

func isTriggerFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}
