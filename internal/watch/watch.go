// Package watch triggers sync drains automatically: on a fixed interval, and
// shortly after the local database file changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/syncer"
)

// Syncer is the drain entry point the watcher calls.
type Syncer interface {
	SyncNow(ctx context.Context, userID string) (syncer.Report, error)
}

type Watcher struct {
	syncer   Syncer
	userID   string
	dbPath   string
	interval time.Duration
	debounce time.Duration
	log      *log.Logger
	onReport func(syncer.Report, error)
}

type Option func(*Watcher)

func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithDatabase enables change-triggered drains for the SQLite file at path
// (and its WAL).
func WithDatabase(path string) Option {
	return func(w *Watcher) { w.dbPath = path }
}

func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// OnReport registers a callback invoked after every drain.
func OnReport(fn func(syncer.Report, error)) Option {
	return func(w *Watcher) { w.onReport = fn }
}

func New(s Syncer, userID string, opts ...Option) *Watcher {
	w := &Watcher{
		syncer:   s,
		userID:   userID,
		interval: constants.DefaultWatchInterval,
		debounce: constants.DefaultWatchDebounce,
		log:      logger.Get(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains once immediately, then on every tick and after each debounced
// burst of database writes, until ctx is done. Drain errors are reported and
// logged but do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if w.dbPath != "" {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create fsnotify watcher: %w", err)
		}
		defer fw.Close()

		// Watch the directory: SQLite replaces and truncates its side files.
		dir := filepath.Dir(w.dbPath)
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		fsEvents, fsErrors = fw.Events, fw.Errors
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(w.debounce)
	debounce.Stop()
	defer debounce.Stop()

	w.log.Info("watching for changes", "user", w.userID, "interval", w.interval, "db", w.dbPath)
	w.drain(ctx, "start")

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			w.drain(ctx, "interval")

		case event, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if w.relevant(event) {
				debounce.Reset(w.debounce)
			}

		case <-debounce.C:
			w.drain(ctx, "change")

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			w.log.Warn("file watcher error", "err", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Base(event.Name)
	base := filepath.Base(w.dbPath)
	return name == base || name == base+"-wal"
}

func (w *Watcher) drain(ctx context.Context, trigger string) {
	report, err := w.syncer.SyncNow(ctx, w.userID)
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		w.log.Error("sync failed", "trigger", trigger, "err", err)
	case report.Offline:
		w.log.Debug("offline, waiting for next trigger", "trigger", trigger)
	case report.Attempted > 0:
		w.log.Info("synced", "trigger", trigger,
			"done", report.Done, "skipped", report.Skipped, "retried", report.Retried)
	}
	if w.onReport != nil {
		w.onReport(report, err)
	}
}
