// Package watcher reports on files as they land in a source directory.
//
// Events from fsnotify are debounced per path, then the file is given time
// to stop growing before the handler sees it. The watcher itself never
// changes anything on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"movephotos/internal/filter"
	"movephotos/internal/logging"
)

// Outcome is what the handler concluded about a file.
type Outcome int

const (
	OutcomeConfident Outcome = iota
	OutcomeUnresolved

	outcomeFailed Outcome = -1
)

// Handler is called every time a file settles. A file written again after
// it was handled settles again.
type Handler func(ctx context.Context, path string) (Outcome, error)

// Config holds the watcher settings.
type Config struct {
	Debounce        time.Duration
	StableThreshold time.Duration // zero skips the stability wait
	Ignore          *filter.FileFilter
	Logger          *zap.Logger
}

// Summary counts the distinct files a watch session saw. A file handled
// more than once is counted by its latest outcome.
type Summary struct {
	Confident  int
	Unresolved int
	Ignored    int
	Errors     int
	Duration   time.Duration
}

// Watcher monitors directories and hands settled files to a Handler.
type Watcher struct {
	cfg       Config
	handler   Handler
	log       *zap.Logger
	stability *StabilityChecker

	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	ctx       context.Context
	cancel    context.CancelFunc
	loop      sync.WaitGroup

	mu      sync.Mutex
	running bool
	started time.Time
	ignored map[string]struct{}
	results map[string]Outcome
	summary Summary
}

// New creates a Watcher. A nil Ignore filter ignores partial downloads.
func New(cfg Config, handler Handler) *Watcher {
	if cfg.Ignore == nil {
		cfg.Ignore = filter.New(filter.PartialDownloadPatterns())
	}
	w := &Watcher{
		cfg:     cfg,
		handler: handler,
		log:     logging.OrNop(cfg.Logger),
		ignored: make(map[string]struct{}),
		results: make(map[string]Outcome),
	}
	if cfg.StableThreshold > 0 {
		w.stability = NewStabilityChecker(cfg.StableThreshold)
	}
	return w
}

// Start watches root and every directory below it. It returns once the
// watches are in place; events are processed until ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context, root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.fsw = fsw
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return err
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.debouncer = NewDebouncer(w.cfg.Debounce, w.settle)
	w.running = true
	w.started = time.Now()

	w.loop.Add(1)
	go w.processEvents()

	w.log.Info("watching",
		zap.String("root", root),
		zap.Duration("debounce", w.cfg.Debounce),
		zap.Strings("ignore", w.cfg.Ignore.Patterns()))
	return nil
}

// Stop ends the session, waits for files already being handled and returns
// the session summary. Calling Stop on a stopped watcher returns the last
// summary.
func (w *Watcher) Stop() Summary {
	w.mu.Lock()
	if !w.running {
		defer w.mu.Unlock()
		return w.summary
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	w.fsw.Close()
	w.loop.Wait()
	if n := w.debouncer.PendingCount(); n > 0 {
		w.log.Info("dropping files that had not settled", zap.Int("count", n))
	}
	w.debouncer.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.summary = Summary{Ignored: len(w.ignored), Duration: time.Since(w.started)}
	for _, outcome := range w.results {
		switch outcome {
		case OutcomeConfident:
			w.summary.Confident++
		case outcomeFailed:
			w.summary.Errors++
		default:
			w.summary.Unresolved++
		}
	}
	return w.summary
}

// addTree watches dir and its subdirectories. fsnotify watches are not
// recursive.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.loop.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.debouncer.Cancel(event.Name)
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Gone already, e.g. a temp file renamed away.
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			w.mu.Lock()
			err := w.addTree(event.Name)
			w.mu.Unlock()
			if err != nil {
				w.log.Warn("cannot watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
		}
		return
	}

	if w.cfg.Ignore.Matches(event.Name) {
		w.mu.Lock()
		w.ignored[event.Name] = struct{}{}
		w.mu.Unlock()
		w.log.Debug("ignored", zap.String("path", event.Name))
		return
	}
	w.debouncer.Add(event.Name)
}

// settle runs on the debouncer's timer once a path has been quiet.
func (w *Watcher) settle(path string) {
	if w.stability != nil {
		if err := w.stability.WaitForStable(w.ctx, path); err != nil {
			switch {
			case errors.Is(err, ErrFileNotFound):
				w.log.Debug("vanished before settling", zap.String("path", path))
			case w.ctx.Err() != nil:
			default:
				w.recordError(path, err)
			}
			return
		}
	}
	if w.ctx.Err() != nil {
		return
	}

	outcome, err := w.handler(w.ctx, path)
	if err != nil {
		w.recordError(path, err)
		return
	}
	w.record(path, outcome)
}

func (w *Watcher) recordError(path string, err error) {
	w.log.Warn("cannot examine file", zap.String("path", path), zap.Error(err))
	w.record(path, outcomeFailed)
}

func (w *Watcher) record(path string, outcome Outcome) {
	w.mu.Lock()
	w.results[path] = outcome
	w.mu.Unlock()
}
