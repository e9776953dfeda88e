// Package watch triggers reconciliation when configured roots change on
// disk. It watches the roots themselves (not their whole subtrees) and
// debounces bursts, so a bulk checkout or delete causes one refresh.
package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/KaldarAralay/ProjectManager/internal/reconcile"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce is the quiet period required after the last filesystem
// event before a refresh fires.
const DefaultDebounce = 2 * time.Second

// Reconciler runs one scan-and-merge cycle.
type Reconciler interface {
	Reconcile(ctx context.Context, roots []string) (*reconcile.Result, error)
}

// Watcher observes the scan roots and triggers reconciliation on change.
type Watcher struct {
	roots      []string
	reconciler Reconciler
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	logger     *zap.Logger
	stop       chan struct{}
	done       chan struct{}
}

// New creates a watcher over roots. A zero debounce uses DefaultDebounce.
func New(roots []string, rec Reconciler, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, reconcile.ErrNoRoots
	}
	if rec == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		roots:      roots,
		reconciler: rec,
		debounce:   debounce,
		watcher:    fsw,
		logger:     logger.Named("watch"),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start registers the roots and begins watching in a background goroutine.
// Roots that cannot be watched are logged and skipped; at least one root
// must register.
func (w *Watcher) Start(ctx context.Context) error {
	watched := 0
	for _, root := range w.roots {
		if err := w.watcher.Add(root); err != nil {
			w.logger.Warn("cannot watch root", zap.String("root", root), zap.Error(err))
			continue
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("%w: no watchable roots", ErrWatcherFailed)
	}

	w.logger.Info("watching roots",
		zap.Int("watched", watched),
		zap.Duration("debounce", w.debounce),
	)

	go w.loop(ctx)
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

// Done is closed when the event loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// loop processes filesystem events and fires a refresh after the debounce
// window closes.
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var fire <-chan time.Time
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("root changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			fire = time.After(w.debounce)
		case <-fire:
			fire = nil
			w.refresh(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// relevant reports whether the event can change the project set. Writes to
// files directly under a root are noise.
func relevant(event fsnotify.Event) bool {
	return event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

// refresh runs one reconciliation cycle. A cycle already in flight means
// the change will be picked up on the next trigger; drop this one.
func (w *Watcher) refresh(ctx context.Context) {
	result, err := w.reconciler.Reconcile(ctx, w.roots)
	switch {
	case errors.Is(err, reconcile.ErrScanInProgress):
		w.logger.Debug("refresh skipped, scan already running")
	case err != nil:
		w.logger.Warn("refresh failed", zap.Error(err))
	default:
		w.logger.Info("refresh complete",
			zap.String("scan_id", result.ScanID),
			zap.Int("discovered", result.Discovered),
			zap.Duration("duration", result.Duration),
		)
	}
}
