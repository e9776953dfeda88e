package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KaldarAralay/ProjectManager/internal/reconcile"
)

// countingReconciler records calls.
type countingReconciler struct {
	mu       sync.Mutex
	calls    int
	gotRoots []string
	err      error
}

func (c *countingReconciler) Reconcile(_ context.Context, roots []string) (*reconcile.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.gotRoots = roots
	if c.err != nil {
		return nil, c.err
	}
	return &reconcile.Result{ScanID: "test"}, nil
}

func (c *countingReconciler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingReconciler) roots() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gotRoots
}

func TestNew(t *testing.T) {
	t.Run("requires roots", func(t *testing.T) {
		_, err := New(nil, &countingReconciler{}, 0, zap.NewNop())
		assert.ErrorIs(t, err, reconcile.ErrNoRoots)
	})

	t.Run("requires reconciler", func(t *testing.T) {
		_, err := New([]string{t.TempDir()}, nil, 0, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("zero debounce uses default", func(t *testing.T) {
		w, err := New([]string{t.TempDir()}, &countingReconciler{}, 0, zap.NewNop())
		require.NoError(t, err)
		defer w.Stop()
		assert.Equal(t, DefaultDebounce, w.debounce)
	})
}

func TestStartSkipsMissingRoots(t *testing.T) {
	root := t.TempDir()
	w, err := New([]string{root, filepath.Join(root, "missing")}, &countingReconciler{}, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))
}

func TestStartFailsWhenNoRootWatchable(t *testing.T) {
	root := t.TempDir()
	w, err := New([]string{filepath.Join(root, "missing")}, &countingReconciler{}, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	assert.ErrorIs(t, w.Start(context.Background()), ErrWatcherFailed)
}

func TestDirectoryCreationTriggersRefresh(t *testing.T) {
	root := t.TempDir()
	rec := &countingReconciler{}

	w, err := New([]string{root}, rec, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.Mkdir(filepath.Join(root, "newproj"), 0o755))

	require.Eventually(t, func() bool {
		return rec.count() == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{root}, rec.roots())
}

func TestBurstCollapsesToOneRefresh(t *testing.T) {
	root := t.TempDir()
	rec := &countingReconciler{}

	w, err := New([]string{root}, rec, 150*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(context.Background()))

	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, name), 0o755))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return rec.count() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	// Quiet period: no further refreshes should arrive.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestInFlightErrorIsSwallowed(t *testing.T) {
	root := t.TempDir()
	rec := &countingReconciler{err: reconcile.ErrScanInProgress}

	w, err := New([]string{root}, rec, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.Mkdir(filepath.Join(root, "proj"), 0o755))

	require.Eventually(t, func() bool {
		return rec.count() == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStopEndsLoop(t *testing.T) {
	root := t.TempDir()
	w, err := New([]string{root}, &countingReconciler{}, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop() // idempotent

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit after Stop")
	}
}

func TestContextCancelEndsLoop(t *testing.T) {
	root := t.TempDir()
	w, err := New([]string{root}, &countingReconciler{}, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit after cancellation")
	}
}
