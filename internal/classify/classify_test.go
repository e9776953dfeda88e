package classify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaldarAralay/ProjectManager/internal/project"
)

// writeFiles creates empty files under dir, creating parents as needed.
func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
}

func TestClassifyRatio(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"a.py", "b.py", "c.py", "d.py", "e.py", "f.py", "g.py", "h.py",
		"one.ts", "two.ts",
	)

	c := New(Options{}, nil)
	langs, warnings, err := c.Classify(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, langs, 2)
	assert.Equal(t, "python", langs[0].Tag)
	assert.InDelta(t, 0.8, langs[0].Weight, 1e-9)
	assert.Equal(t, "typescript", langs[1].Tag)
	assert.InDelta(t, 0.2, langs[1].Weight, 1e-9)
}

func TestClassifyTieBreakByTag(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.rs", "b.go")

	c := New(Options{}, nil)
	langs, _, err := c.Classify(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, langs, 2)
	assert.Equal(t, "go", langs[0].Tag)
	assert.Equal(t, "rust", langs[1].Tag)
}

func TestClassifyMinShare(t *testing.T) {
	dir := t.TempDir()
	names := make([]string, 0, 20)
	for i := 0; i < 19; i++ {
		names = append(names, filepath.Join("src", "f"+string(rune('a'+i))+".go"))
	}
	names = append(names, "lonely.py") // 1/20 = 0.05, below a 0.1 threshold
	writeFiles(t, dir, names...)

	c := New(Options{MinShare: 0.1}, nil)
	langs, _, err := c.Classify(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, langs, 1)
	assert.Equal(t, "go", langs[0].Tag)
}

func TestClassifyIgnoresUnmappedExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "readme.md", "config.yaml", "data.json", "main.go")

	c := New(Options{}, nil)
	langs, _, err := c.Classify(context.Background(), dir)
	require.NoError(t, err)

	// Markup and config files must not dilute the weights.
	require.Len(t, langs, 1)
	assert.Equal(t, "go", langs[0].Tag)
	assert.InDelta(t, 1.0, langs[0].Weight, 1e-9)
}

func TestClassifySkipsDependencyDirs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "main.ts")
	writeFiles(t, filepath.Join(dir, "node_modules"), "a.js", "b.js", "c.js")
	writeFiles(t, filepath.Join(dir, ".git"), "hook.py")

	c := New(Options{}, nil)
	langs, _, err := c.Classify(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, langs, 1)
	assert.Equal(t, "typescript", langs[0].Tag)
}

func TestClassifyDepthBound(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "top.go")
	writeFiles(t, filepath.Join(dir, "a", "b", "c", "d", "e"), "deep.py")

	c := New(Options{MaxDepth: 2}, nil)
	langs, _, err := c.Classify(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, langs, 1)
	assert.Equal(t, "go", langs[0].Tag)
}

func TestClassifyEmptyDir(t *testing.T) {
	c := New(Options{}, nil)
	langs, warnings, err := c.Classify(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, langs)
	assert.Empty(t, warnings)
}

func TestClassifyMissingDir(t *testing.T) {
	c := New(Options{}, nil)
	_, _, err := c.Classify(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestClassifyUnreadableSubdir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are ignored for root")
	}

	dir := t.TempDir()
	writeFiles(t, dir, "main.go")
	locked := filepath.Join(dir, "locked")
	writeFiles(t, locked, "hidden.py")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	c := New(Options{}, nil)
	langs, warnings, err := c.Classify(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, langs, 1)
	assert.Equal(t, "go", langs[0].Tag)
	require.Len(t, warnings, 1)
	assert.Equal(t, project.WarnClassify, warnings[0].Kind)
	assert.Equal(t, locked, warnings[0].Path)
}

func TestClassifyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(Options{}, nil)
	_, _, err := c.Classify(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}
