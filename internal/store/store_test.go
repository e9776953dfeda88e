package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaldarAralay/ProjectManager/internal/project"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "projects.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func desc(path string, at time.Time, langs ...project.Language) project.Descriptor {
	d, _ := project.NewDescriptor(path, langs, at)
	return d
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)
	assert.False(t, s.RecoveredFromCorruption())

	projects, err := s.Query(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestOpenRecoversFromCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projects.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite file at all"), 0o644))

	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.RecoveredFromCorruption())

	// The bad file is preserved alongside the fresh database.
	matches, err := filepath.Glob(path + ".corrupt.*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// And the fresh store is usable.
	at := time.Now().UTC()
	require.NoError(t, s.UpsertScanResult(context.Background(), desc("/p/a", at)))
}

func TestUpsertInsertsWithDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	err := s.UpsertScanResult(ctx, desc("/p/app", at, project.Language{Tag: "go", Weight: 1}))
	require.NoError(t, err)

	got, err := s.Get(ctx, "/p/app")
	require.NoError(t, err)
	assert.Equal(t, "app", got.Name)
	assert.Equal(t, project.StatusActive, got.Status)
	assert.False(t, got.Favorite)
	assert.True(t, got.Present)
	assert.Equal(t, "go", got.PrimaryLanguage())
	assert.True(t, got.FirstSeen.Equal(at))
	assert.True(t, got.LastScanned.Equal(at))
}

func TestUpsertPreservesUserFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	first := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/app", first, project.Language{Tag: "go", Weight: 1})))

	status := project.StatusOnHold
	fav := true
	name := "My App"
	notes := "half-finished rewrite"
	cmds := []project.Command{{Name: "edit", Template: "code {path}"}}
	require.NoError(t, s.UpdateUserFields(ctx, "/p/app", UserPatch{
		Name: &name, Status: &status, Favorite: &fav, Notes: &notes, Commands: &cmds,
	}))

	// A later scan refreshes only scan-owned fields.
	second := time.Now().UTC()
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/app", second, project.Language{Tag: "rust", Weight: 1})))

	got, err := s.Get(ctx, "/p/app")
	require.NoError(t, err)
	assert.Equal(t, "My App", got.Name)
	assert.Equal(t, project.StatusOnHold, got.Status)
	assert.True(t, got.Favorite)
	assert.Equal(t, "half-finished rewrite", got.Notes)
	assert.Equal(t, cmds, got.Commands)
	assert.Equal(t, "rust", got.PrimaryLanguage())
	assert.True(t, got.FirstSeen.Equal(first), "first_seen is immutable")
	assert.True(t, got.LastScanned.Equal(second))
}

func TestMarkAbsent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/a", at)))
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/b", at)))

	require.NoError(t, s.MarkAbsent(ctx, []string{"/p/a"}))

	a, err := s.Get(ctx, "/p/a")
	require.NoError(t, err)
	assert.True(t, a.Present)

	b, err := s.Get(ctx, "/p/b")
	require.NoError(t, err)
	assert.False(t, b.Present, "unseen paths are flagged, not deleted")
}

func TestMarkAbsentEmptySeen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/a", time.Now().UTC())))

	require.NoError(t, s.MarkAbsent(ctx, nil))

	a, err := s.Get(ctx, "/p/a")
	require.NoError(t, err)
	assert.False(t, a.Present)
}

func TestApplyScanAtomicUnit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/old", at.Add(-time.Hour))))

	err := s.ApplyScan(ctx, []project.Descriptor{
		desc("/p/new", at, project.Language{Tag: "python", Weight: 1}),
	})
	require.NoError(t, err)

	old, err := s.Get(ctx, "/p/old")
	require.NoError(t, err)
	assert.False(t, old.Present)

	fresh, err := s.Get(ctx, "/p/new")
	require.NoError(t, err)
	assert.True(t, fresh.Present)
}

func TestApplyScanRollsBackOnBadDescriptor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/old", at.Add(-time.Hour))))

	err := s.ApplyScan(ctx, []project.Descriptor{
		desc("/p/new", at),
		{}, // empty path aborts the transaction
	})
	require.Error(t, err)

	// Nothing from the failed scan is visible.
	_, err = s.Get(ctx, "/p/new")
	assert.ErrorIs(t, err, project.ErrProjectNotFound)

	old, err := s.Get(ctx, "/p/old")
	require.NoError(t, err)
	assert.True(t, old.Present, "markAbsent must not have run")
}

func TestUpdateUserFieldsUnknownPath(t *testing.T) {
	s := openTestStore(t)
	fav := true
	err := s.UpdateUserFields(context.Background(), "/nope", UserPatch{Favorite: &fav})
	assert.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestUpdateUserFieldsRejectsInvalidStatus(t *testing.T) {
	s := openTestStore(t)
	bad := project.Status("done")
	err := s.UpdateUserFields(context.Background(), "/p/a", UserPatch{Status: &bad})
	assert.ErrorIs(t, err, project.ErrInvalidStatus)
}

func TestUpdateUserFieldsRejectsDuplicateCommands(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/a", time.Now().UTC())))

	cmds := []project.Command{
		{Name: "build", Template: "make"},
		{Name: "build", Template: "make all"},
	}
	err := s.UpdateUserFields(ctx, "/p/a", UserPatch{Commands: &cmds})
	assert.ErrorIs(t, err, project.ErrDuplicateCommand)
}

func TestCommandsKeepUserOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/a", time.Now().UTC())))

	cmds := []project.Command{
		{Name: "zz-first", Template: "echo 1"},
		{Name: "aa-second", Template: "echo 2"},
	}
	require.NoError(t, s.UpdateUserFields(ctx, "/p/a", UserPatch{Commands: &cmds}))

	got, err := s.Get(ctx, "/p/a")
	require.NoError(t, err)
	assert.Equal(t, cmds, got.Commands, "position, not name, orders commands")
}

func TestBatchUpdateStatusAllOrNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/a", at)))
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/b", at)))

	// The last path is unknown; the whole batch must roll back.
	err := s.BatchUpdateStatus(ctx, []string{"/p/a", "/p/b", "/p/missing"}, project.StatusArchived)
	require.ErrorIs(t, err, project.ErrProjectNotFound)

	for _, path := range []string{"/p/a", "/p/b"} {
		got, err := s.Get(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, project.StatusActive, got.Status, "no partial effect for %s", path)
	}

	// The happy path updates everything.
	require.NoError(t, s.BatchUpdateStatus(ctx, []string{"/p/a", "/p/b"}, project.StatusArchived))
	for _, path := range []string{"/p/a", "/p/b"} {
		got, err := s.Get(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, project.StatusArchived, got.Status)
	}
}

func TestQueryFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/alpha", at, project.Language{Tag: "go", Weight: 1})))
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/beta", at, project.Language{Tag: "python", Weight: 1})))
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/gamma", at,
		project.Language{Tag: "python", Weight: 0.7}, project.Language{Tag: "go", Weight: 0.3})))

	hold := project.StatusOnHold
	require.NoError(t, s.UpdateUserFields(ctx, "/p/beta", UserPatch{Status: &hold}))
	fav := true
	require.NoError(t, s.UpdateUserFields(ctx, "/p/gamma", UserPatch{Favorite: &fav}))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "all", filter: Filter{}, want: []string{"/p/alpha", "/p/beta", "/p/gamma"}},
		{name: "by status", filter: Filter{Status: &hold}, want: []string{"/p/beta"}},
		{name: "by language", filter: Filter{Language: "go"}, want: []string{"/p/alpha", "/p/gamma"}},
		{name: "by favorite", filter: Filter{Favorite: &fav}, want: []string{"/p/gamma"}},
		{name: "by search", filter: Filter{Search: "ALPHA"}, want: []string{"/p/alpha"}},
		{name: "no match", filter: Filter{Search: "zeta"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			require.NoError(t, err)
			paths := make([]string, 0, len(got))
			for _, p := range got {
				paths = append(paths, p.Path)
			}
			if tt.want == nil {
				assert.Empty(t, paths)
			} else {
				assert.Equal(t, tt.want, paths)
			}
		})
	}
}

func TestQueryByPresent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/here", at)))
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/gone", at)))
	require.NoError(t, s.MarkAbsent(ctx, []string{"/p/here"}))

	absent := false
	got, err := s.Query(ctx, Filter{Present: &absent})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/p/gone", got[0].Path)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/a", time.Now().UTC())))

	require.NoError(t, s.Delete(ctx, "/p/a"))
	_, err := s.Get(ctx, "/p/a")
	assert.ErrorIs(t, err, project.ErrProjectNotFound)

	err = s.Delete(ctx, "/p/a")
	assert.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestLanguages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/a", at, project.Language{Tag: "go", Weight: 1})))
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/b", at,
		project.Language{Tag: "python", Weight: 0.5}, project.Language{Tag: "go", Weight: 0.5})))
	require.NoError(t, s.UpsertScanResult(ctx, desc("/p/c", at)))

	langs, err := s.Languages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "python"}, langs)
}

func TestSettings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Setting(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSetting(ctx, "k", "v1"))
	require.NoError(t, s.SetSetting(ctx, "k", "v2"))
	value, ok, err := s.Setting(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", value)
}

func TestScanDirectoriesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	dirs, err := s.ScanDirectories(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirs)

	want := []string{"/home/u/code", "/srv/projects"}
	require.NoError(t, s.SetScanDirectories(ctx, want))

	dirs, err = s.ScanDirectories(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, dirs)
}

func TestEditorCommandDefault(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cmd, err := s.EditorCommand(ctx)
	require.NoError(t, err)
	assert.Equal(t, "code", cmd)

	require.NoError(t, s.SetEditorCommand(ctx, "nvim"))
	cmd, err = s.EditorCommand(ctx)
	require.NoError(t, err)
	assert.Equal(t, "nvim", cmd)
}

func TestClosedStore(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Query(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrStoreClosed)
}
