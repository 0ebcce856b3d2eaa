package shader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForReload(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case path := <-ch:
		return path
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload callback")
		return ""
	}
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "basic.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("// v1"), 0o644))

	reloads := make(chan string, 4)
	w, err := NewWatcher(func(p string) { reloads <- p })
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(path))

	require.NoError(t, os.WriteFile(path, []byte("// v2"), 0o644))

	got := waitForReload(t, reloads)
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	assert.Equal(t, abs, got)
}

func TestWatcherIgnoresUnwatchedSiblings(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "watched.wgsl")
	sibling := filepath.Join(dir, "sibling.wgsl")
	require.NoError(t, os.WriteFile(watched, []byte("// a"), 0o644))
	require.NoError(t, os.WriteFile(sibling, []byte("// b"), 0o644))

	reloads := make(chan string, 4)
	w, err := NewWatcher(func(p string) { reloads <- p })
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(watched))

	require.NoError(t, os.WriteFile(sibling, []byte("// b2"), 0o644))
	require.NoError(t, os.WriteFile(watched, []byte("// a2"), 0o644))

	// Only the watched path should come through, even though its sibling in
	// the same directory changed first.
	abs, err := filepath.Abs(watched)
	require.NoError(t, err)
	assert.Equal(t, abs, waitForReload(t, reloads))
}

func TestWatcherSurvivesRenameOverSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("// v1"), 0o644))

	reloads := make(chan string, 4)
	w, err := NewWatcher(func(p string) { reloads <- p })
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(path))

	// Simulate an editor atomic save: write a temp file and rename it over
	// the watched path.
	tmp := filepath.Join(dir, ".scene.wgsl.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("// v2"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	assert.Equal(t, abs, waitForReload(t, reloads))
}
