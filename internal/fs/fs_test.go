package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFSWriteAndRead(t *testing.T) {
	ctx := context.Background()
	fsys := NewOSFS(0644)
	path := filepath.Join(t.TempDir(), "result.json")

	require.NoError(t, fsys.WriteFile(ctx, path, []byte("first")))
	require.NoError(t, fsys.WriteFile(ctx, path, []byte("second")))

	data, err := fsys.ReadFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestOSFSWriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fsys := NewOSFS(0644)

	require.NoError(t, fsys.WriteFile(ctx, filepath.Join(dir, "a.txt"), []byte("a")))

	entries, err := fsys.ListDir(ctx, dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(dir, "a.txt"), entries[0].Path)
}

func TestOSFSWriteMissingParent(t *testing.T) {
	fsys := NewOSFS(0644)
	err := fsys.WriteFile(context.Background(), filepath.Join(t.TempDir(), "missing", "a.txt"), []byte("a"))
	assert.Error(t, err)
}

func TestOSFSMkdirIsExclusive(t *testing.T) {
	ctx := context.Background()
	fsys := NewOSFS(0644)
	dir := filepath.Join(t.TempDir(), "session")

	require.NoError(t, fsys.Mkdir(ctx, dir, 0755))
	err := fsys.Mkdir(ctx, dir, 0755)
	assert.True(t, errors.Is(err, os.ErrExist))

	exists, err := fsys.Exists(ctx, dir)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = fsys.Exists(ctx, filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOSFSHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fsys := NewOSFS(0644)
	assert.ErrorIs(t, fsys.MkdirAll(ctx, filepath.Join(t.TempDir(), "x"), 0755), context.Canceled)
}

func TestMockFS(t *testing.T) {
	ctx := context.Background()
	m := NewMockFS()

	require.NoError(t, m.MkdirAll(ctx, "out/s1", 0755))
	require.NoError(t, m.Mkdir(ctx, "out/s1/T1", 0755))
	assert.ErrorIs(t, m.Mkdir(ctx, "out/s1/T1", 0755), os.ErrExist)
	assert.ErrorIs(t, m.Mkdir(ctx, "out/missing/T1", 0755), os.ErrNotExist)

	require.NoError(t, m.WriteFile(ctx, "out/s1/T1/prompt.txt", []byte("hi")))
	assert.Error(t, m.WriteFile(ctx, "out/s2/prompt.txt", []byte("hi")))

	data, err := m.ReadFile(ctx, "out/s1/T1/prompt.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	entries, err := m.ListDir(ctx, "out/s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir)

	assert.Equal(t, []string{"out/s1/T1/prompt.txt"}, m.Paths())
	assert.Equal(t, []string{"out/s1", "out/s1/T1"}, m.Dirs("out"))
}

func TestMockFSFailWrite(t *testing.T) {
	ctx := context.Background()
	m := NewMockFS()
	require.NoError(t, m.MkdirAll(ctx, "d", 0755))

	boom := errors.New("disk full")
	m.FailWrite = func(path string) error {
		if filepath.Base(path) == "b.txt" {
			return boom
		}
		return nil
	}

	require.NoError(t, m.WriteFile(ctx, "d/a.txt", nil))
	assert.ErrorIs(t, m.WriteFile(ctx, "d/b.txt", nil), boom)
	assert.Equal(t, []string{"d/a.txt"}, m.Writes)
}

func TestWatcherReportsResultWrites(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, "result.json", 2, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan ChangeEvent, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(ev ChangeEvent) { events <- ev })
	}()

	taskDir := filepath.Join(root, "2025-01-01_00-00-00", "T1")
	require.NoError(t, os.MkdirAll(taskDir, 0755))

	target := filepath.Join(taskDir, "result.json")
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			assert.Equal(t, target, ev.Path)
			cancel()
			<-done
			return
		case <-ticker.C:
			// Directory registration is asynchronous; keep writing until seen.
			require.NoError(t, os.WriteFile(target, []byte(`{}`), 0644))
			_ = os.WriteFile(filepath.Join(taskDir, "notes.txt"), []byte("x"), 0644)
		case <-deadline:
			t.Fatal("timed out waiting for result change event")
		}
	}
}
