package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*FileStore, *WriteQueue) {
	t.Helper()
	q := NewWriteQueue(QueueConfig{BaseBackoff: time.Millisecond, MaxInterval: 5 * time.Millisecond}, zerolog.Nop())
	t.Cleanup(q.Stop)
	return NewFileStore(q, zerolog.Nop()), q
}

func TestWriteCreatesParentDirectories(t *testing.T) {
	s, _ := newTestStore(t)
	path := filepath.Join(t.TempDir(), "agents", "nested", "a.json")

	require.NoError(t, s.Write(context.Background(), "a", path, []byte(`{"ok":true}`)))

	data, err := s.Read(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(data))
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s, _ := newTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")

	require.NoError(t, s.Write(context.Background(), "a", path, []byte("one")))
	require.NoError(t, s.Write(context.Background(), "a", path, []byte("two")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a.json", entries[0].Name())

	data, err := s.Read(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(data))
}

func TestWriteBestEffortRemovesBackupAfterSuccess(t *testing.T) {
	s, q := newTestStore(t)
	path := filepath.Join(t.TempDir(), "layout.json")

	require.NoError(t, s.Write(context.Background(), "layout", path, []byte("v1")))
	require.NoError(t, s.WriteBestEffort(context.Background(), "layout", path, []byte("v2")))
	require.NoError(t, q.Barrier(context.Background(), "layout"))

	data, err := s.Read(path)
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))
	require.False(t, s.Exists(path+".backup"), "backup should be removed after a successful write")
}

func TestWriteBestEffortFirstWriteHasNoBackup(t *testing.T) {
	s, q := newTestStore(t)
	path := filepath.Join(t.TempDir(), "layout.json")

	require.NoError(t, s.WriteBestEffort(context.Background(), "layout", path, []byte("v1")))
	require.NoError(t, q.Barrier(context.Background(), "layout"))

	require.True(t, s.Exists(path))
	require.False(t, s.Exists(path+".backup"))
}

func TestReadWithFallbackPrefersPrimary(t *testing.T) {
	s, _ := newTestStore(t)
	path := filepath.Join(t.TempDir(), "layout.json")
	require.NoError(t, os.WriteFile(path, []byte("primary"), 0o644))
	require.NoError(t, os.WriteFile(path+".backup", []byte("backup"), 0o644))

	data, err := s.ReadWithFallback(path)
	require.NoError(t, err)
	require.Equal(t, "primary", string(data))
}

func TestReadWithFallbackRestoresBackup(t *testing.T) {
	s, _ := newTestStore(t)
	path := filepath.Join(t.TempDir(), "layout.json")
	require.NoError(t, os.WriteFile(path+".backup", []byte("backup"), 0o644))

	data, err := s.ReadWithFallback(path)
	require.NoError(t, err)
	require.Equal(t, "backup", string(data))

	// The recovered copy becomes the new primary.
	restored, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "backup", string(restored))
}

func TestReadWithFallbackMissingBoth(t *testing.T) {
	s, _ := newTestStore(t)
	path := filepath.Join(t.TempDir(), "layout.json")

	_, err := s.ReadWithFallback(path)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDeleteMissingFileIsNotAnError(t *testing.T) {
	s, _ := newTestStore(t)
	path := filepath.Join(t.TempDir(), "gone.json")

	require.NoError(t, s.Delete(context.Background(), "gone", path))
}

func TestDeleteRemovesFile(t *testing.T) {
	s, _ := newTestStore(t)
	path := filepath.Join(t.TempDir(), "a.json")
	require.NoError(t, s.Write(context.Background(), "a", path, []byte("x")))

	require.NoError(t, s.Delete(context.Background(), "a", path))
	require.False(t, s.Exists(path))
}
