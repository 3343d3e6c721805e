package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileStore writes pretty-printed JSON documents, one file per entity,
// routing every write through the per-id queue.
type FileStore struct {
	queue *WriteQueue
	log   zerolog.Logger
}

// NewFileStore wraps queue. The queue may be shared with other stores.
func NewFileStore(queue *WriteQueue, log zerolog.Logger) *FileStore {
	return &FileStore{queue: queue, log: log}
}

// Write persists data to path, serialized per key with other writes for the
// same key. Errors propagate to the caller.
func (s *FileStore) Write(ctx context.Context, key, path string, data []byte) error {
	return s.queue.Do(ctx, key, func(context.Context) error {
		return atomicWrite(path, data)
	})
}

// WriteBestEffort persists data to path with the backup discipline: the
// current file is copied to <path>.backup before the overwrite and the backup
// is removed after a successful write. Failures are retried and logged by the
// queue, never returned.
func (s *FileStore) WriteBestEffort(ctx context.Context, key, path string, data []byte) error {
	return s.queue.Submit(ctx, key, func(context.Context) error {
		backup := path + ".backup"
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, backup); err != nil {
				return err
			}
		}
		if err := atomicWrite(path, data); err != nil {
			return err
		}
		// Backup only covers the window of the overwrite.
		if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", backup).Msg("stale backup left behind")
		}
		return nil
	})
}

// Read loads the file at path.
func (s *FileStore) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ReadWithFallback loads path, falling back to <path>.backup when the primary
// is missing or unreadable. A recovered backup is restored as primary.
func (s *FileStore) ReadWithFallback(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}

	backup := path + ".backup"
	data, berr := os.ReadFile(backup)
	if berr != nil {
		return nil, err // original error is the interesting one
	}

	s.log.Warn().Str("path", path).Msg("primary unreadable, restoring from backup")
	if rerr := atomicWrite(path, data); rerr != nil {
		s.log.Warn().Err(rerr).Str("path", path).Msg("backup restore failed")
	}
	return data, nil
}

// Delete removes the file at path, serialized with writes for the same key.
// Deleting a missing file is not an error.
func (s *FileStore) Delete(ctx context.Context, key, path string) error {
	return s.queue.Do(ctx, key, func(context.Context) error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

// Exists reports whether path exists.
func (s *FileStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// atomicWrite creates the parent directory, writes data to a temp file in it,
// and renames over path so readers never observe a partial document.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return atomicWrite(dst, data)
}
