package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
)

// FileStore keeps one JSON file per key in a directory. Concurrent writers of
// the same key from different processes are not supported.
type FileStore struct {
	dir   string
	ttl   time.Duration
	clock clockwork.Clock
}

// NewFileStore creates dir if needed and returns a store over it.
func NewFileStore(dir string, ttl time.Duration, clock clockwork.Clock) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FileStore{dir: dir, ttl: ttl, clock: clock}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, hashKey(key)+".json")
}

// Get returns the cached payload for key, or ErrMiss.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	return decodeEntry(data, s.clock.Now(), s.ttl)
}

// Delete removes the entry for key. A missing entry is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// Set writes payload for key, replacing the file atomically.
func (s *FileStore) Set(_ context.Context, key string, payload []byte) error {
	data, err := encodeEntry(payload, s.clock.Now())
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
