package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/leaflane/storefront-go/core"
)

// FileStore is a durable single-file key/value store. It is the local
// analog of browser local storage: one small JSON document per profile,
// surviving process restarts.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger core.Logger
}

type fileEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// NewFileStore creates a FileStore at path. Parent directories are
// created on first write, not here, so constructing a store is cheap.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		logger: &core.NoOpLogger{},
	}
}

// SetLogger configures the logger for this store
func (f *FileStore) SetLogger(logger core.Logger) {
	if logger != nil {
		f.logger = logger
	}
}

// Get retrieves a value; a missing file, missing key or expired entry
// yields "" without error.
func (f *FileStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return "", err
	}

	entry, ok := entries[key]
	if !ok {
		return "", nil
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		return "", nil
	}
	return entry.Value, nil
}

// Set stores a value with optional TTL (0 means no expiry).
func (f *FileStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}

	entry := fileEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	entries[key] = entry

	return f.save(entries)
}

// Delete removes a value. Deleting from a missing file succeeds silently.
func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return f.save(entries)
}

// Exists checks if a live (non-expired) key is present.
func (f *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	v, err := f.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return v != "", nil
}

func (f *FileStore) load() (map[string]fileEntry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]fileEntry), nil
		}
		return nil, fmt.Errorf("session file read: %w", err)
	}

	entries := make(map[string]fileEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupted file is treated as empty rather than fatal; the
		// next write replaces it and a fresh identifier is allocated.
		f.logger.Warn("Session file corrupted, starting fresh", map[string]interface{}{
			"operation": "session_file_load",
			"path":      f.path,
			"error":     err.Error(),
		})
		return make(map[string]fileEntry), nil
	}
	return entries, nil
}

// save writes atomically: temp file in the same directory, then rename.
func (f *FileStore) save(entries map[string]fileEntry) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session file dir: %w", err)
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("session file encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session file temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("session file write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("session file close: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("session file rename: %w", err)
	}
	return nil
}
