package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	ctx := context.Background()

	store := NewFileStore(path)
	if err := store.Set(ctx, "sessionId", "session_123_abcdefghi", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A new store over the same file sees the value, like a browser
	// restart re-reading local storage.
	reopened := NewFileStore(path)
	got, err := reopened.Get(ctx, "sessionId")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "session_123_abcdefghi" {
		t.Errorf("Get = %q, want persisted value", got)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "never-written"))

	got, err := store.Get(context.Background(), "sessionId")
	if err != nil {
		t.Fatalf("Get on missing file failed: %v", err)
	}
	if got != "" {
		t.Errorf("Get = %q, want empty for missing file", got)
	}

	// Deleting from a missing file succeeds silently
	if err := store.Delete(context.Background(), "sessionId"); err != nil {
		t.Errorf("Delete on missing file failed: %v", err)
	}
}

func TestFileStoreCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("writing corrupted file: %v", err)
	}

	store := NewFileStore(path)
	ctx := context.Background()

	got, err := store.Get(ctx, "sessionId")
	if err != nil {
		t.Fatalf("Get on corrupted file should not fail: %v", err)
	}
	if got != "" {
		t.Errorf("Get = %q, want empty for corrupted file", got)
	}

	// The next write replaces the corrupted file
	if err := store.Set(ctx, "sessionId", "session_456_jklmnopqr", 0); err != nil {
		t.Fatalf("Set after corruption failed: %v", err)
	}
	got, err = store.Get(ctx, "sessionId")
	if err != nil || got != "session_456_jklmnopqr" {
		t.Errorf("Get after recovery = (%q, %v), want the new value", got, err)
	}
}

func TestFileStoreCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "session")
	store := NewFileStore(path)

	if err := store.Set(context.Background(), "key", "value", 0); err != nil {
		t.Fatalf("Set should create parent directories: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("session file not created: %v", err)
	}
}

func TestFileStoreTTL(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session"))
	ctx := context.Background()

	if err := store.Set(ctx, "key", "value", 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	got, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "" {
		t.Errorf("Get = %q, want empty after expiry", got)
	}

	exists, err := store.Exists(ctx, "key")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Exists = true after expiry, want false")
	}
}

func TestFileStoreDelete(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session"))
	ctx := context.Background()

	if err := store.Set(ctx, "key", "value", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := store.Get(ctx, "key")
	if err != nil || got != "" {
		t.Errorf("Get after delete = (%q, %v), want empty", got, err)
	}
}
