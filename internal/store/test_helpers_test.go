package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testSession returns session metadata with a fixed creation time.
func testSession(id string, createdAt int64) Session {
	return Session{
		ID:        id,
		Source:    "test",
		Clock:     "monotonic",
		Contexts:  2,
		Capacity:  8,
		CreatedAt: createdAt,
	}
}
