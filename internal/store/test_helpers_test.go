package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/lcagraph/internal/testutil"
)

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	return testutil.NewDeterministicClock().Now
}

// createTestStore opens a SQLite store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends runs fn against the SQLite and in-memory stores.
func backends(t *testing.T, fn func(t *testing.T, st GraphStore)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory(WithClock(fixedClock()))) })
}

func strPtr(s string) *string { return &s }
