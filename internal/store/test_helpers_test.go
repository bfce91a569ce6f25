package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/classver/internal/model"
)

// createTestStore creates a new file-backed store for testing.
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

var testTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// createTestInfo creates version metadata for reason r at testTime + offset seconds.
func createTestInfo(r model.Reason, offset int) model.VersionInfo {
	return model.NewVersionInfo(r, testTime.Add(time.Duration(offset)*time.Second), "tester")
}
