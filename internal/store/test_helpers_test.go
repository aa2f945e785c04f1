package store

import (
	"path/filepath"
	"testing"
)

// createTestStore opens a store in a fresh temp directory.
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

// createTestRun returns a scheduled run with the required fields set.
func createTestRun(id, unit string, seq int64) Run {
	return Run{
		ID:         id,
		Seq:        seq,
		Unit:       unit,
		GraphHash:  "graph-" + unit,
		ConfigHash: "config",
		Outcome:    OutcomeScheduled,
		BlockCount: 2,
		GateCount:  5,
	}
}
