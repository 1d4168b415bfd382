package db

import (
	"path/filepath"
	"testing"
)

// Helper functions for creating pointer values
func floatPtr(f float64) *float64 {
	return &f
}

func int64Ptr(i int64) *int64 {
	return &i
}

// openTestDB creates a fully migrated database under t.TempDir.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	database, err := OpenAndMigrate(path)
	if err != nil {
		t.Fatalf("OpenAndMigrate failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database
}

// createTestSession inserts a started session with standard capture
// metadata, returning it with its assigned id.
func createTestSession(t *testing.T, database *DB, exercise string, startedAtNs int64) *Session {
	t.Helper()

	sess := &Session{
		CameraID:    "cam0",
		Exercise:    exercise,
		SourceName:  "synthetic",
		StartedAtNs: startedAtNs,
	}
	if err := database.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	return sess
}

// insertTestRep records one rep event for the session.
func insertTestRep(t *testing.T, database *DB, sessionID, handle string, slotIndex, repNumber int, angle float64, countedAtNs int64) *RepEvent {
	t.Helper()

	ev := &RepEvent{
		SessionID:   sessionID,
		SlotHandle:  handle,
		SlotIndex:   slotIndex,
		RepNumber:   repNumber,
		Angle:       angle,
		FrameSeq:    uint64(repNumber * 10),
		CountedAtNs: countedAtNs,
	}
	if err := database.InsertRepEvent(ev); err != nil {
		t.Fatalf("InsertRepEvent failed: %v", err)
	}

	return ev
}
