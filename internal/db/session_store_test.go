package db

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreateAndGetSession(t *testing.T) {
	db := openTestDB(t)

	started := time.Now().UnixNano()
	sess := &Session{
		CameraID:    "front_door",
		Exercise:    "pushup",
		SourceName:  "udp::5005",
		StartedAtNs: started,
	}
	if err := db.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if !strings.HasPrefix(sess.SessionID, "ses_") {
		t.Errorf("Expected generated id with ses_ prefix, got %q", sess.SessionID)
	}

	got, err := db.GetSession(sess.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.CameraID != "front_door" || got.Exercise != "pushup" || got.SourceName != "udp::5005" {
		t.Errorf("Session fields did not round-trip: %+v", got)
	}
	if got.StartedAtNs != started {
		t.Errorf("Expected started_at_ns %d, got %d", started, got.StartedAtNs)
	}
	if got.EndedAtNs != nil {
		t.Errorf("Expected open session, got ended_at_ns %d", *got.EndedAtNs)
	}
}

func TestCreateSessionFillsDefaults(t *testing.T) {
	db := openTestDB(t)

	sess := &Session{Exercise: "squat"}
	if err := db.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if sess.SessionID == "" {
		t.Error("Expected a generated session id")
	}
	if sess.StartedAtNs == 0 {
		t.Error("Expected started_at_ns to be filled")
	}
}

func TestEndSession(t *testing.T) {
	db := openTestDB(t)

	sess := createTestSession(t, db, "pullup", time.Now().UnixNano())

	ended := sess.StartedAtNs + int64(90*time.Second)
	if err := db.EndSession(sess.SessionID, ended); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	got, err := db.GetSession(sess.SessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.EndedAtNs == nil || *got.EndedAtNs != ended {
		t.Errorf("Expected ended_at_ns %d, got %v", ended, got.EndedAtNs)
	}
}

func TestEndSessionNotFound(t *testing.T) {
	db := openTestDB(t)

	err := db.EndSession("ses_does-not-exist", time.Now().UnixNano())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetSession("ses_does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	base := time.Now().UnixNano()
	first := createTestSession(t, db, "pushup", base)
	second := createTestSession(t, db, "squat", base+int64(time.Minute))
	third := createTestSession(t, db, "pullup", base+int64(2*time.Minute))

	sessions, err := db.ListSessions(0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != third.SessionID || sessions[2].SessionID != first.SessionID {
		t.Errorf("Expected newest-first ordering, got %s, %s, %s",
			sessions[0].SessionID, sessions[1].SessionID, sessions[2].SessionID)
	}

	limited, err := db.ListSessions(2)
	if err != nil {
		t.Fatalf("ListSessions with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 sessions with limit 2, got %d", len(limited))
	}
	if limited[0].SessionID != third.SessionID || limited[1].SessionID != second.SessionID {
		t.Errorf("Expected the two newest sessions, got %s, %s", limited[0].SessionID, limited[1].SessionID)
	}
}

func TestRepEventsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	sess := createTestSession(t, db, "pushup", time.Now().UnixNano())
	base := sess.StartedAtNs

	insertTestRep(t, db, sess.SessionID, "slot_a", 0, 1, 85.2, base+int64(2*time.Second))
	insertTestRep(t, db, sess.SessionID, "slot_b", 1, 1, 88.9, base+int64(3*time.Second))
	insertTestRep(t, db, sess.SessionID, "slot_a", 0, 2, 84.1, base+int64(5*time.Second))

	events, err := db.ListRepEvents(sess.SessionID)
	if err != nil {
		t.Fatalf("ListRepEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	// Counting order by timestamp
	if events[0].SlotHandle != "slot_a" || events[1].SlotHandle != "slot_b" || events[2].SlotHandle != "slot_a" {
		t.Errorf("Events out of order: %s, %s, %s",
			events[0].SlotHandle, events[1].SlotHandle, events[2].SlotHandle)
	}
	if events[2].RepNumber != 2 {
		t.Errorf("Expected rep_number 2 on last event, got %d", events[2].RepNumber)
	}
	if events[0].EventID == 0 {
		t.Error("Expected assigned event ids")
	}
	if events[0].Angle != 85.2 {
		t.Errorf("Expected angle 85.2, got %f", events[0].Angle)
	}
	if events[2].FrameSeq != 20 {
		t.Errorf("Expected frame_seq 20, got %d", events[2].FrameSeq)
	}
}

func TestRepEventRequiresSession(t *testing.T) {
	db := openTestDB(t)

	ev := &RepEvent{
		SessionID:   "ses_nope",
		SlotHandle:  "slot_a",
		RepNumber:   1,
		Angle:       85,
		CountedAtNs: time.Now().UnixNano(),
	}
	if err := db.InsertRepEvent(ev); err == nil {
		t.Error("Expected foreign key violation for unknown session")
	}
}

func TestListRepEventsEmptySession(t *testing.T) {
	db := openTestDB(t)

	sess := createTestSession(t, db, "squat", time.Now().UnixNano())
	events, err := db.ListRepEvents(sess.SessionID)
	if err != nil {
		t.Fatalf("ListRepEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}

func TestSummaryUpsertAndGet(t *testing.T) {
	db := openTestDB(t)

	sess := createTestSession(t, db, "pushup", time.Now().UnixNano())

	sum := &SessionSummary{
		SessionID:     sess.SessionID,
		TotalReps:     12,
		SlotsUsed:     2,
		DurationSecs:  61.5,
		RepsPerMinute: 11.7,
		P50RepSecs:    floatPtr(4.2),
		P95RepSecs:    floatPtr(7.9),
		MinAngle:      floatPtr(71.0),
		MaxAngle:      floatPtr(169.5),
		ComputedAtNs:  time.Now().UnixNano(),
	}
	if err := db.UpsertSummary(sum); err != nil {
		t.Fatalf("UpsertSummary failed: %v", err)
	}

	got, err := db.GetSummary(sess.SessionID)
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got.TotalReps != 12 || got.SlotsUsed != 2 {
		t.Errorf("Summary counts did not round-trip: %+v", got)
	}
	if got.P50RepSecs == nil || *got.P50RepSecs != 4.2 {
		t.Errorf("Expected p50 4.2, got %v", got.P50RepSecs)
	}
	if got.MaxAngle == nil || *got.MaxAngle != 169.5 {
		t.Errorf("Expected max angle 169.5, got %v", got.MaxAngle)
	}

	// Upsert replaces the earlier rollup.
	sum.TotalReps = 13
	sum.P95RepSecs = nil
	if err := db.UpsertSummary(sum); err != nil {
		t.Fatalf("Second UpsertSummary failed: %v", err)
	}

	got, err = db.GetSummary(sess.SessionID)
	if err != nil {
		t.Fatalf("GetSummary after update failed: %v", err)
	}
	if got.TotalReps != 13 {
		t.Errorf("Expected updated total 13, got %d", got.TotalReps)
	}
	if got.P95RepSecs != nil {
		t.Errorf("Expected cleared p95, got %v", *got.P95RepSecs)
	}
}

func TestGetSummaryNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetSummary("ses_does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSeededProfiles(t *testing.T) {
	db := openTestDB(t)

	profiles, err := db.ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if len(profiles) != 4 {
		t.Fatalf("Expected 4 seeded profiles, got %d", len(profiles))
	}

	// Ordered by name
	wantNames := []string{"abworkout", "pullup", "pushup", "squat"}
	for i, want := range wantNames {
		if profiles[i].Name != want {
			t.Errorf("Expected profile %d to be %s, got %s", i, want, profiles[i].Name)
		}
	}

	pushup, err := db.GetProfile("pushup")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if pushup.Joints != [3]int{6, 8, 10} {
		t.Errorf("Expected pushup joints [6 8 10], got %v", pushup.Joints)
	}
	if pushup.UpAngle != 145.0 || pushup.DownAngle != 90.0 {
		t.Errorf("Expected default thresholds 145/90, got %f/%f", pushup.UpAngle, pushup.DownAngle)
	}

	squat, err := db.GetProfile("squat")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if squat.Joints != [3]int{12, 14, 16} {
		t.Errorf("Expected squat joints [12 14 16], got %v", squat.Joints)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetProfile("handstand")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpsertProfile(t *testing.T) {
	db := openTestDB(t)

	p := &ExerciseProfile{
		Name:        "wide-pushup",
		Exercise:    "pushup",
		Joints:      [3]int{5, 7, 9},
		UpAngle:     150,
		DownAngle:   85,
		Description: "Left arm variant",
	}
	if err := db.UpsertProfile(p); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	if p.UpdatedAtNs == 0 {
		t.Error("Expected UpsertProfile to stamp updated_at_ns")
	}

	got, err := db.GetProfile("wide-pushup")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.Joints != [3]int{5, 7, 9} || got.UpAngle != 150 {
		t.Errorf("Profile did not round-trip: %+v", got)
	}

	// Updating an existing preset overwrites its tuning.
	p.DownAngle = 80
	if err := db.UpsertProfile(p); err != nil {
		t.Fatalf("Second UpsertProfile failed: %v", err)
	}
	got, err = db.GetProfile("wide-pushup")
	if err != nil {
		t.Fatalf("GetProfile after update failed: %v", err)
	}
	if got.DownAngle != 80 {
		t.Errorf("Expected updated down angle 80, got %f", got.DownAngle)
	}

	profiles, err := db.ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if len(profiles) != 5 {
		t.Errorf("Expected 5 profiles after insert, got %d", len(profiles))
	}
}

func TestUpsertProfileRequiresName(t *testing.T) {
	db := openTestDB(t)

	err := db.UpsertProfile(&ExerciseProfile{Exercise: "pushup"})
	if err == nil {
		t.Error("Expected error for empty profile name")
	}
}
