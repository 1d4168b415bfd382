package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound reports a lookup for a row that does not exist. Callers
// branch on it with errors.Is to turn missing ids into 404s.
var ErrNotFound = errors.New("not found")

// Session is one counting run from source start to source end.
type Session struct {
	SessionID   string `json:"session_id"`
	CameraID    string `json:"camera_id,omitempty"`
	Exercise    string `json:"exercise"`
	SourceName  string `json:"source_name,omitempty"`
	StartedAtNs int64  `json:"started_at_ns"`
	EndedAtNs   *int64 `json:"ended_at_ns,omitempty"`
}

// RepEvent records one count increment: which slot advanced, its new rep
// number, and the angle and frame that triggered it.
type RepEvent struct {
	EventID     int64   `json:"event_id"`
	SessionID   string  `json:"session_id"`
	SlotHandle  string  `json:"slot_handle"`
	SlotIndex   int     `json:"slot_index"`
	RepNumber   int     `json:"rep_number"`
	Angle       float64 `json:"angle"`
	FrameSeq    uint64  `json:"frame_seq"`
	CountedAtNs int64   `json:"counted_at_ns"`
}

// SessionSummary is the per-session rollup computed after the session
// ends. Percentile and angle fields are nil until enough events exist to
// derive them.
type SessionSummary struct {
	SessionID     string   `json:"session_id"`
	TotalReps     int      `json:"total_reps"`
	SlotsUsed     int      `json:"slots_used"`
	DurationSecs  float64  `json:"duration_secs"`
	RepsPerMinute float64  `json:"reps_per_minute"`
	P50RepSecs    *float64 `json:"p50_rep_secs,omitempty"`
	P95RepSecs    *float64 `json:"p95_rep_secs,omitempty"`
	MinAngle      *float64 `json:"min_angle,omitempty"`
	MaxAngle      *float64 `json:"max_angle,omitempty"`
	ComputedAtNs  int64    `json:"computed_at_ns"`
}

// ExerciseProfile is a named tuning preset: the joint triple and
// thresholds to count a given exercise with.
type ExerciseProfile struct {
	Name        string  `json:"name"`
	Exercise    string  `json:"exercise"`
	Joints      [3]int  `json:"joints"`
	UpAngle     float64 `json:"up_angle"`
	DownAngle   float64 `json:"down_angle"`
	Description string  `json:"description,omitempty"`
	UpdatedAtNs int64   `json:"updated_at_ns"`
}

// NewSessionID mints a session identifier.
func NewSessionID() string {
	return "ses_" + uuid.NewString()
}

// CreateSession inserts a new session row. A missing SessionID is filled
// with a fresh id and a zero StartedAtNs with the current time.
func (db *DB) CreateSession(sess *Session) error {
	if sess.SessionID == "" {
		sess.SessionID = NewSessionID()
	}
	if sess.StartedAtNs == 0 {
		sess.StartedAtNs = time.Now().UnixNano()
	}

	query := `
		INSERT INTO sessions (session_id, camera_id, exercise, source_name, started_at_ns, ended_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		sess.SessionID,
		sess.CameraID,
		sess.Exercise,
		sess.SourceName,
		sess.StartedAtNs,
		nullInt64(sess.EndedAtNs),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(sessionID string, endedAtNs int64) error {
	result, err := db.Exec(`UPDATE sessions SET ended_at_ns = ? WHERE session_id = ?`, endedAtNs, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}

	return nil
}

// GetSession retrieves a session by id.
func (db *DB) GetSession(sessionID string) (*Session, error) {
	query := `
		SELECT session_id, camera_id, exercise, source_name, started_at_ns, ended_at_ns
		FROM sessions
		WHERE session_id = ?
	`

	var sess Session
	var endedAtNs sql.NullInt64

	err := db.QueryRow(query, sessionID).Scan(
		&sess.SessionID,
		&sess.CameraID,
		&sess.Exercise,
		&sess.SourceName,
		&sess.StartedAtNs,
		&endedAtNs,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if endedAtNs.Valid {
		v := endedAtNs.Int64
		sess.EndedAtNs = &v
	}

	return &sess, nil
}

// ListSessions retrieves the most recently started sessions, newest
// first. A non-positive limit falls back to 50.
func (db *DB) ListSessions(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT session_id, camera_id, exercise, source_name, started_at_ns, ended_at_ns
		FROM sessions
		ORDER BY started_at_ns DESC
		LIMIT ?
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var endedAtNs sql.NullInt64

		if err := rows.Scan(
			&sess.SessionID,
			&sess.CameraID,
			&sess.Exercise,
			&sess.SourceName,
			&sess.StartedAtNs,
			&endedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		if endedAtNs.Valid {
			v := endedAtNs.Int64
			sess.EndedAtNs = &v
		}

		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions rows: %w", err)
	}

	return sessions, nil
}

// InsertRepEvent records one count increment. A zero CountedAtNs is
// filled with the current time. The event's assigned id is written back.
func (db *DB) InsertRepEvent(ev *RepEvent) error {
	if ev.CountedAtNs == 0 {
		ev.CountedAtNs = time.Now().UnixNano()
	}

	query := `
		INSERT INTO rep_events (session_id, slot_handle, slot_index, rep_number, angle, frame_seq, counted_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.Exec(query,
		ev.SessionID,
		ev.SlotHandle,
		ev.SlotIndex,
		ev.RepNumber,
		ev.Angle,
		int64(ev.FrameSeq),
		ev.CountedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert rep event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("rep event id: %w", err)
	}
	ev.EventID = id

	return nil
}

// ListRepEvents retrieves a session's rep events in counting order.
func (db *DB) ListRepEvents(sessionID string) ([]*RepEvent, error) {
	query := `
		SELECT event_id, session_id, slot_handle, slot_index, rep_number, angle, frame_seq, counted_at_ns
		FROM rep_events
		WHERE session_id = ?
		ORDER BY counted_at_ns, event_id
	`

	rows, err := db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list rep events: %w", err)
	}
	defer rows.Close()

	var events []*RepEvent
	for rows.Next() {
		var ev RepEvent
		var frameSeq int64

		if err := rows.Scan(
			&ev.EventID,
			&ev.SessionID,
			&ev.SlotHandle,
			&ev.SlotIndex,
			&ev.RepNumber,
			&ev.Angle,
			&frameSeq,
			&ev.CountedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan rep event row: %w", err)
		}

		ev.FrameSeq = uint64(frameSeq)
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rep events rows: %w", err)
	}

	return events, nil
}

// UpsertSummary inserts or replaces a session's rollup.
func (db *DB) UpsertSummary(sum *SessionSummary) error {
	query := `
		INSERT INTO session_summaries (
			session_id, total_reps, slots_used, duration_secs, reps_per_minute,
			p50_rep_secs, p95_rep_secs, min_angle, max_angle, computed_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			total_reps=excluded.total_reps,
			slots_used=excluded.slots_used,
			duration_secs=excluded.duration_secs,
			reps_per_minute=excluded.reps_per_minute,
			p50_rep_secs=excluded.p50_rep_secs,
			p95_rep_secs=excluded.p95_rep_secs,
			min_angle=excluded.min_angle,
			max_angle=excluded.max_angle,
			computed_at_ns=excluded.computed_at_ns
	`

	_, err := db.Exec(query,
		sum.SessionID,
		sum.TotalReps,
		sum.SlotsUsed,
		sum.DurationSecs,
		sum.RepsPerMinute,
		nullFloat64(sum.P50RepSecs),
		nullFloat64(sum.P95RepSecs),
		nullFloat64(sum.MinAngle),
		nullFloat64(sum.MaxAngle),
		sum.ComputedAtNs,
	)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}

	return nil
}

// GetSummary retrieves a session's rollup.
func (db *DB) GetSummary(sessionID string) (*SessionSummary, error) {
	query := `
		SELECT session_id, total_reps, slots_used, duration_secs, reps_per_minute,
		       p50_rep_secs, p95_rep_secs, min_angle, max_angle, computed_at_ns
		FROM session_summaries
		WHERE session_id = ?
	`

	var sum SessionSummary
	var p50, p95, minAngle, maxAngle sql.NullFloat64

	err := db.QueryRow(query, sessionID).Scan(
		&sum.SessionID,
		&sum.TotalReps,
		&sum.SlotsUsed,
		&sum.DurationSecs,
		&sum.RepsPerMinute,
		&p50,
		&p95,
		&minAngle,
		&maxAngle,
		&sum.ComputedAtNs,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("summary for session %q: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}

	if p50.Valid {
		v := p50.Float64
		sum.P50RepSecs = &v
	}
	if p95.Valid {
		v := p95.Float64
		sum.P95RepSecs = &v
	}
	if minAngle.Valid {
		v := minAngle.Float64
		sum.MinAngle = &v
	}
	if maxAngle.Valid {
		v := maxAngle.Float64
		sum.MaxAngle = &v
	}

	return &sum, nil
}

// ListProfiles retrieves all exercise profiles ordered by name.
func (db *DB) ListProfiles() ([]*ExerciseProfile, error) {
	query := `
		SELECT name, exercise, joint_a, joint_b, joint_c, up_angle, down_angle, description, updated_at_ns
		FROM exercise_profiles
		ORDER BY name
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*ExerciseProfile
	for rows.Next() {
		var p ExerciseProfile
		if err := rows.Scan(
			&p.Name,
			&p.Exercise,
			&p.Joints[0],
			&p.Joints[1],
			&p.Joints[2],
			&p.UpAngle,
			&p.DownAngle,
			&p.Description,
			&p.UpdatedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		profiles = append(profiles, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles rows: %w", err)
	}

	return profiles, nil
}

// GetProfile retrieves one exercise profile by name.
func (db *DB) GetProfile(name string) (*ExerciseProfile, error) {
	query := `
		SELECT name, exercise, joint_a, joint_b, joint_c, up_angle, down_angle, description, updated_at_ns
		FROM exercise_profiles
		WHERE name = ?
	`

	var p ExerciseProfile
	err := db.QueryRow(query, name).Scan(
		&p.Name,
		&p.Exercise,
		&p.Joints[0],
		&p.Joints[1],
		&p.Joints[2],
		&p.UpAngle,
		&p.DownAngle,
		&p.Description,
		&p.UpdatedAtNs,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

// UpsertProfile inserts or updates a tuning preset and stamps its
// modification time.
func (db *DB) UpsertProfile(p *ExerciseProfile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name must not be empty")
	}
	p.UpdatedAtNs = time.Now().UnixNano()

	query := `
		INSERT INTO exercise_profiles (name, exercise, joint_a, joint_b, joint_c, up_angle, down_angle, description, updated_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			exercise=excluded.exercise,
			joint_a=excluded.joint_a,
			joint_b=excluded.joint_b,
			joint_c=excluded.joint_c,
			up_angle=excluded.up_angle,
			down_angle=excluded.down_angle,
			description=excluded.description,
			updated_at_ns=excluded.updated_at_ns
	`

	_, err := db.Exec(query,
		p.Name,
		p.Exercise,
		p.Joints[0],
		p.Joints[1],
		p.Joints[2],
		p.UpAngle,
		p.DownAngle,
		p.Description,
		p.UpdatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	return nil
}

// Helper functions for nullable values

func nullFloat64(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
