package pipeline

import (
	"sync"

	"github.com/gymsight/repcount/internal/workout"
)

// LiveState is the last-known counting state served by /api/live.
type LiveState struct {
	SessionID   string             `json:"session_id,omitempty"`
	SourceName  string             `json:"source_name,omitempty"`
	CameraID    string             `json:"camera_id,omitempty"`
	Exercise    string             `json:"exercise"`
	Running     bool               `json:"running"`
	FrameSeq    uint64             `json:"frame_seq"`
	UpdatedAtNs int64              `json:"updated_at_ns"`
	Slots       []workout.Snapshot `json:"slots"`
}

// Live publishes the current slot snapshots to readers outside the
// pipeline goroutine. The runtime writes after every frame; HTTP
// handlers read whenever a client asks.
type Live struct {
	mu    sync.RWMutex
	state LiveState
}

// NewLive returns an empty live view.
func NewLive() *Live {
	return &Live{}
}

// SetSession records the session identity at run start.
func (l *Live) SetSession(sessionID, sourceName, cameraID, exercise string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.SessionID = sessionID
	l.state.SourceName = sourceName
	l.state.CameraID = cameraID
	l.state.Exercise = exercise
	l.state.Running = true
}

// Update publishes one frame's slot snapshots.
func (l *Live) Update(frameSeq uint64, tsNs int64, slots []workout.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.FrameSeq = frameSeq
	l.state.UpdatedAtNs = tsNs
	l.state.Slots = slots
}

// Finish marks the session as no longer running, keeping the final
// snapshots visible.
func (l *Live) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Running = false
}

// Get returns a copy of the current state. The slot slice is shared
// with the last Update call but its elements are value snapshots, so
// readers cannot mutate counter state through it.
func (l *Live) Get() LiveState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}
