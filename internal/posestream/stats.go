package posestream

import (
	"sync"
	"time"

	"github.com/gymsight/repcount/internal/monitoring"
)

// StatsSink receives per-frame ingest statistics from a source.
type StatsSink interface {
	AddFrame(bytes int)
	AddPeople(count int)
	AddDropped()
	LogStats()
}

// noopStats is a StatsSink implementation that does nothing. It is used as
// a safe default when no stats collector is provided.
type noopStats struct{}

func (noopStats) AddFrame(bytes int)  {}
func (noopStats) AddPeople(count int) {}
func (noopStats) AddDropped()         {}
func (noopStats) LogStats()           {}

// StreamStats tracks ingest statistics with thread-safe operations.
type StreamStats struct {
	mu           sync.Mutex
	frameCount   int64
	byteCount    int64
	peopleCount  int64
	droppedCount int64
	lastReset    time.Time
}

// NewStreamStats creates a new StreamStats instance.
func NewStreamStats() *StreamStats {
	return &StreamStats{lastReset: time.Now()}
}

// AddFrame increments frame count and byte count.
func (s *StreamStats) AddFrame(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCount++
	s.byteCount += int64(bytes)
}

// AddPeople increments the detection count.
func (s *StreamStats) AddPeople(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peopleCount += int64(count)
}

// AddDropped increments the malformed/dropped frame count.
func (s *StreamStats) AddDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.droppedCount++
}

// GetAndReset returns current stats and resets counters.
func (s *StreamStats) GetAndReset() (frames, bytes, people, dropped int64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	duration = now.Sub(s.lastReset)
	frames = s.frameCount
	bytes = s.byteCount
	people = s.peopleCount
	dropped = s.droppedCount

	s.frameCount = 0
	s.byteCount = 0
	s.peopleCount = 0
	s.droppedCount = 0
	s.lastReset = now

	return
}

// LogStats logs per-second ingest rates since the last reset.
func (s *StreamStats) LogStats() {
	frames, bytes, people, dropped, duration := s.GetAndReset()
	if frames == 0 && dropped == 0 {
		return
	}

	secs := duration.Seconds()
	if secs <= 0 {
		secs = 1
	}

	if dropped > 0 {
		monitoring.Logf("Stream stats (/sec): %.1f frames, %.1f KB, %.1f people, %d dropped",
			float64(frames)/secs, float64(bytes)/secs/1024, float64(people)/secs, dropped)
		return
	}
	monitoring.Logf("Stream stats (/sec): %.1f frames, %.1f KB, %.1f people",
		float64(frames)/secs, float64(bytes)/secs/1024, float64(people)/secs)
}
