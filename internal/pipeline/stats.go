package pipeline

import (
	"sync"
	"time"
)

// maxIntervalSamples bounds the rep-interval window kept for the
// percentile endpoint. Old samples fall off the front.
const maxIntervalSamples = 4096

// Stats accumulates pipeline counters for the debug surface.
type Stats struct {
	mu sync.Mutex

	startedAt    time.Time
	frames       int64
	people       int64
	reps         int64
	frameErrors  int64
	storeErrors  int64
	recordErrors int64

	// lastRepNs tracks, per slot handle, when that slot last counted,
	// so successive reps yield an interval sample.
	lastRepNs    map[string]int64
	intervalSecs []float64
}

// StatsSnapshot is the JSON payload served by /debug/pipeline/stats.
type StatsSnapshot struct {
	UptimeSecs   float64   `json:"uptime_secs"`
	Frames       int64     `json:"frames"`
	People       int64     `json:"people"`
	Reps         int64     `json:"reps"`
	FrameErrors  int64     `json:"frame_errors"`
	StoreErrors  int64     `json:"store_errors"`
	RecordErrors int64     `json:"record_errors"`
	FramesPerSec float64   `json:"frames_per_sec"`
	IntervalSecs []float64 `json:"-"`
}

// NewStats returns a zeroed counter set starting its uptime now.
func NewStats() *Stats {
	return &Stats{
		startedAt: time.Now(),
		lastRepNs: make(map[string]int64),
	}
}

// AddFrame records one consumed frame and its detection count.
func (s *Stats) AddFrame(people int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.people += int64(people)
}

// AddRep records one count increment for a slot, deriving an inter-rep
// interval when the slot has counted before.
func (s *Stats) AddRep(slotHandle string, countedAtNs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reps++
	if prev, ok := s.lastRepNs[slotHandle]; ok && countedAtNs > prev {
		s.intervalSecs = append(s.intervalSecs, float64(countedAtNs-prev)/1e9)
		if len(s.intervalSecs) > maxIntervalSamples {
			s.intervalSecs = s.intervalSecs[len(s.intervalSecs)-maxIntervalSamples:]
		}
	}
	s.lastRepNs[slotHandle] = countedAtNs
}

// AddFrameError records a frame the counter rejected.
func (s *Stats) AddFrameError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameErrors++
}

// AddStoreError records a failed database write.
func (s *Stats) AddStoreError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeErrors++
}

// AddRecordError records a failed poselog write.
func (s *Stats) AddRecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordErrors++
}

// Snapshot returns the current counters plus a copy of the rep-interval
// window for percentile math.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	uptime := time.Since(s.startedAt).Seconds()
	snap := StatsSnapshot{
		UptimeSecs:   uptime,
		Frames:       s.frames,
		People:       s.people,
		Reps:         s.reps,
		FrameErrors:  s.frameErrors,
		StoreErrors:  s.storeErrors,
		RecordErrors: s.recordErrors,
	}
	if uptime > 0 {
		snap.FramesPerSec = float64(s.frames) / uptime
	}
	snap.IntervalSecs = append([]float64(nil), s.intervalSecs...)
	return snap
}
