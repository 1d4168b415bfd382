// Package monitor serves the debug charting surface: an in-memory
// sample recorder fed by the pipeline, go-echarts HTML charts, a gonum
// PNG plotter, and the pipeline stats endpoint.
package monitor

import (
	"sync"

	"github.com/gymsight/repcount/internal/workout"
)

// DefaultCapacity is the per-slot sample window. At 30 frames/sec this
// holds a bit over a minute of motion per slot.
const DefaultCapacity = 2048

// SamplePoint is one slot's state at one frame.
type SamplePoint struct {
	FrameSeq uint64
	TsNs     int64
	Angle    float64
	Stage    workout.Stage
	Count    int
}

// SlotSeries is one slot's recent sample window.
type SlotSeries struct {
	Handle  string
	Index   int
	Samples []SamplePoint
}

// Recorder keeps a bounded window of recent per-slot samples for the
// chart handlers. It implements the pipeline's Sampler.
type Recorder struct {
	mu       sync.Mutex
	capacity int

	// samples is keyed by slot handle; order preserves slot index order
	// for stable chart legends.
	samples map[string][]SamplePoint
	order   []string
	index   map[string]int
}

// NewRecorder creates a recorder keeping up to capacity samples per
// slot. A non-positive capacity uses DefaultCapacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		capacity: capacity,
		samples:  make(map[string][]SamplePoint),
		index:    make(map[string]int),
	}
}

// Sample records one frame's slot snapshots.
func (r *Recorder) Sample(frameSeq uint64, tsNs int64, slots []workout.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range slots {
		if _, seen := r.index[s.Handle]; !seen {
			r.order = append(r.order, s.Handle)
			r.index[s.Handle] = s.Index
		}
		window := append(r.samples[s.Handle], SamplePoint{
			FrameSeq: frameSeq,
			TsNs:     tsNs,
			Angle:    s.Angle,
			Stage:    s.Stage,
			Count:    s.Count,
		})
		if len(window) > r.capacity {
			window = window[len(window)-r.capacity:]
		}
		r.samples[s.Handle] = window
	}
}

// Series returns a copy of every slot's sample window in slot order.
func (r *Recorder) Series() []SlotSeries {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SlotSeries, 0, len(r.order))
	for _, handle := range r.order {
		out = append(out, SlotSeries{
			Handle:  handle,
			Index:   r.index[handle],
			Samples: append([]SamplePoint(nil), r.samples[handle]...),
		})
	}
	return out
}

// SampleCount returns the total number of samples currently held.
func (r *Recorder) SampleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, window := range r.samples {
		count += len(window)
	}
	return count
}
