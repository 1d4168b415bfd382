package posestream

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/gymsight/repcount/internal/monitoring"
	"github.com/gymsight/repcount/internal/pose"
	"github.com/gymsight/repcount/internal/poselog"
	"github.com/gymsight/repcount/internal/timeutil"
)

// ReplayOptions configures a ReplaySource. The zero value replays with the
// original inter-frame pacing at 1x on the real clock.
type ReplayOptions struct {
	// Speed scales replay pacing; 2.0 replays twice as fast. Zero means 1x.
	Speed float64

	// NoPacing replays as fast as the consumer accepts frames.
	NoPacing bool

	// Clock is injected for pacing tests. Nil means the real clock.
	Clock timeutil.Clock
}

// ReplaySource replays a recorded poselog with its original timing.
type ReplaySource struct {
	path   string
	speed  float64
	pace   bool
	clock  timeutil.Clock
	frames chan pose.Frame
}

// NewReplaySource creates a source that replays the poselog at path.
func NewReplaySource(path string, opts ReplayOptions) *ReplaySource {
	speed := opts.Speed
	if speed <= 0 {
		speed = 1.0
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	return &ReplaySource{
		path:   path,
		speed:  speed,
		pace:   !opts.NoPacing,
		clock:  clock,
		frames: make(chan pose.Frame),
	}
}

// Frames returns the channel replayed frames are delivered on.
func (s *ReplaySource) Frames() <-chan pose.Frame {
	return s.frames
}

// Name identifies the source in logs and session rows.
func (s *ReplaySource) Name() string {
	return fmt.Sprintf("replay:%s", filepath.Base(s.path))
}

// Run replays the log until it is exhausted or ctx ends.
func (s *ReplaySource) Run(ctx context.Context) error {
	defer close(s.frames)

	r, err := poselog.OpenReader(s.path)
	if err != nil {
		return err
	}
	defer r.Close()

	hdr := r.Header()
	monitoring.Logf("Replaying %s (camera %q, exercise %q) at %.2gx",
		s.path, hdr.CameraID, hdr.Exercise, s.speed)

	var (
		count  uint64
		prevTS int64
		start  = s.clock.Now()
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, err := r.Next()
		if err == io.EOF {
			monitoring.Logf("Replay complete: %d frames in %v", count, s.clock.Since(start))
			return nil
		}
		if err != nil {
			return err
		}

		if s.pace && count > 0 && f.TimestampNanos > prevTS {
			delay := time.Duration(float64(f.TimestampNanos-prevTS) / s.speed)
			s.clock.Sleep(delay)
		}
		prevTS = f.TimestampNanos

		if err := deliver(ctx, s.frames, f); err != nil {
			return err
		}
		count++
	}
}
