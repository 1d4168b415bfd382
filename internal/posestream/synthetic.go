package posestream

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/gymsight/repcount/internal/monitoring"
	"github.com/gymsight/repcount/internal/pose"
	"github.com/gymsight/repcount/internal/timeutil"
)

// SyntheticSource generates synthetic pose frames for testing and demos.
// Each person's tracked joint sweeps sinusoidally between the configured
// angle extremes, so the counter sees clean exercise cycles without any
// camera or worker attached.
type SyntheticSource struct {
	frameID  atomic.Uint64
	cameraID string
	joints   [3]int

	// Configuration
	People      int           // people per frame
	FrameRate   float64       // frames per second
	MinAngle    float64       // degrees at the bottom of the sweep
	MaxAngle    float64       // degrees at the top of the sweep
	CyclePeriod time.Duration // one full min-max-min sweep

	clock  timeutil.Clock
	frames chan pose.Frame
}

// NewSyntheticSource creates a new synthetic frame generator. The joint
// triple is the one the counter is configured to track, so generated
// frames encode the target angle exactly where it will be measured.
func NewSyntheticSource(cameraID string, joints [3]int) *SyntheticSource {
	return &SyntheticSource{
		cameraID:    cameraID,
		joints:      joints,
		People:      2,
		FrameRate:   15.0,
		MinAngle:    70.0,
		MaxAngle:    170.0,
		CyclePeriod: 4 * time.Second,
		clock:       timeutil.RealClock{},
		frames:      make(chan pose.Frame),
	}
}

// SetClock replaces the clock, for tests.
func (s *SyntheticSource) SetClock(c timeutil.Clock) {
	s.clock = c
}

// Frames returns the channel generated frames are delivered on.
func (s *SyntheticSource) Frames() <-chan pose.Frame {
	return s.frames
}

// Name identifies the source in logs and session rows.
func (s *SyntheticSource) Name() string {
	return "synthetic"
}

// NextFrame generates the next synthetic frame. Angles derive from the
// frame counter rather than the wall clock, so sequences are deterministic.
func (s *SyntheticSource) NextFrame() pose.Frame {
	seq := s.frameID.Add(1)
	elapsed := float64(seq-1) / s.FrameRate

	people := make([]pose.KeypointSet, s.People)
	for i := range people {
		people[i] = s.buildPerson(i, s.angleAt(i, elapsed))
	}

	return pose.Frame{
		Seq:            seq,
		TimestampNanos: s.clock.Now().UnixNano(),
		CameraID:       s.cameraID,
		People:         people,
	}
}

// angleAt returns person i's joint angle after elapsed seconds. People are
// phase-shifted so multi-person frames do not rep in lockstep.
func (s *SyntheticSource) angleAt(person int, elapsed float64) float64 {
	mid := (s.MinAngle + s.MaxAngle) / 2
	amp := (s.MaxAngle - s.MinAngle) / 2
	phase := 2 * math.Pi * float64(person) / float64(s.People)
	return mid + amp*math.Sin(2*math.Pi*elapsed/s.CyclePeriod.Seconds()+phase)
}

// buildPerson lays out a rough standing figure on a 640x480 canvas and then
// poses the tracked joint triple to measure exactly angleDeg.
func (s *SyntheticSource) buildPerson(person int, angleDeg float64) pose.KeypointSet {
	offsetX := 120 + float64(person)*100

	// Head to ankles, top to bottom.
	layout := [pose.NumKeypoints][2]float64{
		pose.Nose:          {0, 60},
		pose.LeftEye:       {-6, 55},
		pose.RightEye:      {6, 55},
		pose.LeftEar:       {-12, 58},
		pose.RightEar:      {12, 58},
		pose.LeftShoulder:  {-25, 100},
		pose.RightShoulder: {25, 100},
		pose.LeftElbow:     {-35, 150},
		pose.RightElbow:    {35, 150},
		pose.LeftWrist:     {-40, 200},
		pose.RightWrist:    {40, 200},
		pose.LeftHip:       {-18, 220},
		pose.RightHip:      {18, 220},
		pose.LeftKnee:      {-20, 310},
		pose.RightKnee:     {20, 310},
		pose.LeftAnkle:     {-22, 400},
		pose.RightAnkle:    {22, 400},
	}

	ks := make(pose.KeypointSet, pose.NumKeypoints)
	for i, p := range layout {
		ks[i] = pose.Point{X: offsetX + p[0], Y: p[1], Confidence: 0.95}
	}

	// Re-pose the tracked triple around its middle point so the measured
	// angle is exact.
	b := ks[s.joints[1]]
	rad := angleDeg * math.Pi / 180.0
	ks[s.joints[0]] = pose.Point{X: b.X + 50, Y: b.Y, Confidence: 0.99}
	ks[s.joints[2]] = pose.Point{X: b.X + 50*math.Cos(rad), Y: b.Y + 50*math.Sin(rad), Confidence: 0.99}
	return ks
}

// Run generates frames at the configured rate until ctx ends.
func (s *SyntheticSource) Run(ctx context.Context) error {
	defer close(s.frames)

	interval := time.Duration(float64(time.Second) / s.FrameRate)
	monitoring.Logf("Synthetic pose source: %d people at %.1f fps, %.0f-%.0f degrees over %v",
		s.People, s.FrameRate, s.MinAngle, s.MaxAngle, s.CyclePeriod)

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := deliver(ctx, s.frames, s.NextFrame()); err != nil {
				return err
			}
		}
	}
}
