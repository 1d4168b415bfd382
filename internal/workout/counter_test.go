package workout

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymsight/repcount/internal/pose"
)

var armJoints = [3]int{pose.RightShoulder, pose.RightElbow, pose.RightWrist}

// personAt builds a full keypoint set whose right-arm triple measures the
// given angle in degrees.
func personAt(deg float64) pose.KeypointSet {
	ks := make(pose.KeypointSet, pose.NumKeypoints)
	for i := range ks {
		ks[i] = pose.Point{X: 200, Y: 200, Confidence: 0.9}
	}
	rad := deg * math.Pi / 180
	ks[pose.RightElbow] = pose.Point{X: 0, Y: 0, Confidence: 0.9}
	ks[pose.RightShoulder] = pose.Point{X: 80, Y: 0, Confidence: 0.9}
	ks[pose.RightWrist] = pose.Point{X: 80 * math.Cos(rad), Y: 80 * math.Sin(rad), Confidence: 0.9}
	return ks
}

func batch(angles ...float64) []pose.KeypointSet {
	out := make([]pose.KeypointSet, len(angles))
	for i, a := range angles {
		out[i] = personAt(a)
	}
	return out
}

func pushupCounter() *Counter {
	return NewCounter(NewPolicy(ExercisePushup, armJoints, 0, 0), OrderReversed)
}

func TestUpdatePushupTrace(t *testing.T) {
	t.Parallel()

	c := pushupCounter()

	angles := []float64{170, 170, 80, 80, 170}
	wantStages := []Stage{StageUp, StageUp, StageDown, StageDown, StageUp}
	wantCounts := []int{0, 0, 1, 1, 1}

	for i, a := range angles {
		snaps, err := c.Update(batch(a))
		require.NoError(t, err)
		require.Len(t, snaps, 1)
		assert.Equal(t, wantStages[i], snaps[0].Stage, "frame %d", i)
		assert.Equal(t, wantCounts[i], snaps[0].Count, "frame %d", i)
		assert.InDelta(t, a, snaps[0].Angle, 1e-9, "frame %d", i)
	}
}

func TestUpdateAscentSingleIncrementPerCycle(t *testing.T) {
	t.Parallel()

	c := NewCounter(NewPolicy(ExercisePullup, armJoints, 0, 0), OrderReversed)

	// One rise above the up threshold, one fall below the down threshold,
	// each phase held for several frames: exactly one count.
	angles := []float64{150, 150, 150, 80, 80, 80}
	wantCounts := []int{0, 0, 0, 1, 1, 1}
	wantStages := []Stage{StageDown, StageDown, StageDown, StageUp, StageUp, StageUp}

	for i, a := range angles {
		snaps, err := c.Update(batch(a))
		require.NoError(t, err)
		assert.Equal(t, wantCounts[i], snaps[0].Count, "frame %d", i)
		assert.Equal(t, wantStages[i], snaps[0].Stage, "frame %d", i)
	}

	// A second full cycle counts exactly once more.
	for _, a := range []float64{170, 170, 60} {
		_, err := c.Update(batch(a))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.TotalCount())
}

func TestUpdateIncompleteCycle(t *testing.T) {
	t.Parallel()

	c := pushupCounter()
	for _, a := range []float64{150, 160, 170, 100, 95} {
		_, err := c.Update(batch(a))
		require.NoError(t, err)
	}
	assert.Equal(t, 0, c.TotalCount())

	snaps := c.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, StageUp, snaps[0].Stage)
}

func TestUpdateSlotGrowthNeverShrinks(t *testing.T) {
	t.Parallel()

	c := pushupCounter()

	// Frame 0: two people, both extended.
	snaps, err := c.Update(batch(170, 170))
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	// Frame 1: one person drops; only slot 0 advances.
	snaps, err = c.Update(batch(80))
	require.NoError(t, err)
	require.Len(t, snaps, 2, "slot list must not shrink")
	assert.Equal(t, 1, snaps[0].Count)
	assert.Equal(t, StageDown, snaps[0].Stage)
	assert.Equal(t, StageUp, snaps[1].Stage, "absent slot keeps last state")
	assert.InDelta(t, 170, snaps[1].Angle, 1e-9)
	assert.Equal(t, 0, snaps[1].Count)

	// Frame 2: three people; list grows to 3. Reversed pairing sends the
	// last detection to slot 0.
	after2, err := c.Update(batch(80, 80, 170))
	require.NoError(t, err)
	require.Len(t, after2, 3)
	assert.Equal(t, StageUp, after2[0].Stage)
	assert.Equal(t, 1, after2[0].Count)
	assert.Equal(t, StageDown, after2[1].Stage)
	assert.Equal(t, 1, after2[1].Count)
	assert.Equal(t, StageUnknown, after2[2].Stage, "fresh slot below down threshold stays unarmed")
	assert.Equal(t, 0, after2[2].Count)

	// Frame 3: back to one person; slots 1 and 2 must retain frame-2 state
	// exactly.
	after3, err := c.Update(batch(170))
	require.NoError(t, err)
	require.Len(t, after3, 3)
	if diff := cmp.Diff(after2[1], after3[1]); diff != "" {
		t.Errorf("slot 1 state changed while absent (-frame2 +frame3):\n%s", diff)
	}
	if diff := cmp.Diff(after2[2], after3[2]); diff != "" {
		t.Errorf("slot 2 state changed while absent (-frame2 +frame3):\n%s", diff)
	}
	assert.Equal(t, 3, c.Len())
}

func TestUpdateEmptyInputIdempotent(t *testing.T) {
	t.Parallel()

	t.Run("fresh counter", func(t *testing.T) {
		c := pushupCounter()
		for i := 0; i < 3; i++ {
			snaps, err := c.Update(nil)
			require.NoError(t, err)
			assert.Empty(t, snaps)
		}
		assert.Equal(t, 0, c.Len())
	})

	t.Run("existing state untouched", func(t *testing.T) {
		c := pushupCounter()
		_, err := c.Update(batch(170, 170))
		require.NoError(t, err)
		_, err = c.Update(batch(80, 120))
		require.NoError(t, err)

		before := c.Snapshots()
		for i := 0; i < 5; i++ {
			snaps, err := c.Update([]pose.KeypointSet{})
			require.NoError(t, err)
			if diff := cmp.Diff(before, snaps); diff != "" {
				t.Fatalf("empty update %d mutated state (-before +after):\n%s", i, diff)
			}
		}
	})
}

func TestUpdateCountMonotonic(t *testing.T) {
	t.Parallel()

	c := NewCounter(NewPolicy(ExerciseSquat, armJoints, 0, 0), OrderReversed)
	rng := rand.New(rand.NewSource(7))

	prev := map[string]int{}
	for frame := 0; frame < 300; frame++ {
		people := rng.Intn(4) // 0..3 detections per frame
		angles := make([]float64, people)
		for i := range angles {
			angles[i] = 30 + rng.Float64()*150
		}
		snaps, err := c.Update(batch(angles...))
		require.NoError(t, err)

		for _, s := range snaps {
			if last, ok := prev[s.Handle]; ok {
				assert.GreaterOrEqual(t, s.Count, last, "frame %d slot %s", frame, s.Handle)
			}
			prev[s.Handle] = s.Count
		}
	}
}

func TestUpdateMalformedInput(t *testing.T) {
	t.Parallel()

	t.Run("NaN coordinates surface and leave state untouched", func(t *testing.T) {
		c := pushupCounter()
		_, err := c.Update(batch(170))
		require.NoError(t, err)
		before := c.Snapshots()

		bad := personAt(80)
		bad[pose.RightWrist].X = math.NaN()
		_, err = c.Update([]pose.KeypointSet{bad})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "detection 0")

		if diff := cmp.Diff(before, c.Snapshots()); diff != "" {
			t.Errorf("rejected frame mutated state:\n%s", diff)
		}
	})

	t.Run("short keypoint set surfaces", func(t *testing.T) {
		c := pushupCounter()
		_, err := c.Update([]pose.KeypointSet{{{X: 1, Y: 2}}})
		require.Error(t, err)
	})

	t.Run("error reports the offending detection", func(t *testing.T) {
		c := pushupCounter()
		bad := personAt(80)
		bad[pose.RightElbow].Y = math.Inf(-1)
		_, err := c.Update([]pose.KeypointSet{personAt(100), bad})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "detection 1")
	})
}

func TestUpdateUnknownExerciseNeverCounts(t *testing.T) {
	t.Parallel()

	c := NewCounter(NewPolicy(Exercise("burpee"), armJoints, 0, 0), OrderReversed)

	for _, a := range []float64{170, 80, 170, 80} {
		snaps, err := c.Update(batch(a))
		require.NoError(t, err)
		require.Len(t, snaps, 1)
		assert.InDelta(t, a, snaps[0].Angle, 1e-9, "angle still tracked")
		assert.Equal(t, StageUnknown, snaps[0].Stage)
		assert.Equal(t, 0, snaps[0].Count)
	}
}

func TestUpdateOrderModes(t *testing.T) {
	t.Parallel()

	// Two people at distinct mid-range angles; neither crosses a
	// threshold, so only the binding is observable.
	t.Run("reversed", func(t *testing.T) {
		c := pushupCounter()
		snaps, err := c.Update(batch(100, 60))
		require.NoError(t, err)
		assert.InDelta(t, 60, snaps[0].Angle, 1e-9)
		assert.InDelta(t, 100, snaps[1].Angle, 1e-9)
	})

	t.Run("natural", func(t *testing.T) {
		c := NewCounter(NewPolicy(ExercisePushup, armJoints, 0, 0), OrderNatural)
		snaps, err := c.Update(batch(100, 60))
		require.NoError(t, err)
		assert.InDelta(t, 100, snaps[0].Angle, 1e-9)
		assert.InDelta(t, 60, snaps[1].Angle, 1e-9)
	})
}

func TestSlotHandlesStable(t *testing.T) {
	t.Parallel()

	c := pushupCounter()
	first, err := c.Update(batch(100, 110))
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, s := range first {
		assert.Regexp(t, `^slot_[0-9a-f-]{36}$`, s.Handle)
		assert.False(t, seen[s.Handle], "handles must be unique")
		seen[s.Handle] = true
	}

	// Growth allocates new handles without disturbing existing ones.
	grown, err := c.Update(batch(100, 110, 120))
	require.NoError(t, err)
	require.Len(t, grown, 3)
	assert.Equal(t, first[0].Handle, grown[0].Handle)
	assert.Equal(t, first[1].Handle, grown[1].Handle)
	assert.False(t, seen[grown[2].Handle])
}

func TestSnapshotsConcurrentWithUpdates(t *testing.T) {
	t.Parallel()

	c := pushupCounter()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			angle := 170.0
			if i%2 == 1 {
				angle = 80.0
			}
			if _, err := c.Update(batch(angle)); err != nil {
				t.Errorf("update: %v", err)
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = c.Snapshots()
			_ = c.TotalCount()
		}
	}()

	wg.Wait()
	assert.Equal(t, 100, c.TotalCount())
}
