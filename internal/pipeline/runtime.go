// Package pipeline wires a frame source through the rep counter and
// fans the results out to persistence, the live API view, the monitor
// sampler, the poselog recorder, and the terminal HUD.
package pipeline

import (
	"context"
	"time"

	"github.com/gymsight/repcount/internal/db"
	"github.com/gymsight/repcount/internal/pose"
	"github.com/gymsight/repcount/internal/posestream"
	"github.com/gymsight/repcount/internal/workout"
)

// Store is the slice of the database surface the runtime writes to.
type Store interface {
	CreateSession(sess *db.Session) error
	EndSession(sessionID string, endedAtNs int64) error
	InsertRepEvent(ev *db.RepEvent) error
}

// FrameRecorder receives every consumed frame, typically a poselog
// writer capturing the session for later replay.
type FrameRecorder interface {
	WriteFrame(f pose.Frame) error
}

// Sampler receives per-frame slot snapshots for charting.
type Sampler interface {
	Sample(frameSeq uint64, tsNs int64, slots []workout.Snapshot)
}

// Renderer receives the live state after every frame. Renderers own
// their own refresh throttling.
type Renderer interface {
	Render(state LiveState)
}

// Runtime bundles one counting run's dependencies. Source, Counter and
// Live are required; the rest are optional sinks that are skipped when
// nil. Passing dependencies through the struct keeps wiring explicit
// and testing deterministic.
type Runtime struct {
	Source   posestream.Source
	Counter  *workout.Counter
	Live     *Live
	Stats    *Stats
	Store    Store
	Recorder FrameRecorder
	Monitor  Sampler
	HUD      Renderer
	CameraID string
}

// Run drives the source until it is exhausted or ctx ends, advancing
// the counter one frame at a time. A session row brackets the run when
// a store is configured. The source's error is returned after the
// session is closed out.
func (rt *Runtime) Run(ctx context.Context) error {
	if rt.Stats == nil {
		rt.Stats = NewStats()
	}

	policy := rt.Counter.Policy()
	sessionID := ""
	if rt.Store != nil {
		sess := &db.Session{
			CameraID:   rt.CameraID,
			Exercise:   string(policy.Exercise),
			SourceName: rt.Source.Name(),
		}
		if err := rt.Store.CreateSession(sess); err != nil {
			return err
		}
		sessionID = sess.SessionID
	}
	rt.Live.SetSession(sessionID, rt.Source.Name(), rt.CameraID, string(policy.Exercise))
	opsf("run started: source=%s exercise=%s order=%s session=%s",
		rt.Source.Name(), policy.Exercise, rt.Counter.Order(), sessionID)

	runErr := make(chan error, 1)
	go func() {
		runErr <- rt.Source.Run(ctx)
	}()

	// prevCounts detects increments by diffing each slot's count
	// against the previous frame, keyed by the slot's stable handle.
	prevCounts := make(map[string]int)

	for f := range rt.Source.Frames() {
		rt.consumeFrame(f, sessionID, prevCounts)
	}

	err := <-runErr

	endedAt := time.Now().UnixNano()
	if rt.Store != nil && sessionID != "" {
		if endErr := rt.Store.EndSession(sessionID, endedAt); endErr != nil {
			opsf("failed to end session %s: %v", sessionID, endErr)
		}
	}
	rt.Live.Finish()

	snap := rt.Stats.Snapshot()
	opsf("run finished: frames=%d reps=%d errors=%d session=%s err=%v",
		snap.Frames, snap.Reps, snap.FrameErrors, sessionID, err)
	return err
}

func (rt *Runtime) consumeFrame(f pose.Frame, sessionID string, prevCounts map[string]int) {
	rt.Stats.AddFrame(len(f.People))
	tracef("frame seq=%d people=%d", f.Seq, len(f.People))

	tsNs := f.TimestampNanos
	if tsNs == 0 {
		tsNs = time.Now().UnixNano()
	}

	snaps, err := rt.Counter.Update(f.People)
	if err != nil {
		// A malformed frame is rejected whole; slot state is untouched
		// and the next frame proceeds from the same state.
		rt.Stats.AddFrameError()
		opsf("frame seq=%d rejected: %v", f.Seq, err)
		return
	}

	for _, s := range snaps {
		prev := prevCounts[s.Handle]
		for rep := prev + 1; rep <= s.Count; rep++ {
			diagf("rep counted: slot=%d rep=%d angle=%.1f seq=%d", s.Index, rep, s.Angle, f.Seq)
			rt.Stats.AddRep(s.Handle, tsNs)
			if rt.Store != nil && sessionID != "" {
				ev := &db.RepEvent{
					SessionID:   sessionID,
					SlotHandle:  s.Handle,
					SlotIndex:   s.Index,
					RepNumber:   rep,
					Angle:       s.Angle,
					FrameSeq:    f.Seq,
					CountedAtNs: tsNs,
				}
				if err := rt.Store.InsertRepEvent(ev); err != nil {
					rt.Stats.AddStoreError()
					opsf("failed to insert rep event (slot=%d rep=%d): %v", s.Index, rep, err)
				}
			}
		}
		prevCounts[s.Handle] = s.Count
	}

	rt.Live.Update(f.Seq, tsNs, snaps)

	if rt.Monitor != nil {
		rt.Monitor.Sample(f.Seq, tsNs, snaps)
	}

	if rt.Recorder != nil {
		if err := rt.Recorder.WriteFrame(f); err != nil {
			rt.Stats.AddRecordError()
			opsf("failed to record frame seq=%d: %v", f.Seq, err)
		}
	}

	if rt.HUD != nil {
		rt.HUD.Render(rt.Live.Get())
	}
}
