// Package posestream provides pluggable sources of pose frames.
//
// A Source decodes frames from one transport (UDP, serial, a pose-worker
// subprocess, a recorded poselog, a pcap capture, or a synthetic generator)
// and delivers them on a channel until its context ends. All transports
// share the pose.Frame wire form.
package posestream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gymsight/repcount/internal/pose"
)

// MaxFrameBytes bounds one encoded frame. A frame with a dozen people is a
// few kilobytes; the cap also matches the UDP receive buffer.
const MaxFrameBytes = 64 * 1024

// MaxPeoplePerFrame bounds detections in one frame. Anything larger is a
// malformed or hostile payload, not a gym.
const MaxPeoplePerFrame = 64

// Source yields decoded pose frames until its context ends.
//
// Run owns the frames channel: it closes the channel when it returns, so
// consumers may range over Frames(). Run is single-shot.
type Source interface {
	// Frames returns the channel frames are delivered on.
	Frames() <-chan pose.Frame

	// Run produces frames until ctx ends or the transport is exhausted.
	// A clean end of input returns nil; cancellation returns ctx.Err().
	Run(ctx context.Context) error

	// Name identifies the source in logs and session rows.
	Name() string
}

// DecodeFrame parses one wire-form frame, enforcing size and people caps.
// It is the shared ingestion boundary for every network transport.
func DecodeFrame(data []byte) (pose.Frame, error) {
	var f pose.Frame

	if len(data) > MaxFrameBytes {
		return f, fmt.Errorf("frame of %d bytes exceeds %d byte limit", len(data), MaxFrameBytes)
	}

	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("malformed frame: %w", err)
	}

	if len(f.People) > MaxPeoplePerFrame {
		return f, fmt.Errorf("frame carries %d people, limit is %d", len(f.People), MaxPeoplePerFrame)
	}

	return f, nil
}

// deliver sends f on frames unless ctx ends first.
func deliver(ctx context.Context, frames chan<- pose.Frame, f pose.Frame) error {
	select {
	case frames <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
