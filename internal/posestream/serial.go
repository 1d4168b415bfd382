package posestream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/gymsight/repcount/internal/monitoring"
	"github.com/gymsight/repcount/internal/pose"
	"github.com/gymsight/repcount/internal/timeutil"
)

// DefaultBaudRate matches the NDJSON pose devices we ship.
const DefaultBaudRate = 115200

// PortOpener opens the serial transport. This abstraction enables unit
// testing without real serial hardware.
type PortOpener func() (io.ReadCloser, error)

// SerialSourceConfig contains configuration options for the serial source.
type SerialSourceConfig struct {
	Path     string
	Baud     int
	Stats    StatsSink
	CameraID string
	Clock    timeutil.Clock
	// Opener replaces the real serial port in tests.
	Opener PortOpener
}

// SerialSource reads NDJSON pose frames from an edge device on a serial
// port, reopening the port with backoff after read errors.
type SerialSource struct {
	path   string
	baud   int
	stats  StatsSink
	camera string
	clock  timeutil.Clock
	open   PortOpener
	frames chan pose.Frame
}

// NewSerialSource creates a new serial source with the provided configuration.
func NewSerialSource(config SerialSourceConfig) *SerialSource {
	var stats StatsSink
	if config.Stats != nil {
		stats = config.Stats
	} else {
		stats = noopStats{}
	}

	baud := config.Baud
	if baud == 0 {
		baud = DefaultBaudRate
	}

	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	s := &SerialSource{
		path:   config.Path,
		baud:   baud,
		stats:  stats,
		camera: config.CameraID,
		clock:  clock,
		open:   config.Opener,
		frames: make(chan pose.Frame),
	}
	if s.open == nil {
		s.open = func() (io.ReadCloser, error) {
			return serial.Open(s.path, &serial.Mode{BaudRate: s.baud})
		}
	}
	return s
}

// Frames returns the channel decoded frames are delivered on.
func (s *SerialSource) Frames() <-chan pose.Frame {
	return s.frames
}

// Name identifies the source in logs and session rows.
func (s *SerialSource) Name() string {
	return fmt.Sprintf("serial:%s", s.path)
}

// Run reads frames from the port until ctx ends, reopening on failure.
func (s *SerialSource) Run(ctx context.Context) error {
	defer close(s.frames)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		port, err := s.open()
		if err != nil {
			monitoring.Logf("Failed to open serial port %s: %v (retrying in %v)", s.path, err, backoff)
			if err := s.wait(ctx, backoff); err != nil {
				return err
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		monitoring.Logf("Serial pose source reading %s at %d baud", s.path, s.baud)
		err = s.readFrames(ctx, port)
		port.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		monitoring.Logf("Serial read on %s ended: %v (reopening in %v)", s.path, err, backoff)
		if err := s.wait(ctx, backoff); err != nil {
			return err
		}
	}
}

func (s *SerialSource) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}

func (s *SerialSource) readFrames(ctx context.Context, port io.ReadCloser) error {
	// A blocking port read cannot observe ctx, so close the port to
	// unblock the scanner when ctx ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-done:
		}
	}()

	sc := bufio.NewScanner(port)
	sc.Buffer(make([]byte, 4096), MaxFrameBytes)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		s.stats.AddFrame(len(line))

		f, err := DecodeFrame(line)
		if err != nil {
			s.stats.AddDropped()
			monitoring.Logf("Serial frame decode error: %v", err)
			continue
		}

		if f.CameraID == "" {
			f.CameraID = s.camera
		}
		s.stats.AddPeople(len(f.People))

		if err := deliver(ctx, s.frames, f); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}
