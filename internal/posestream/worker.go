package posestream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/gymsight/repcount/internal/monitoring"
	"github.com/gymsight/repcount/internal/pose"
)

// WorkerHello is the first line a pose worker writes on stdout, announcing
// the model and camera it opened.
type WorkerHello struct {
	Type   string `json:"type"`
	Model  string `json:"model,omitempty"`
	Camera string `json:"camera,omitempty"`
}

// WorkerSourceConfig contains configuration options for the worker source.
type WorkerSourceConfig struct {
	// Command is the argv of the pose worker process. The worker owns the
	// camera and the model and writes one frame per stdout line.
	Command  []string
	Stats    StatsSink
	CameraID string
}

// WorkerSource launches a pose-estimation worker subprocess and decodes the
// NDJSON frames it writes to stdout. Worker stderr is logged.
type WorkerSource struct {
	command []string
	stats   StatsSink
	camera  string
	frames  chan pose.Frame

	mu    sync.Mutex
	hello *WorkerHello
}

// NewWorkerSource creates a new worker source with the provided configuration.
func NewWorkerSource(config WorkerSourceConfig) *WorkerSource {
	var stats StatsSink
	if config.Stats != nil {
		stats = config.Stats
	} else {
		stats = noopStats{}
	}

	return &WorkerSource{
		command: config.Command,
		stats:   stats,
		camera:  config.CameraID,
		frames:  make(chan pose.Frame),
	}
}

// Frames returns the channel decoded frames are delivered on.
func (s *WorkerSource) Frames() <-chan pose.Frame {
	return s.frames
}

// Name identifies the source in logs and session rows.
func (s *WorkerSource) Name() string {
	if len(s.command) == 0 {
		return "worker"
	}
	return fmt.Sprintf("worker:%s", s.command[0])
}

// Hello returns the worker's announcement line, or nil before it arrives.
func (s *WorkerSource) Hello() *WorkerHello {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hello
}

// Run launches the worker and consumes its stdout until the process exits
// or ctx ends. The process is killed on cancellation.
func (s *WorkerSource) Run(ctx context.Context) error {
	defer close(s.frames)

	if len(s.command) == 0 {
		return fmt.Errorf("no worker command configured")
	}

	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start pose worker: %w", err)
	}
	monitoring.Logf("Pose worker started: %v (pid %d)", s.command, cmd.Process.Pid)

	go s.logStderr(stderr)

	readErr := s.readFrames(ctx, stdout)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		return fmt.Errorf("pose worker exited: %w", waitErr)
	}
	monitoring.Logf("Pose worker finished cleanly")
	return nil
}

func (s *WorkerSource) readFrames(ctx context.Context, stdout io.Reader) error {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 4096), MaxFrameBytes)

	first := true
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		// The worker announces itself before the first frame.
		if first {
			first = false
			var hello WorkerHello
			if err := json.Unmarshal(line, &hello); err == nil && hello.Type == "hello" {
				s.mu.Lock()
				s.hello = &hello
				s.mu.Unlock()
				monitoring.Logf("Pose worker hello: model=%q camera=%q", hello.Model, hello.Camera)
				continue
			}
		}

		s.stats.AddFrame(len(line))
		f, err := DecodeFrame(line)
		if err != nil {
			s.stats.AddDropped()
			monitoring.Logf("Pose worker frame decode error: %v", err)
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
	return sc.Err()
}

func (s *WorkerSource) logStderr(stderr io.Reader) {
	sc := bufio.NewScanner(stderr)
	for sc.Scan() {
		monitoring.Logf("[pose-worker] %s", sc.Text())
	}
}
