package posestream

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gymsight/repcount/internal/monitoring"
	"github.com/gymsight/repcount/internal/pose"
)

// UDPSourceConfig contains configuration options for the UDP source.
type UDPSourceConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Stats       StatsSink
	// CameraID is stamped onto frames that arrive without one.
	CameraID string
}

// UDPSource receives pose frames as UDP datagrams, one frame per datagram.
type UDPSource struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	stats       StatsSink
	cameraID    string
	frames      chan pose.Frame

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewUDPSource creates a new UDP source with the provided configuration.
func NewUDPSource(config UDPSourceConfig) *UDPSource {
	// Provide a no-op stats implementation when none is supplied to avoid
	// nil checks in the datagram handling and logging paths.
	var stats StatsSink
	if config.Stats != nil {
		stats = config.Stats
	} else {
		stats = noopStats{}
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	rcvBuf := config.RcvBuf
	if rcvBuf == 0 {
		rcvBuf = MaxFrameBytes
	}

	return &UDPSource{
		address:     config.Address,
		rcvBuf:      rcvBuf,
		logInterval: logInterval,
		stats:       stats,
		cameraID:    config.CameraID,
		frames:      make(chan pose.Frame),
	}
}

// Frames returns the channel decoded frames are delivered on.
func (s *UDPSource) Frames() <-chan pose.Frame {
	return s.frames
}

// Name identifies the source in logs and session rows.
func (s *UDPSource) Name() string {
	return fmt.Sprintf("udp:%s", s.address)
}

// LocalAddr returns the bound address once Run has started listening,
// or nil before that. Useful when listening on port 0.
func (s *UDPSource) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Run listens for datagrams and decodes them until ctx ends.
func (s *UDPSource) Run(ctx context.Context) error {
	defer close(s.frames)

	addr, err := net.ResolveUDPAddr("udp", s.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	if err := conn.SetReadBuffer(s.rcvBuf); err != nil {
		monitoring.Logf("Warning: failed to set UDP receive buffer size to %d: %v", s.rcvBuf, err)
	}

	monitoring.Logf("UDP pose source listening on %s with receive buffer %d bytes",
		conn.LocalAddr(), s.rcvBuf)

	go s.startStatsLogging(ctx)

	buffer := make([]byte, MaxFrameBytes)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("UDP pose source stopping due to context cancellation")
			return ctx.Err()
		default:
			// Read deadline keeps the loop responsive to cancellation.
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, from, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.Logf("UDP read error: %v", err)
				continue
			}

			if err := s.handleDatagram(ctx, buffer[:n]); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.Logf("Error handling datagram from %v: %v", from, err)
			}
		}
	}
}

// handleDatagram decodes one datagram and delivers the frame.
func (s *UDPSource) handleDatagram(ctx context.Context, data []byte) error {
	s.stats.AddFrame(len(data))

	f, err := DecodeFrame(data)
	if err != nil {
		s.stats.AddDropped()
		return err
	}

	if f.CameraID == "" {
		f.CameraID = s.cameraID
	}
	s.stats.AddPeople(len(f.People))

	return deliver(ctx, s.frames, f)
}

// startStatsLogging periodically logs ingest statistics. An early first
// report avoids a long silence right after startup.
func (s *UDPSource) startStatsLogging(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		s.stats.LogStats()
	}

	ticker := time.NewTicker(s.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.stats.LogStats()
		}
	}
}
