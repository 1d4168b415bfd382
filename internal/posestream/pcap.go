//go:build pcap
// +build pcap

package posestream

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/gymsight/repcount/internal/monitoring"
	"github.com/gymsight/repcount/internal/pose"
)

// pcapSource replays captured UDP pose traffic from a .pcap file.
// Only available when building with the 'pcap' build tag.
type pcapSource struct {
	file     string
	udpPort  int
	realtime bool
	speed    float64
	stats    StatsSink
	frames   chan pose.Frame
}

// NewPCAPSource creates a source replaying UDP pose datagrams from a
// capture file. With realtime set, packet pacing follows the capture
// timestamps scaled by speed; otherwise packets replay as fast as the
// consumer accepts them.
func NewPCAPSource(pcapFile string, udpPort int, realtime bool, speed float64, stats StatsSink) (Source, error) {
	if speed <= 0 {
		speed = 1.0
	}
	if stats == nil {
		stats = noopStats{}
	}
	return &pcapSource{
		file:     pcapFile,
		udpPort:  udpPort,
		realtime: realtime,
		speed:    speed,
		stats:    stats,
		frames:   make(chan pose.Frame),
	}, nil
}

func (s *pcapSource) Frames() <-chan pose.Frame {
	return s.frames
}

func (s *pcapSource) Name() string {
	return fmt.Sprintf("pcap:%s", s.file)
}

func (s *pcapSource) Run(ctx context.Context) error {
	defer close(s.frames)

	handle, err := pcap.OpenOffline(s.file)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", s.file, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", s.udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}
	monitoring.Logf("PCAP BPF filter set: %s (realtime=%v speed=%.1fx)", filterStr, s.realtime, s.speed)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0
	startTime := time.Now()

	var lastCapture time.Time

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("PCAP replay stopping due to context cancellation (processed %d packets)", packetCount)
			return ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				monitoring.Logf("PCAP replay complete: %d packets processed in %v", packetCount, time.Since(startTime))
				return nil
			}
			packetCount++

			if s.realtime {
				captureTime := packet.Metadata().Timestamp
				if !lastCapture.IsZero() {
					delay := time.Duration(float64(captureTime.Sub(lastCapture)) / s.speed)
					if delay > 0 {
						select {
						case <-ctx.Done():
							return ctx.Err()
						case <-time.After(delay):
						}
					}
				}
				lastCapture = captureTime
			}

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok {
				continue
			}
			payload := udp.Payload
			if len(payload) == 0 {
				continue
			}

			s.stats.AddFrame(len(payload))
			f, err := DecodeFrame(payload)
			if err != nil {
				s.stats.AddDropped()
				monitoring.Logf("Error decoding PCAP packet %d: %v", packetCount, err)
				continue
			}
			s.stats.AddPeople(len(f.People))

			if err := deliver(ctx, s.frames, f); err != nil {
				return err
			}
		}
	}
}
