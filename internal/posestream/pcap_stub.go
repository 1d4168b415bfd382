//go:build !pcap
// +build !pcap

package posestream

import (
	"fmt"
)

// NewPCAPSource is a stub implementation when PCAP support is disabled.
// Build with -tags=pcap to enable capture replay.
func NewPCAPSource(pcapFile string, udpPort int, realtime bool, speed float64, stats StatsSink) (Source, error) {
	return nil, fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to replay pose captures")
}
