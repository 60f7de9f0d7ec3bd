// Package network finds the guest on the host's network and connects to it.
//
// The guest is always launched with a fixed, locally administered MAC
// address, so its IPv4 address can be recovered by watching the host's
// neighbour table instead of running a DHCP sniffer or a guest agent.
package network

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/projecteru2/core/log"
)

const (
	// DefaultScanInterval is the pause between neighbour table scans.
	DefaultScanInterval = 2 * time.Second
	// DefaultMaxAttempts bounds the scan loop. With the default interval
	// this gives the guest about a minute to finish DHCP.
	DefaultMaxAttempts = 30
)

// Neighbor is one entry of the host's ARP/neighbour table.
type Neighbor struct {
	IP  net.IP
	MAC net.HardwareAddr
}

// Locator resolves a MAC address to the guest's IPv4 address by
// polling the host's neighbour table at a fixed interval. The loop is
// bounded: once MaxAttempts scans come up empty it returns an error
// instead of spinning forever.
type Locator struct {
	MAC         net.HardwareAddr
	Interval    time.Duration
	MaxAttempts int

	// neighbors is swapped out in tests.
	neighbors func(ctx context.Context) ([]Neighbor, error)
}

// NewLocator returns a Locator for the given MAC with default cadence.
func NewLocator(mac net.HardwareAddr) *Locator {
	return &Locator{
		MAC:         mac,
		Interval:    DefaultScanInterval,
		MaxAttempts: DefaultMaxAttempts,
		neighbors:   listNeighbors,
	}
}

// Locate scans until the MAC shows up, the attempt budget runs out, or
// ctx is cancelled. Scan errors are retried like empty scans; the
// table is often briefly unreadable while interfaces reconfigure.
func (l *Locator) Locate(ctx context.Context) (net.IP, error) {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	attempts := l.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := log.WithFunc("network.Locate")
	for attempt := 1; ; attempt++ {
		entries, err := l.neighbors(ctx)
		if err != nil {
			logger.Debugf(ctx, "neighbour table scan failed: %v", err)
		}
		for _, n := range entries {
			if bytes.Equal(n.MAC, l.MAC) {
				logger.Debugf(ctx, "located %s at %s after %d scan(s)", l.MAC, n.IP, attempt)
				return n.IP, nil
			}
		}
		if attempt >= attempts {
			return nil, fmt.Errorf("%s not in neighbour table after %d scans: guest may still be booting or has no DHCP lease", l.MAC, attempts)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
