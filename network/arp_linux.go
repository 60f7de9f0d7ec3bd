//go:build linux

package network

import (
	"context"
	"fmt"

	"github.com/vishvananda/netlink"
)

// listNeighbors dumps the kernel neighbour table over netlink. Entries
// without a hardware address (failed or still-resolving probes) are
// dropped.
func listNeighbors(_ context.Context) ([]Neighbor, error) {
	neighs, err := netlink.NeighList(0, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("neighbour dump: %w", err)
	}
	entries := make([]Neighbor, 0, len(neighs))
	for _, n := range neighs {
		if n.IP == nil || len(n.HardwareAddr) == 0 {
			continue
		}
		entries = append(entries, Neighbor{IP: n.IP, MAC: n.HardwareAddr})
	}
	return entries, nil
}
