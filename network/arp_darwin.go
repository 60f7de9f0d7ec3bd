//go:build darwin

package network

import (
	"context"
	"fmt"
	"os/exec"
)

// listNeighbors shells out to the BSD arp tool. A single table dump
// does not justify vendoring the route sysctl plumbing.
func listNeighbors(ctx context.Context) ([]Neighbor, error) {
	out, err := exec.CommandContext(ctx, "arp", "-an").Output()
	if err != nil {
		return nil, fmt.Errorf("arp -an: %w", err)
	}
	return parseARP(out), nil
}
