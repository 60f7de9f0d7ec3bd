//go:build !darwin && !linux

package network

import (
	"context"
	"errors"
)

func listNeighbors(_ context.Context) ([]Neighbor, error) {
	return nil, errors.New("neighbour table scan is not supported on this platform")
}
