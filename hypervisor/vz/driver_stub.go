//go:build !darwin

package vz

import "github.com/vmctl-dev/vmctl/hypervisor"

// New reports that this platform has no Virtualization.framework.
func New() (hypervisor.Driver, error) {
	return nil, hypervisor.ErrUnsupported
}
