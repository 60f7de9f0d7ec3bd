package hypervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	ErrNotFound       = errors.New("VM not found")
	ErrNotRunning     = errors.New("VM not running")
	ErrAlreadyRunning = errors.New("VM already running")
	ErrNotConfigured  = errors.New("VM not configured")
	ErrUnsupported    = errors.New("virtualization is not supported on this platform")
)

// Spec carries everything a backend needs to assemble one guest.
// All paths are host-side files; Validate decides which of them must
// exist before any start attempt.
type Spec struct {
	Name string

	CPU    int
	Memory int64 // bytes
	MAC    net.HardwareAddr

	Disk      string // root disk (raw), must exist
	Seed      string // cloud-init seed ISO, attached read-only when present
	EFIStore  string // EFI variable store, created on first boot
	MachineID string // machine identifier blob, regenerated when unusable

	// Serial console endpoints handed to the guest. SerialInput is the
	// file the guest reads keystrokes from (may be nil for a write-only
	// console), SerialOutput is where it writes boot and console output.
	SerialInput  *os.File
	SerialOutput *os.File
}

// Validate checks the spec before any backend resources are touched.
// A missing root disk is fatal here, with the offending path in the
// error. A missing seed is not: the guest boots without a metadata
// device.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return errors.New("VM name is required")
	}
	if s.CPU < 1 {
		return fmt.Errorf("CPU count %d: at least 1 required", s.CPU)
	}
	if s.Memory <= 0 {
		return fmt.Errorf("memory size %d: must be positive", s.Memory)
	}
	if len(s.MAC) == 0 {
		return errors.New("MAC address is required")
	}
	if s.Disk == "" {
		return errors.New("root disk path is required")
	}
	if _, err := os.Stat(s.Disk); err != nil {
		return fmt.Errorf("root disk %s: %w", s.Disk, err)
	}
	if s.EFIStore == "" {
		return errors.New("EFI variable store path is required")
	}
	if s.MachineID == "" {
		return errors.New("machine identifier path is required")
	}
	if s.SerialOutput == nil {
		return errors.New("serial output is required")
	}
	return nil
}

// HasSeed reports whether the seed ISO exists and should be attached.
func (s *Spec) HasSeed() bool {
	if s.Seed == "" {
		return false
	}
	_, err := os.Stat(s.Seed)
	return err == nil
}

// Driver boots and supervises a single guest. Implemented by each backend.
type Driver interface {
	// Name identifies the backend.
	Name() string

	// Configure validates the spec, assembles the device tree and
	// instantiates the backend VM. Must succeed exactly once before
	// Start.
	Configure(ctx context.Context, spec *Spec) error

	// Start boots the configured guest. The returned channel yields the
	// run outcome exactly once: nil after a clean guest-initiated stop,
	// an error when the guest fails.
	Start(ctx context.Context) (<-chan error, error)

	// Stop asks the guest to power down cleanly.
	Stop(ctx context.Context) error

	// Kill tears the guest down without waiting for it.
	Kill(ctx context.Context) error
}
