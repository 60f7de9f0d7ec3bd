//go:build darwin

package vz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Code-Hex/vz/v3"
	"github.com/projecteru2/core/log"

	"github.com/vmctl-dev/vmctl/hypervisor"
)

const typ = "vz"

// driver implements hypervisor.Driver on top of Virtualization.framework.
// The guest runs inside this process; there is no external hypervisor
// binary to manage.
type driver struct {
	mu   sync.Mutex
	spec *hypervisor.Spec
	vm   *vz.VirtualMachine
}

// New returns the Virtualization.framework backend.
func New() (hypervisor.Driver, error) {
	return &driver{}, nil
}

func (d *driver) Name() string { return typ }

// Configure validates the spec, assembles the device tree and
// instantiates the guest. Boot artifacts (EFI variable store, machine
// identifier) are created or repaired here so Start only has to boot.
func (d *driver) Configure(ctx context.Context, spec *hypervisor.Spec) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vm != nil {
		return errors.New("VM already configured")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	bootLoader, err := newBootLoader(spec.EFIStore)
	if err != nil {
		return fmt.Errorf("boot loader: %w", err)
	}
	vmConfig, err := vz.NewVirtualMachineConfiguration(bootLoader, uint(spec.CPU), uint64(spec.Memory))
	if err != nil {
		return fmt.Errorf("VM configuration: %w", err)
	}
	if err := attachPlatform(ctx, vmConfig, spec.MachineID); err != nil {
		return fmt.Errorf("platform: %w", err)
	}
	if err := attachStorage(ctx, vmConfig, spec); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := attachNetwork(vmConfig, spec.MAC); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if err := attachSerial(vmConfig, spec.SerialInput, spec.SerialOutput); err != nil {
		return fmt.Errorf("serial console: %w", err)
	}
	if err := attachSupportDevices(vmConfig); err != nil {
		return fmt.Errorf("support devices: %w", err)
	}

	valid, err := vmConfig.Validate()
	if err != nil {
		return fmt.Errorf("validate configuration: %w", err)
	}
	if !valid {
		return errors.New("configuration rejected by Virtualization.framework")
	}

	vm, err := vz.NewVirtualMachine(vmConfig)
	if err != nil {
		return fmt.Errorf("instantiate VM: %w", err)
	}
	d.spec = spec
	d.vm = vm
	return nil
}

// Start boots the guest and blocks until it reports Running, then hands
// back the outcome channel. The channel yields nil after a clean stop
// and an error when the guest fails, exactly once.
func (d *driver) Start(ctx context.Context) (<-chan error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vm == nil {
		return nil, hypervisor.ErrNotConfigured
	}
	if d.vm.State() == vz.VirtualMachineStateRunning {
		return nil, hypervisor.ErrAlreadyRunning
	}

	// Subscribe before starting so no transition is missed, and keep the
	// same channel for the supervision loop.
	events := d.vm.StateChangedNotify()

	if err := d.vm.Start(); err != nil {
		return nil, fmt.Errorf("start VM: %w", err)
	}

	logger := log.WithFunc("vz.Start")
	for {
		select {
		case <-ctx.Done():
			_ = d.vm.Stop()
			return nil, ctx.Err()
		case state := <-events:
			switch state {
			case vz.VirtualMachineStateRunning:
				logger.Infof(ctx, "guest %s running", d.spec.Name)
				done := make(chan error, 1)
				go d.supervise(ctx, events, done)
				return done, nil
			case vz.VirtualMachineStateStopped:
				return nil, errors.New("guest stopped during startup")
			case vz.VirtualMachineStateError:
				return nil, errors.New("guest failed during startup")
			default:
				logger.Debugf(ctx, "guest %s state change: %v", d.spec.Name, state)
			}
		}
	}
}

// supervise consumes state changes until the guest lands in a terminal
// state and reports the run outcome on done.
func (d *driver) supervise(ctx context.Context, events <-chan vz.VirtualMachineState, done chan<- error) {
	logger := log.WithFunc("vz.supervise")
	for state := range events {
		switch state {
		case vz.VirtualMachineStateStopped:
			logger.Infof(ctx, "guest %s stopped", d.spec.Name)
			done <- nil
			return
		case vz.VirtualMachineStateError:
			err := errors.New("guest entered error state")
			logger.Error(ctx, err, d.spec.Name)
			done <- err
			return
		default:
			logger.Debugf(ctx, "guest %s state change: %v", d.spec.Name, state)
		}
	}
}

// Stop asks the guest OS to power down via the virtualized power button.
// Completion is reported on the channel returned by Start.
func (d *driver) Stop(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vm == nil {
		return hypervisor.ErrNotConfigured
	}
	canStop, err := d.vm.CanRequestStop()
	if err != nil {
		return fmt.Errorf("query guest stoppability: %w", err)
	}
	if !canStop {
		return hypervisor.ErrNotRunning
	}
	ok, err := d.vm.RequestStop()
	if err != nil {
		return fmt.Errorf("request stop: %w", err)
	}
	if !ok {
		return errors.New("guest rejected stop request")
	}
	return nil
}

// Kill stops the guest immediately without notifying it.
func (d *driver) Kill(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vm == nil {
		return hypervisor.ErrNotConfigured
	}
	if d.vm.State() != vz.VirtualMachineStateRunning {
		return hypervisor.ErrNotRunning
	}
	return d.vm.Stop()
}
