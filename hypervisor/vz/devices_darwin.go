//go:build darwin

package vz

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/Code-Hex/vz/v3"
	"github.com/projecteru2/core/log"

	"github.com/vmctl-dev/vmctl/hypervisor"
)

// newBootLoader builds an EFI boot loader backed by the variable store
// at path. The store is created on first boot and reopened afterwards.
func newBootLoader(path string) (*vz.EFIBootLoader, error) {
	var store *vz.EFIVariableStore
	var err error
	if needsNewEFIStore(path) {
		store, err = vz.NewEFIVariableStore(path, vz.WithCreatingEFIVariableStore())
	} else {
		store, err = vz.NewEFIVariableStore(path)
	}
	if err != nil {
		return nil, fmt.Errorf("EFI variable store %s: %w", path, err)
	}
	return vz.NewEFIBootLoader(vz.WithEFIVariableStore(store))
}

// attachPlatform wires the persistent machine identifier into the
// platform configuration.
func attachPlatform(ctx context.Context, vmConfig *vz.VirtualMachineConfiguration, idPath string) error {
	id, err := loadMachineIdentifier(ctx, idPath)
	if err != nil {
		return err
	}
	platform, err := vz.NewGenericPlatformConfiguration(vz.WithGenericMachineIdentifier(id))
	if err != nil {
		return err
	}
	vmConfig.SetPlatformVirtualMachineConfiguration(platform)
	return nil
}

// loadMachineIdentifier reads the identifier blob at path. An unusable
// blob (missing, empty, or undecodable) is regenerated and persisted
// rather than failing the boot; the guest simply comes up with a new
// identity.
func loadMachineIdentifier(ctx context.Context, path string) (*vz.GenericMachineIdentifier, error) {
	if usableMachineID(path) {
		id, err := vz.NewGenericMachineIdentifierWithDataPath(path)
		if err == nil {
			return id, nil
		}
		log.WithFunc("vz.loadMachineIdentifier").Debugf(ctx, "stored machine identifier at %s unusable, regenerating: %v", path, err)
	}
	id, err := vz.NewGenericMachineIdentifier()
	if err != nil {
		return nil, fmt.Errorf("generate machine identifier: %w", err)
	}
	if err := os.WriteFile(path, id.DataRepresentation(), 0o600); err != nil {
		return nil, fmt.Errorf("persist machine identifier %s: %w", path, err)
	}
	return id, nil
}

// attachStorage adds the root disk read-write and, when present, the
// seed ISO read-only. A missing seed file means no seed device.
func attachStorage(ctx context.Context, vmConfig *vz.VirtualMachineConfiguration, spec *hypervisor.Spec) error {
	diskAttachment, err := vz.NewDiskImageStorageDeviceAttachment(spec.Disk, false)
	if err != nil {
		return fmt.Errorf("root disk %s: %w", spec.Disk, err)
	}
	disk, err := vz.NewVirtioBlockDeviceConfiguration(diskAttachment)
	if err != nil {
		return err
	}
	devices := []vz.StorageDeviceConfiguration{disk}

	if spec.HasSeed() {
		seedAttachment, err := vz.NewDiskImageStorageDeviceAttachment(spec.Seed, true)
		if err != nil {
			return fmt.Errorf("seed ISO %s: %w", spec.Seed, err)
		}
		seed, err := vz.NewVirtioBlockDeviceConfiguration(seedAttachment)
		if err != nil {
			return err
		}
		devices = append(devices, seed)
	} else {
		log.WithFunc("vz.attachStorage").Debugf(ctx, "no seed ISO at %s, booting without metadata device", spec.Seed)
	}

	vmConfig.SetStorageDevicesVirtualMachineConfiguration(devices)
	return nil
}

// attachNetwork adds one NAT-backed virtio interface with the given MAC,
// which is what the ARP locator later scans for.
func attachNetwork(vmConfig *vz.VirtualMachineConfiguration, mac net.HardwareAddr) error {
	nat, err := vz.NewNATNetworkDeviceAttachment()
	if err != nil {
		return err
	}
	netConfig, err := vz.NewVirtioNetworkDeviceConfiguration(nat)
	if err != nil {
		return err
	}
	addr, err := vz.NewMACAddress(mac)
	if err != nil {
		return fmt.Errorf("MAC %s: %w", mac, err)
	}
	netConfig.SetMACAddress(addr)
	vmConfig.SetNetworkDevicesVirtualMachineConfiguration([]*vz.VirtioNetworkDeviceConfiguration{netConfig})
	return nil
}

// attachSerial wires the guest console to the given file handles. A nil
// input leaves the guest with a write-only console.
func attachSerial(vmConfig *vz.VirtualMachineConfiguration, in, out *os.File) error {
	if in == nil {
		devNull, err := os.Open(os.DevNull)
		if err != nil {
			return err
		}
		in = devNull
	}
	attachment := vz.NewFileHandleSerialPortAttachment(in, out)
	serial, err := vz.NewVirtioConsoleDeviceSerialPortConfiguration(attachment)
	if err != nil {
		return err
	}
	vmConfig.SetSerialPortsVirtualMachineConfiguration([]*vz.VirtioConsoleDeviceSerialPortConfiguration{serial})
	return nil
}

// attachSupportDevices adds the entropy and input devices a stock cloud
// image expects to find.
func attachSupportDevices(vmConfig *vz.VirtualMachineConfiguration) error {
	entropy, err := vz.NewVirtioEntropyDeviceConfiguration()
	if err != nil {
		return err
	}
	vmConfig.SetEntropyDevicesVirtualMachineConfiguration([]*vz.VirtioEntropyDeviceConfiguration{entropy})

	keyboard, err := vz.NewUSBKeyboardConfiguration()
	if err != nil {
		return err
	}
	vmConfig.SetKeyboardsVirtualMachineConfiguration([]vz.KeyboardConfiguration{keyboard})

	pointing, err := vz.NewUSBScreenCoordinatePointingDeviceConfiguration()
	if err != nil {
		return err
	}
	vmConfig.SetPointingDevicesVirtualMachineConfiguration([]vz.PointingDeviceConfiguration{pointing})
	return nil
}
