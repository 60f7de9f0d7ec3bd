package cmd

import (
	"os"
	"time"

	units "github.com/docker/go-units"

	"github.com/vmctl-dev/vmctl/hypervisor"
	"github.com/vmctl-dev/vmctl/types"
	"github.com/vmctl-dev/vmctl/utils"
)

func initRegistry() (*hypervisor.Registry, error) {
	return hypervisor.NewRegistry(conf)
}

// targetName picks the guest the command operates on: the positional
// argument if given, the configured name otherwise.
func targetName(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return conf.Name
}

// guestRecord builds the registry record for a fresh launch.
func guestRecord() (*types.VM, error) {
	bootID, err := utils.GenerateID()
	if err != nil {
		return nil, err
	}
	mem, err := conf.MemoryBytes()
	if err != nil {
		return nil, err
	}
	mac, err := conf.HardwareAddr()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &types.VM{
		Name:        conf.Name,
		State:       types.VMStateConfiguring,
		BootID:      bootID,
		CPU:         conf.CPU,
		Memory:      mem,
		MAC:         mac.String(),
		Disk:        conf.Disk,
		Seed:        conf.Seed,
		EFIStore:    conf.EFIStore,
		MachineID:   conf.MachineID,
		PID:         os.Getpid(),
		SerialLog:   conf.VMSerialLog(conf.Name),
		ConsoleSock: conf.VMConsoleSock(conf.Name),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// guestSpec builds the hypervisor spec from the resolved config. tty
// is the console server's replica end, wired in as the serial device.
func guestSpec(tty *os.File) (*hypervisor.Spec, error) {
	mem, err := conf.MemoryBytes()
	if err != nil {
		return nil, err
	}
	mac, err := conf.HardwareAddr()
	if err != nil {
		return nil, err
	}
	return &hypervisor.Spec{
		Name:         conf.Name,
		CPU:          conf.CPU,
		Memory:       mem,
		MAC:          mac,
		Disk:         conf.Disk,
		Seed:         conf.Seed,
		EFIStore:     conf.EFIStore,
		MachineID:    conf.MachineID,
		SerialInput:  tty,
		SerialOutput: tty,
	}, nil
}

func formatSize(bytes int64) string {
	return units.BytesSize(float64(bytes))
}
