package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/types"
)

var statusCmd = &cobra.Command{
	Use:   "status [NAME]",
	Short: "Show the guest's current state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	reg, err := initRegistry()
	if err != nil {
		return err
	}

	target := targetName(args)
	rec, err := reg.Get(ctx, target)
	if err != nil {
		return err
	}

	fmt.Printf("Name:         %s\n", rec.Name)
	fmt.Printf("State:        %s\n", rec.State)
	if rec.PID > 0 {
		fmt.Printf("PID:          %d\n", rec.PID)
	}
	fmt.Printf("CPU:          %d\n", rec.CPU)
	fmt.Printf("Memory:       %s (%d bytes)\n", formatSize(rec.Memory), rec.Memory)
	fmt.Printf("MAC:          %s\n", rec.MAC)
	fmt.Printf("Disk:         %s\n", rec.Disk)
	seed := rec.Seed
	if seed == "" {
		seed = "-"
	}
	fmt.Printf("Seed:         %s\n", seed)
	fmt.Printf("EFI store:    %s\n", rec.EFIStore)
	fmt.Printf("Machine ID:   %s\n", rec.MachineID)
	fmt.Printf("Serial log:   %s\n", rec.SerialLog)
	fmt.Printf("Console sock: %s\n", rec.ConsoleSock)
	if rec.StartedAt != nil {
		fmt.Printf("Started:      %s\n", rec.StartedAt.Local().Format(time.DateTime))
		if rec.State == types.VMStateRunning {
			fmt.Printf("Uptime:       %s\n", time.Since(*rec.StartedAt).Round(time.Second))
		}
	}
	if rec.StoppedAt != nil {
		fmt.Printf("Stopped:      %s\n", rec.StoppedAt.Local().Format(time.DateTime))
	}
	return nil
}
