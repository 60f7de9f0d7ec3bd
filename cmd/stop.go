package cmd

import (
	"context"
	"fmt"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/hypervisor"
	"github.com/vmctl-dev/vmctl/utils"
	"github.com/vmctl-dev/vmctl/version"
)

var stopCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop [NAME|PID]",
		Short: "Stop the running guest",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStop,
	}
	cmd.Flags().Bool("all", false, "stop every running guest")
	cmd.Flags().Bool("force", false, "SIGKILL immediately instead of a graceful shutdown")
	return cmd
}()

func runStop(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	force, _ := cmd.Flags().GetBool("force")
	all, _ := cmd.Flags().GetBool("all")

	reg, err := initRegistry()
	if err != nil {
		return err
	}

	if all {
		return stopAll(ctx, reg, force)
	}

	target := targetName(args)
	// A numeric target is a raw supervisor PID, useful when the
	// registry and reality disagree.
	if pid, convErr := strconv.Atoi(target); convErr == nil {
		return stopPID(ctx, pid, force)
	}

	rec, err := reg.Get(ctx, target)
	if err != nil {
		return err
	}
	if rec.State.Terminal() || rec.PID == 0 {
		fmt.Printf("%s is already stopped\n", target)
		return nil
	}
	if err := stopPID(ctx, rec.PID, force); err != nil {
		return fmt.Errorf("stop %s: %w", target, err)
	}
	fmt.Printf("Stopped %s\n", target)
	return nil
}

func stopAll(ctx context.Context, reg *hypervisor.Registry, force bool) error {
	vms, err := reg.List(ctx)
	if err != nil {
		return err
	}
	var stopped int
	for _, vm := range vms {
		if vm.State.Terminal() || vm.PID == 0 {
			continue
		}
		if err := stopPID(ctx, vm.PID, force); err != nil {
			return fmt.Errorf("stop %s: %w", vm.Name, err)
		}
		fmt.Printf("Stopped %s\n", vm.Name)
		stopped++
	}
	if stopped == 0 {
		fmt.Println("No running guests.")
	}
	return nil
}

// stopPID terminates the supervisor process. The graceful path sends
// SIGTERM and lets the supervisor wind the guest down itself; force
// goes straight to SIGKILL and leaves the record for reconciliation.
func stopPID(ctx context.Context, pid int, force bool) error {
	if !utils.IsProcessAlive(pid) {
		return nil
	}
	if force {
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
			return fmt.Errorf("kill PID %d: %w", pid, err)
		}
		return nil
	}
	// The supervisor needs its own grace window for the guest, plus
	// breathing room for final bookkeeping.
	grace := time.Duration(conf.StopTimeoutSeconds)*time.Second + 5*time.Second
	return utils.TerminateProcess(ctx, pid, version.NAME, grace)
}
