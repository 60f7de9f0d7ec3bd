package cmd

import (
	"fmt"
	"os"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
)

var rmCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm [NAME]",
		Short: "Remove a stopped guest's record and runtime files",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRM,
	}
	cmd.Flags().Bool("artifacts", false, "also delete the disk, seed ISO, EFI store and machine id")
	return cmd
}()

func runRM(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	reg, err := initRegistry()
	if err != nil {
		return err
	}
	target := targetName(args)

	rec, err := reg.Delete(ctx, target)
	if err != nil {
		return fmt.Errorf("rm: %w", err)
	}

	logger := log.WithFunc("cmd.rm")
	for _, p := range []string{conf.VMRunDir(target), conf.VMLogDir(target)} {
		if err := os.RemoveAll(p); err != nil {
			logger.Warnf(ctx, "remove %s: %v", p, err)
		}
	}

	if artifacts, _ := cmd.Flags().GetBool("artifacts"); artifacts {
		for _, p := range []string{rec.Disk, rec.Seed, rec.EFIStore, rec.MachineID} {
			if p == "" {
				continue
			}
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				logger.Warnf(ctx, "remove %s: %v", p, err)
			}
		}
	}

	fmt.Printf("Removed %s\n", target)
	return nil
}
