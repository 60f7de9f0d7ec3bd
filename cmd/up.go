package cmd

import (
	"errors"
	"fmt"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/images"
	"github.com/vmctl-dev/vmctl/metadata"
)

var upCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Prepare the disk and seed, then launch the guest",
		Long: "Prepare the disk and seed, then launch the guest.\n\n" +
			"Equivalent to pull, seed and start in sequence, skipping whatever\n" +
			"already exists. A missing user-data file skips the seed instead\n" +
			"of failing; the guest then boots without cloud-init metadata.",
		Args: cobra.NoArgs,
		RunE: runUp,
	}
	cmd.Flags().BoolP("foreground", "f", false, "run the supervisor in the foreground instead of detaching")
	return cmd
}()

func runUp(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	p := images.NewPreparer(conf.ImageURL, conf.Image, conf.Disk)
	if err := p.Ensure(ctx); err != nil {
		return fmt.Errorf("prepare disk: %w", err)
	}

	b := &metadata.SeedBuilder{
		Name:     conf.Name,
		UserData: conf.UserData,
		MetaData: conf.MetaData,
		Output:   conf.Seed,
	}
	if !b.Exists() {
		switch err := b.Build(); {
		case err == nil:
			fmt.Printf("Seed ISO written to %s\n", conf.Seed)
		case errors.Is(err, metadata.ErrNoUserData):
			log.WithFunc("cmd.up").Warnf(ctx, "no user-data at %s, guest boots without cloud-init", conf.UserData)
		default:
			return fmt.Errorf("build seed: %w", err)
		}
	}

	if foreground, _ := cmd.Flags().GetBool("foreground"); foreground {
		return runSupervisor(ctx)
	}
	return launchDetached(ctx)
}
