package cmd

import (
	"fmt"
	"os"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/metadata"
)

var seedCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Build the cloud-init seed ISO",
		Long: "Build the cloud-init seed ISO.\n\n" +
			"Packs user-data and meta-data into an ISO 9660 image labeled\n" +
			"\"cidata\". user-data must exist; meta-data is generated from the\n" +
			"guest name when absent.",
		Args: cobra.NoArgs,
		RunE: runSeed,
	}
	cmd.Flags().Bool("force", false, "rebuild even if the seed ISO exists")
	return cmd
}()

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	force, _ := cmd.Flags().GetBool("force")

	b := &metadata.SeedBuilder{
		Name:     conf.Name,
		UserData: conf.UserData,
		MetaData: conf.MetaData,
		Output:   conf.Seed,
	}
	if b.Exists() && !force {
		fmt.Printf("Seed ISO already present at %s\n", conf.Seed)
		return nil
	}
	if data, err := os.ReadFile(conf.UserData); err == nil && !metadata.CheckUserData(data) {
		log.WithFunc("cmd.seed").Warnf(ctx, "%s does not start with #cloud-config, cloud-init may ignore it", conf.UserData)
	}
	if err := b.Build(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	fmt.Printf("Seed ISO written to %s (volume label %s)\n", conf.Seed, metadata.VolumeLabel)
	return nil
}
