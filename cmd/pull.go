package cmd

import (
	"fmt"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/images"
)

var pullCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull [URL]",
		Short: "Download the cloud image and convert it to the raw boot disk",
		Long: "Download the cloud image and convert it to the raw boot disk.\n\n" +
			"http(s):// URLs download directly; oci:// references pull the\n" +
			"image from an OCI registry. With no argument the configured\n" +
			"image URL is used. Nothing happens when the disk already exists.",
		Args: cobra.MaximumNArgs(1),
		RunE: runPull,
	}
	cmd.Flags().Bool("force", false, "refresh the image and disk even if present")
	return cmd
}()

func runPull(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	url := conf.ImageURL
	if len(args) == 1 {
		url = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")

	p := images.NewPreparer(url, conf.Image, conf.Disk)
	p.Force = force
	if err := p.Ensure(ctx); err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	if d := images.RecordedDigest(conf.Image); d != "" {
		log.WithFunc("cmd.pull").Debugf(ctx, "image digest %s", d)
	}
	fmt.Printf("Boot disk ready at %s\n", conf.Disk)
	return nil
}
