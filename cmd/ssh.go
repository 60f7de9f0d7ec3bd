package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/network"
)

var sshCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssh [-- COMMAND...]",
		Short: "SSH into the guest",
		Long: "SSH into the guest as the configured user.\n\n" +
			"Locates the guest by MAC address first, then hands off to the\n" +
			"system ssh client. Extra arguments run as a remote command.",
		Args: cobra.ArbitraryArgs,
		RunE: runSSH,
	}
	cmd.Flags().Duration("interval", network.DefaultScanInterval, "pause between neighbour table scans")
	cmd.Flags().Int("attempts", network.DefaultMaxAttempts, "scans before giving up")
	return cmd
}()

func runSSH(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	ip, err := locateGuest(ctx, cmd)
	if err != nil {
		return err
	}

	sshArgs := network.BuildSSHArgs(conf.SSHKey, conf.SSHUser, ip, network.DefaultConnectTimeout, args)
	code, err := network.RunSSH(ctx, sshArgs)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}
