package cmd

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/network"
)

var ipCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ip",
		Short: "Print the guest's IPv4 address",
		Long: "Print the guest's IPv4 address.\n\n" +
			"The address is recovered by scanning the host's neighbour table\n" +
			"for the guest's fixed MAC address, so the guest must have booted\n" +
			"far enough to request a DHCP lease.",
		Args: cobra.NoArgs,
		RunE: runIP,
	}
	cmd.Flags().Duration("interval", network.DefaultScanInterval, "pause between neighbour table scans")
	cmd.Flags().Int("attempts", network.DefaultMaxAttempts, "scans before giving up")
	return cmd
}()

func runIP(cmd *cobra.Command, _ []string) error {
	ip, err := locateGuest(commandContext(cmd), cmd)
	if err != nil {
		return err
	}
	fmt.Println(ip)
	return nil
}

// locateGuest resolves the guest's address with the configured MAC and
// the command's cadence flags.
func locateGuest(ctx context.Context, cmd *cobra.Command) (net.IP, error) {
	mac, err := conf.HardwareAddr()
	if err != nil {
		return nil, err
	}
	loc := network.NewLocator(mac)
	if cmd.Flags().Changed("interval") {
		loc.Interval, _ = cmd.Flags().GetDuration("interval")
	}
	if cmd.Flags().Changed("attempts") {
		loc.MaxAttempts, _ = cmd.Flags().GetInt("attempts")
	}
	return loc.Locate(ctx)
}
