package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/projecteru2/core/log"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/version"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running guest supervisor processes",
	Long: "List running guest supervisor processes.\n\n" +
		"Prints one tab-separated line per process: PID, start time, command.\n" +
		"Always exits 0; no matching processes means empty output.",
	RunE: runPS,
}

func runPS(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	procs, err := process.Processes()
	if err != nil {
		// Scan trouble is not a reason to break scripts polling us.
		log.WithFunc("cmd.ps").Warnf(ctx, "process scan failed: %v", err)
		return nil
	}

	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name != version.NAME {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil {
			continue
		}
		// Only supervisors count, not every vmctl invocation (including
		// this one).
		if !strings.Contains(cmdline, "--foreground") {
			continue
		}
		start := "-"
		if created, err := p.CreateTime(); err == nil {
			start = time.UnixMilli(created).Local().Format(time.DateTime)
		}
		fmt.Printf("%d\t%s\t%s\n", p.Pid, start, cmdline)
	}
	return nil
}
