package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var listCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List guests and their state",
		RunE:    runList,
	}
	cmd.Flags().Bool("json", false, "machine-readable output")
	return cmd
}()

func runList(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	reg, err := initRegistry()
	if err != nil {
		return err
	}

	vms, err := reg.List(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(vms)
	}

	if len(vms) == 0 {
		fmt.Println("No guests found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSTATE\tPID\tCPU\tMEMORY\tSTARTED")
	for _, vm := range vms {
		pid := "-"
		if vm.PID > 0 {
			pid = strconv.Itoa(vm.PID)
		}
		started := "-"
		if vm.StartedAt != nil {
			started = vm.StartedAt.Local().Format(time.DateTime)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			vm.Name,
			vm.State,
			pid,
			vm.CPU,
			formatSize(vm.Memory),
			started,
		)
	}
	w.Flush() //nolint:errcheck,gosec

	fmt.Printf("\n%d guest(s)\n", len(vms))
	return nil
}
