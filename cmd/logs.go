package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
)

var logsCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [NAME]",
		Short: "Show the guest's serial console log",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLogs,
	}
	cmd.Flags().BoolP("follow", "f", false, "keep the log open and stream new lines")
	cmd.Flags().IntP("lines", "n", 50, "number of trailing lines to show")
	cmd.Flags().Bool("supervisor", false, "show the supervisor log instead of the serial log")
	return cmd
}()

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	follow, _ := cmd.Flags().GetBool("follow")
	lines, _ := cmd.Flags().GetInt("lines")
	supervisor, _ := cmd.Flags().GetBool("supervisor")

	name := targetName(args)
	path := conf.VMSerialLog(name)
	if supervisor {
		path = conf.VMProcessLog(name)
	}

	if err := printTrailingLines(os.Stdout, path, lines); err != nil {
		return err
	}
	if !follow {
		return nil
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("follow %s: %w", path, err)
	}
	defer t.Cleanup()
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	for line := range t.Lines {
		if line.Err != nil {
			return line.Err
		}
		fmt.Println(line.Text)
	}
	return nil
}

// printTrailingLines emits the last n lines of the file, tail style.
func printTrailingLines(w io.Writer, path string, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no log at %s (has the guest been started?)", path)
		}
		return err
	}
	if n <= 0 || len(data) == 0 {
		return nil
	}
	text := strings.TrimRight(string(data), "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return nil
}
