package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/console"
)

var consoleCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console [NAME]",
		Short: "Attach to the guest's serial console",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConsole,
	}
	cmd.Flags().String("escape-char", "^]", "escape character (single char or ^X caret notation)")
	return cmd
}()

func runConsole(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	reg, err := initRegistry()
	if err != nil {
		return err
	}
	target := targetName(args)

	rec, err := reg.Get(ctx, target)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	sock := rec.ConsoleSock
	if sock == "" {
		sock = conf.VMConsoleSock(target)
	}

	conn, err := net.Dial("unix", sock)
	if err != nil {
		return fmt.Errorf("console socket %s: %w (is the guest running?)", sock, err)
	}
	defer conn.Close() //nolint:errcheck

	escapeStr, _ := cmd.Flags().GetString("escape-char")
	escapeChar, err := console.ParseEscapeChar(escapeStr)
	if err != nil {
		return err
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("stdin is not a terminal")
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
		fmt.Fprintf(os.Stderr, "\r\nDisconnected from %s.\r\n", target)
	}()

	// Absorb SIGINT/SIGTERM to prevent bypassing terminal restore.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
		}
	}()

	escapeDisplay := console.FormatEscapeChar(escapeChar)
	fmt.Fprintf(os.Stderr, "Connected to %s (escape sequence: %s.)\r\n", target, escapeDisplay)

	if err := console.Relay(ctx, conn, escapeChar); err != nil {
		fmt.Fprintf(os.Stderr, "\r\nrelay error: %v\r\n", err)
	}
	return nil
}
