package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/projecteru2/core/log"
)

// DefaultConnectTimeout keeps a dead guest from hanging the client in
// the TCP handshake.
const DefaultConnectTimeout = 5 * time.Second

// BuildSSHArgs assembles the argument list for the system ssh client.
// Host-key checking is disabled on purpose: the guest regenerates its
// host key on every reprovision and only ever has a NAT-local address,
// so pinning keys would just make every second connection fail.
func BuildSSHArgs(keyPath, user string, ip net.IP, connectTimeout time.Duration, command []string) []string {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	args := []string{
		"-i", keyPath,
		"-o", "IdentitiesOnly=yes",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "LogLevel=ERROR",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(connectTimeout.Seconds())),
		user + "@" + ip.String(),
	}
	return append(args, command...)
}

// RunSSH launches ssh attached to the caller's terminal and reports
// the client's exit code.
func RunSSH(ctx context.Context, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, "ssh", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	log.WithFunc("network.RunSSH").Debugf(ctx, "exec ssh %s", strings.Join(args, " "))
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, fmt.Errorf("exec ssh: %w", err)
}
