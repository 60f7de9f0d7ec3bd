package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/console"
	"github.com/vmctl-dev/vmctl/hypervisor"
	"github.com/vmctl-dev/vmctl/hypervisor/vz"
	"github.com/vmctl-dev/vmctl/types"
	"github.com/vmctl-dev/vmctl/utils"
	"github.com/vmctl-dev/vmctl/version"
)

const (
	// startupTimeout bounds how long the detached parent waits for the
	// supervisor to report Running. VZ reaches Running within seconds;
	// this does not wait for the guest OS to finish booting.
	startupTimeout = 60 * time.Second
	pollInterval   = 200 * time.Millisecond
)

var startCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the guest VM",
		Args:  cobra.NoArgs,
		RunE:  runStart,
	}
	cmd.Flags().BoolP("foreground", "f", false, "run the supervisor in the foreground instead of detaching")
	return cmd
}()

func runStart(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	if foreground, _ := cmd.Flags().GetBool("foreground"); foreground {
		return runSupervisor(ctx)
	}
	return launchDetached(ctx)
}

// launchDetached re-executes vmctl as a detached `start --foreground`
// supervisor with the resolved configuration pinned into its
// environment, then waits until the guest reports Running.
func launchDetached(ctx context.Context) error {
	reg, err := initRegistry()
	if err != nil {
		return err
	}
	// Refuse duplicates before forking; the supervisor would refuse too
	// but the error reads better without a round trip through the log.
	if cur, err := reg.Get(ctx, conf.Name); err == nil && !cur.State.Terminal() {
		return fmt.Errorf("%s (PID %d): %w", cur.Name, cur.PID, hypervisor.ErrAlreadyRunning)
	}
	if err := conf.EnsureVMDirs(conf.Name); err != nil {
		return err
	}

	pidFile := conf.VMPIDFile(conf.Name)
	_ = os.Remove(pidFile) // stale marker from a crashed supervisor

	logPath := conf.VMProcessLog(conf.Name)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open supervisor log: %w", err)
	}
	defer logFile.Close()

	self, err := os.Executable()
	if err != nil {
		return err
	}
	args := []string{"start", "--foreground"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if debug {
		args = append(args, "--debug")
	}

	child := exec.Command(self, args...)
	child.Env = append(os.Environ(), conf.Environ()...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("launch supervisor: %w", err)
	}
	pid := child.Process.Pid
	_ = child.Process.Release()

	if err := awaitRunning(ctx, reg, pidFile, logPath); err != nil {
		return err
	}

	fmt.Printf("Started %s (PID %d)\n", conf.Name, pid)
	fmt.Printf("  supervisor log: %s\n", logPath)
	fmt.Printf("  view serial output with: vmctl logs\n")
	fmt.Printf("  attach with: vmctl console\n")
	fmt.Printf("  stop with: vmctl stop\n")
	return nil
}

// awaitRunning waits for the supervisor's PID marker, then polls the
// registry until the guest is Running. A supervisor that dies on the
// way is flipped to Failed by registry reconciliation, which ends the
// poll with a pointer at the log.
func awaitRunning(ctx context.Context, reg *hypervisor.Registry, pidFile, logPath string) error {
	if err := utils.WaitForPath(ctx, pidFile, startupTimeout); err != nil {
		return fmt.Errorf("supervisor did not come up, check %s", logPath)
	}
	err := utils.WaitFor(ctx, startupTimeout, pollInterval, func() (bool, error) {
		rec, err := reg.Get(ctx, conf.Name)
		if err != nil {
			return false, nil // record not visible yet
		}
		switch rec.State {
		case types.VMStateRunning:
			return true, nil
		case types.VMStateFailed, types.VMStateStopped:
			return false, fmt.Errorf("guest failed to start, check %s", logPath)
		default:
			return false, nil
		}
	})
	if err != nil {
		return err
	}
	return nil
}

// runSupervisor is the foreground path: it owns the guest process from
// Configuring to a terminal state and is what `vmctl start` re-executes
// in the background.
func runSupervisor(ctx context.Context) error {
	logger := log.WithFunc("cmd.supervisor")
	logger.Infof(ctx, "%s %s supervisor for guest %s", version.NAME, version.VERSION, conf.Name)

	reg, err := initRegistry()
	if err != nil {
		return err
	}
	if err := conf.EnsureVMDirs(conf.Name); err != nil {
		return err
	}

	rec, err := guestRecord()
	if err != nil {
		return err
	}
	if err := reg.Register(ctx, rec); err != nil {
		return err
	}

	pidFile := conf.VMPIDFile(conf.Name)
	if err := utils.WritePIDFile(pidFile, os.Getpid()); err != nil {
		return failStart(reg, err)
	}
	defer os.Remove(pidFile)

	// The console server comes up first: its TTY is the serial device
	// the guest boots with.
	srv, err := console.NewServer(conf.VMConsoleSock(conf.Name), conf.VMSerialLog(conf.Name))
	if err != nil {
		return failStart(reg, err)
	}
	consoleCtx, stopConsole := context.WithCancel(context.Background())
	defer stopConsole()
	consoleDone := make(chan error, 1)
	go func() { consoleDone <- srv.Serve(consoleCtx) }()
	defer func() {
		stopConsole()
		_ = srv.Close()
		<-consoleDone
	}()

	driver, err := vz.New()
	if err != nil {
		return failStart(reg, err)
	}
	spec, err := guestSpec(srv.TTY())
	if err != nil {
		return failStart(reg, err)
	}
	if err := driver.Configure(ctx, spec); err != nil {
		return failStart(reg, fmt.Errorf("configure guest: %w", err))
	}

	if err := reg.Transition(ctx, conf.Name, types.VMStateStarting, nil); err != nil {
		return failStart(reg, err)
	}
	outcome, err := driver.Start(ctx)
	if err != nil {
		return failStart(reg, fmt.Errorf("start guest: %w", err))
	}
	if err := reg.Transition(ctx, conf.Name, types.VMStateRunning, nil); err != nil {
		return failStart(reg, err)
	}
	logger.Infof(ctx, "guest %s running, attach with `vmctl console`", conf.Name)

	runErr := superviseGuest(ctx, driver, outcome)

	teardown := context.Background()
	if runErr != nil {
		_ = reg.Transition(teardown, conf.Name, types.VMStateFailed, nil)
		return fmt.Errorf("guest %s: %w", conf.Name, runErr)
	}
	if err := reg.Transition(teardown, conf.Name, types.VMStateStopped, nil); err != nil {
		logger.Warnf(teardown, "record final state: %v", err)
	}
	logger.Infof(teardown, "guest %s stopped", conf.Name)
	return nil
}

// superviseGuest blocks until the guest reaches a terminal state. A
// cancelled ctx (SIGINT/SIGTERM) triggers a graceful stop request,
// escalating to a hard stop after the configured grace period.
func superviseGuest(ctx context.Context, driver hypervisor.Driver, outcome <-chan error) error {
	select {
	case err := <-outcome:
		return err
	case <-ctx.Done():
	}

	logger := log.WithFunc("cmd.superviseGuest")
	grace := time.Duration(conf.StopTimeoutSeconds) * time.Second
	teardown := context.Background()
	logger.Infof(teardown, "stop requested, asking guest to shut down (grace %s)", grace)
	if err := driver.Stop(teardown); err != nil {
		logger.Warnf(teardown, "graceful stop unavailable, killing guest: %v", err)
		_ = driver.Kill(teardown)
	}

	select {
	case err := <-outcome:
		return err
	case <-time.After(grace):
	}

	logger.Warnf(teardown, "guest ignored stop request for %s, killing it", grace)
	_ = driver.Kill(teardown)
	select {
	case err := <-outcome:
		return err
	case <-time.After(grace):
		return fmt.Errorf("guest would not stop")
	}
}

func failStart(reg *hypervisor.Registry, err error) error {
	_ = reg.Transition(context.Background(), conf.Name, types.VMStateFailed, nil)
	return err
}
