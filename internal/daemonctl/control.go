// Package daemonctl stops a running cratedig daemon from another process.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cratedig/internal/api"
	"cratedig/internal/apiclient"
)

// ErrDaemonNotRunning indicates nothing answered at the daemon address.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 200 * time.Millisecond

// StatusClient is the slice of the API client the controller needs.
type StatusClient interface {
	Status(ctx context.Context) (api.DaemonStatus, error)
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// signalProcess is replaced in tests.
var signalProcess = func(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}

// Stop asks the daemon to shut down with SIGTERM so in-flight releases are
// requeued, waits up to grace for its API to go away, and falls back to
// SIGKILL using the PID recorded in pidPath.
func Stop(ctx context.Context, client StatusClient, pidPath string, grace time.Duration) (StopResult, error) {
	status, err := client.Status(ctx)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnavailable) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := status.PID
	if pid <= 0 {
		pid, err = readPID(pidPath)
		if err != nil {
			return StopResult{}, err
		}
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := signalProcess(pid, syscall.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if WaitForShutdown(ctx, client, grace) == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	if err := ForceKill(pidPath, pid); err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	result.ForcedKill = true
	return result, nil
}

// WaitForShutdown polls the daemon until its API stops answering.
func WaitForShutdown(ctx context.Context, client StatusClient, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		status, err := client.Status(ctx)
		switch {
		case errors.Is(err, apiclient.ErrUnavailable):
			return nil
		case err == nil && !status.Running:
			return nil
		case err != nil:
			lastErr = err
		default:
			lastErr = errors.New("daemon still running")
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("daemon did not stop: %w", lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ForceKill sends SIGKILL to the daemon and removes its pid file. The pid file
// wins over fallbackPID when both are present.
func ForceKill(pidPath string, fallbackPID int) error {
	pid := fallbackPID
	if recorded, err := readPID(pidPath); err == nil {
		pid = recorded
	}
	if pid <= 0 {
		return fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	if err := signalProcess(pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q is malformed", path)
	}
	return pid, nil
}
