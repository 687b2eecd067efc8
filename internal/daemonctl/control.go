package daemonctl

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"daemonize/internal/pidfile"
)

// ErrDaemonNotRunning indicates nothing holds the pid file lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 100 * time.Millisecond

// Status describes what the pid file says about a daemon.
type Status struct {
	PidFile string
	// PID is zero when the file is missing or does not hold a pid yet.
	PID    int
	Locked bool
	Alive  bool
}

// Running reports whether a live process holds the lock.
func (s Status) Running() bool {
	return s.Locked && s.Alive
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Inspect reads the pid file at pidPath and probes its lock and process.
func Inspect(pidPath string) (Status, error) {
	status := Status{PidFile: pidPath}
	locked, err := pidfile.Probe(pidPath)
	if err != nil {
		return status, err
	}
	status.Locked = locked

	// A daemon that is still starting holds the lock before writing its pid.
	if pid, err := pidfile.Read(pidPath); err == nil {
		status.PID = pid
		status.Alive = processAlive(pid)
	}
	return status, nil
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Stop sends SIGTERM to the daemon recorded in pidPath and waits up to
// gracePeriod for it to release the lock, then falls back to SIGKILL.
func Stop(pidPath string, gracePeriod time.Duration) (StopResult, error) {
	status, err := Inspect(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if !status.Locked {
		return StopResult{}, ErrDaemonNotRunning
	}
	if status.PID <= 0 {
		return StopResult{}, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}

	result := StopResult{PID: status.PID}
	if err := unix.Kill(status.PID, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("signal daemon process %d: %w", status.PID, err)
	}
	if err := WaitForRelease(pidPath, gracePeriod); err == nil {
		return result, nil
	}

	if err := ForceKillProcess(status.PID); err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	result.ForcedKill = true
	if err := WaitForRelease(pidPath, gracePeriod); err != nil {
		return result, err
	}
	return result, nil
}

// ForceKillProcess sends SIGKILL to pid. A process that is already gone is
// not an error.
func ForceKillProcess(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid daemon pid %d", pid)
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	return nil
}

// WaitForRelease waits for the pid file lock to be released.
func WaitForRelease(pidPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		locked, err := pidfile.Probe(pidPath)
		if err == nil && !locked {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.New("pid file still locked")
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}
