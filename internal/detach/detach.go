package detach

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Stage identifies which of the three daemonization processes is running.
type Stage int

const (
	// Original is the process the user started.
	Original Stage = iota
	// SessionLeader is the first re-executed child; it creates the session.
	SessionLeader
	// Daemon is the final process.
	Daemon
)

func (s Stage) String() string {
	switch s {
	case Original:
		return "original"
	case SessionLeader:
		return "session_leader"
	case Daemon:
		return "daemon"
	default:
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
}

const (
	EnvStage = "_DAEMONIZE_STAGE"
	EnvFD    = "_DAEMONIZE_PIDFILE_FD"
	EnvRunID = "_DAEMONIZE_RUN_ID"
)

// inheritedFD is where the first ExtraFiles entry lands in the child.
const inheritedFD = 3

var (
	ErrSpawn   = errors.New("unable to fork")
	ErrChdir   = errors.New("unable to change directory")
	ErrSetsid  = errors.New("unable to create new session")
	ErrInherit = errors.New("inherited descriptor missing")
)

// Current reads the stage marker from the environment.
func Current() Stage {
	value, ok := os.LookupEnv(EnvStage)
	if !ok {
		return Original
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < int(Original) || n > int(Daemon) {
		return Original
	}
	return Stage(n)
}

// RunID returns the identifier shared by every stage of one daemonization,
// minting one in the original process.
func RunID() string {
	if id := os.Getenv(EnvRunID); id != "" {
		return id
	}
	id := uuid.NewString()
	_ = os.Setenv(EnvRunID, id)
	return id
}

// Spawn re-executes the running binary as stage next. Standard streams are
// shared with the caller so anything that fails before redirection is still
// visible. When inherit is non-nil it becomes fd 3 in the child.
func Spawn(next Stage, inherit *os.File) (*os.Process, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: resolve executable: %w", ErrSpawn, err)
	}

	cmd := exec.Command(path, os.Args[1:]...)
	cmd.Args[0] = os.Args[0]
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = childEnv(next, inherit != nil)
	if inherit != nil {
		cmd.ExtraFiles = []*os.File{inherit}
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	return cmd.Process, nil
}

func childEnv(next Stage, withFD bool) []string {
	env := make([]string, 0, len(os.Environ())+3)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvStage+"=") || strings.HasPrefix(kv, EnvFD+"=") || strings.HasPrefix(kv, EnvRunID+"=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, EnvStage+"="+strconv.Itoa(int(next)), EnvRunID+"="+RunID())
	if withFD {
		env = append(env, EnvFD+"="+strconv.Itoa(inheritedFD))
	}
	return env
}

// Inherited returns the descriptor handed over by the previous stage, or nil
// when none was passed.
func Inherited(name string) (*os.File, error) {
	value, ok := os.LookupEnv(EnvFD)
	if !ok {
		return nil, nil
	}
	fd, err := strconv.Atoi(value)
	if err != nil || fd < 0 {
		return nil, fmt.Errorf("%w: bad %s=%q", ErrInherit, EnvFD, value)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		return nil, fmt.Errorf("%w: fd %d: %w", ErrInherit, fd, err)
	}
	return os.NewFile(uintptr(fd), name), nil
}

// Detach runs in the session leader stage: it changes to dir, starts a new
// session without a controlling terminal and installs mask as the umask.
func Detach(dir string, mask int) error {
	if err := unix.Chdir(dir); err != nil {
		return fmt.Errorf("%w to %s: %w", ErrChdir, dir, err)
	}
	if _, err := unix.Setsid(); err != nil {
		return fmt.Errorf("%w: %w", ErrSetsid, err)
	}
	unix.Umask(mask)
	return nil
}

// Clear removes the stage markers so programs the daemon starts begin as
// ordinary processes.
func Clear() {
	for _, key := range []string{EnvStage, EnvFD, EnvRunID} {
		_ = os.Unsetenv(key)
	}
}
