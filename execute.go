package daemonize

import (
	"log/slog"
	"os"

	"daemonize/internal/detach"
	"daemonize/internal/identity"
	"daemonize/internal/logging"
	"daemonize/internal/pidfile"
	"daemonize/internal/privilege"
	"daemonize/internal/stdio"
)

// Parent is what the original process learns from Execute.
type Parent struct {
	// FirstChildExitCode is the exit status of the session leader, or -1 when
	// it could not be collected.
	FirstChildExitCode int
}

// Child is what the daemon learns from Execute.
type Child[T any] struct {
	PrivilegedActionResult T
}

// Outcome reports which side of the detachment the caller is on. Exactly one
// of Parent and Child is set; Err is set when a step failed on that side.
type Outcome[T any] struct {
	Parent *Parent
	Child  *Child[T]
	Err    error
}

func (o Outcome[T]) IsParent() bool { return o.Parent != nil }

func (o Outcome[T]) IsChild() bool { return o.Child != nil }

// pinned keeps the daemon's pid file reachable for the life of the process.
// A collected *os.File would close the descriptor and drop the lock.
var pinned *pidfile.File

// Start turns the calling process into a daemon and returns the privileged
// action's result in the daemon.
//
// Each detachment step re-executes the program, so everything main does
// before Start runs once per stage; call it early and keep that code free of
// side effects other than opening files. The original process runs the exit
// action and exits with status 0; the intermediate process exits with status
// 0. A failure before the first re-exec is returned in the original process,
// later failures are returned in the process where they happened.
func (d *Daemonize[T]) Start() (T, error) {
	outcome := d.execute(true)
	if outcome.Err != nil {
		var zero T
		return zero, outcome.Err
	}
	return outcome.Child.PrivilegedActionResult, nil
}

// Execute is Start without terminating the original process: it returns an
// Outcome with Parent set there instead. The exit action is not run.
func (d *Daemonize[T]) Execute() Outcome[T] {
	return d.execute(false)
}

func (d *Daemonize[T]) execute(exitParent bool) Outcome[T] {
	if d.started {
		return Outcome[T]{Err: ErrAlreadyStarted}
	}
	d.started = true

	stage := detach.Current()
	logger := d.logger.With(logging.Args(
		logging.String(logging.FieldStage, stage.String()),
		logging.String(logging.FieldRunID, detach.RunID()),
		logging.Int(logging.FieldPID, os.Getpid()),
	)...)

	switch stage {
	case detach.Original:
		return d.runOriginal(logger, exitParent)
	case detach.SessionLeader:
		return d.runSessionLeader(logger)
	default:
		return d.runDaemon(logger)
	}
}

func (d *Daemonize[T]) runOriginal(logger *slog.Logger, exitParent bool) Outcome[T] {
	failed := func(err error, fallback ErrorKind) Outcome[T] {
		detach.Clear()
		tagged := classify(err, fallback)
		logger.Debug("daemonization failed before detaching", logging.Error(tagged))
		return Outcome[T]{Parent: &Parent{FirstChildExitCode: -1}, Err: tagged}
	}

	var pid *pidfile.File
	var inherit *os.File
	if d.pidFile != "" {
		f, err := pidfile.Create(d.pidFile)
		if err != nil {
			return failed(err, OpenPidfile)
		}
		logger.Debug("pid file locked", logging.String("path", d.pidFile))
		pid = f
		inherit = f.OSFile()
	}

	proc, err := detach.Spawn(detach.SessionLeader, inherit)
	if err != nil {
		if pid != nil {
			_ = pid.Close()
		}
		return failed(err, Fork)
	}
	if pid != nil {
		_ = pid.Handoff()
	}
	logger.Debug("session leader started", logging.Int("child_pid", proc.Pid))

	state, err := proc.Wait()
	if err != nil {
		return failed(err, Fork)
	}
	code := state.ExitCode()
	detach.Clear()
	logger.Debug("session leader exited", logging.Int("exit_code", code))

	if exitParent {
		d.runExitAction(logger)
		os.Exit(0)
	}
	return Outcome[T]{Parent: &Parent{FirstChildExitCode: code}}
}

func (d *Daemonize[T]) runSessionLeader(logger *slog.Logger) Outcome[T] {
	defer detach.Clear()
	failed := func(err error, fallback ErrorKind) Outcome[T] {
		tagged := classify(err, fallback)
		logger.Debug("session leader failed", logging.Error(tagged))
		return Outcome[T]{Child: &Child[T]{}, Err: tagged}
	}

	fh, err := detach.Inherited(d.pidFileName())
	if err != nil {
		return failed(err, OpenPidfile)
	}
	if err := detach.Detach(d.directory, int(d.umask.Perm())); err != nil {
		return failed(err, DetachSession)
	}
	proc, err := detach.Spawn(detach.Daemon, fh)
	if err != nil {
		return failed(err, Fork)
	}
	logger.Debug("daemon started", logging.Int("child_pid", proc.Pid))
	os.Exit(0)
	return Outcome[T]{}
}

func (d *Daemonize[T]) runDaemon(logger *slog.Logger) Outcome[T] {
	defer detach.Clear()
	failed := func(err error, fallback ErrorKind) Outcome[T] {
		tagged := classify(err, fallback)
		logger.Debug("daemon setup failed", logging.Error(tagged))
		return Outcome[T]{Child: &Child[T]{}, Err: tagged}
	}

	fh, err := detach.Inherited(d.pidFileName())
	if err != nil {
		return failed(err, OpenPidfile)
	}
	var pid *pidfile.File
	if fh != nil {
		pid = pidfile.Adopt(fh)
		pinned = pid
		if d.keepPidFileOpen {
			err = pid.KeepOnExec()
		} else {
			err = pid.SetCloseOnExec()
		}
		if err != nil {
			return failed(err, SetPidfileFlags)
		}
	}

	if err := stdio.Redirect(d.stdin, d.stdout, d.stderr); err != nil {
		return failed(err, RedirectStreams)
	}

	resolved, err := identity.NewResolver(d.names).Resolve(d.user, d.group)
	if err != nil {
		return failed(err, UserNotFound)
	}
	if pid != nil && d.chownPidFile && resolved.Configured() {
		if err := pid.Chown(resolved.UID, resolved.GID); err != nil {
			return failed(err, ChownPidfile)
		}
	}

	var result T
	if d.privilegedAction != nil {
		result = d.privilegedAction()
	}

	if d.root != "" {
		if err := privilege.Chroot(d.root); err != nil {
			return failed(err, Chroot)
		}
	}
	if err := privilege.Drop(resolved.UID, resolved.GID); err != nil {
		return failed(err, SetUser)
	}

	if pid != nil {
		if err := pid.WritePid(os.Getpid()); err != nil {
			return failed(err, WritePid)
		}
	}
	logger.Debug("daemon ready", logging.Int("uid", os.Getuid()), logging.Int("gid", os.Getgid()))
	return Outcome[T]{Child: &Child[T]{PrivilegedActionResult: result}}
}

func (d *Daemonize[T]) runExitAction(logger *slog.Logger) {
	if d.exitAction == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("exit action panicked", logging.Any("panic", r))
		}
	}()
	d.exitAction()
}

func (d *Daemonize[T]) pidFileName() string {
	if d.pidFile != "" {
		return d.pidFile
	}
	return "pid file"
}
