package daemonize

import (
	"io/fs"
	"log/slog"
	"os"

	"daemonize/internal/identity"
	"daemonize/internal/logging"
	"daemonize/internal/stdio"
)

const (
	// DefaultUmask is applied when Umask is not called.
	DefaultUmask fs.FileMode = 0o027
	// DefaultWorkingDirectory is where the daemon runs unless told otherwise.
	DefaultWorkingDirectory = "/"
)

type (
	// User is the account the daemon drops to, by name or numeric id.
	User = identity.User
	// Group is the group the daemon drops to, by name or numeric id.
	Group = identity.Group
	// Stdio is the target of one standard stream.
	Stdio = stdio.Stdio
	// NameService resolves user and group names.
	NameService = identity.NameService
)

// UserName selects the user by login name.
func UserName(name string) User { return identity.UserName(name) }

// UserID selects the user by numeric uid.
func UserID(uid uint32) User { return identity.UserID(uid) }

// GroupName selects the group by name.
func GroupName(name string) Group { return identity.GroupName(name) }

// GroupID selects the group by numeric gid.
func GroupID(gid uint32) Group { return identity.GroupID(gid) }

// Discard sends a stream to /dev/null.
func Discard() Stdio { return stdio.Discard() }

// File sends a stream to f. The file must be opened before Start so that
// every stage opens it again.
func File(f *os.File) Stdio { return stdio.File(f) }

// Daemonize describes how to turn the current process into a daemon. Build it
// with New and the chained setters, then call Start or Execute once.
type Daemonize[T any] struct {
	directory        string
	pidFile          string
	chownPidFile     bool
	keepPidFileOpen  bool
	user             *User
	group            *Group
	umask            fs.FileMode
	root             string
	stdin            Stdio
	stdout           Stdio
	stderr           Stdio
	privilegedAction func() T
	exitAction       func()
	logger           *slog.Logger
	names            NameService
	started          bool
}

// New returns a configuration with the defaults: working directory "/",
// umask 0o027, no pid file, all streams discarded.
func New[T any]() *Daemonize[T] {
	return &Daemonize[T]{
		directory: DefaultWorkingDirectory,
		umask:     DefaultUmask,
		logger:    logging.NewNop(),
	}
}

// PidFile creates and locks path before detaching and writes the daemon's pid
// into it at the end.
func (d *Daemonize[T]) PidFile(path string) *Daemonize[T] {
	d.pidFile = path
	return d
}

// ChownPidFile hands the pid file to the configured user and group before
// privileges are dropped.
func (d *Daemonize[T]) ChownPidFile(chown bool) *Daemonize[T] {
	d.chownPidFile = chown
	return d
}

// ExecInheritsPidFile leaves the pid file descriptor open across exec so a
// program the daemon replaces itself with keeps the lock.
func (d *Daemonize[T]) ExecInheritsPidFile(keep bool) *Daemonize[T] {
	d.keepPidFileOpen = keep
	return d
}

// WorkingDirectory is where the daemon runs. Defaults to "/".
func (d *Daemonize[T]) WorkingDirectory(dir string) *Daemonize[T] {
	d.directory = dir
	return d
}

// User is the account the daemon drops to after the privileged action.
func (d *Daemonize[T]) User(u User) *Daemonize[T] {
	d.user = &u
	return d
}

// Group is the group the daemon drops to, before the user.
func (d *Daemonize[T]) Group(g Group) *Daemonize[T] {
	d.group = &g
	return d
}

// Umask is installed by the session leader. Defaults to 0o027.
func (d *Daemonize[T]) Umask(mask fs.FileMode) *Daemonize[T] {
	d.umask = mask
	return d
}

// Chroot changes the root directory after the privileged action runs.
func (d *Daemonize[T]) Chroot(dir string) *Daemonize[T] {
	d.root = dir
	return d
}

// Stdin sets the daemon's standard input. Defaults to /dev/null.
func (d *Daemonize[T]) Stdin(s Stdio) *Daemonize[T] {
	d.stdin = s
	return d
}

// Stdout sets the daemon's standard output. Defaults to /dev/null.
func (d *Daemonize[T]) Stdout(s Stdio) *Daemonize[T] {
	d.stdout = s
	return d
}

// Stderr sets the daemon's standard error. Defaults to /dev/null.
func (d *Daemonize[T]) Stderr(s Stdio) *Daemonize[T] {
	d.stderr = s
	return d
}

// PrivilegedAction runs in the daemon after the streams are redirected and
// before privileges are dropped. Its result is returned by Start.
func (d *Daemonize[T]) PrivilegedAction(action func() T) *Daemonize[T] {
	d.privilegedAction = action
	return d
}

// ExitAction runs in the original process right before it exits.
func (d *Daemonize[T]) ExitAction(action func()) *Daemonize[T] {
	d.exitAction = action
	return d
}

// Logger receives debug records for every stage transition.
func (d *Daemonize[T]) Logger(logger *slog.Logger) *Daemonize[T] {
	if logger == nil {
		logger = logging.NewNop()
	}
	d.logger = logger
	return d
}

// NameService replaces the system user and group database.
func (d *Daemonize[T]) NameService(names NameService) *Daemonize[T] {
	d.names = names
	return d
}
