package daemonize

import (
	"errors"
	"strconv"
	"syscall"

	"daemonize/internal/detach"
	"daemonize/internal/identity"
	"daemonize/internal/pidfile"
	"daemonize/internal/privilege"
	"daemonize/internal/stdio"
)

// ErrorKind names the step that failed.
type ErrorKind int

const (
	Fork ErrorKind = iota + 1
	DetachSession
	GroupNotFound
	GroupContainsNul
	SetGroup
	UserNotFound
	UserContainsNul
	SetUser
	ChangeDirectory
	PathContainsNul
	OpenPidfile
	GetPidfileFlags
	SetPidfileFlags
	LockPidfile
	ChownPidfile
	OpenDevnull
	RedirectStreams
	CloseDevnull
	WritePid
	Chroot
)

var kindPhrases = map[ErrorKind]string{
	Fork:             "unable to fork",
	DetachSession:    "unable to create new session",
	GroupNotFound:    "unable to resolve group name to group id",
	GroupContainsNul: "group option contains NUL",
	SetGroup:         "unable to set group",
	UserNotFound:     "unable to resolve user name to user id",
	UserContainsNul:  "user option contains NUL",
	SetUser:          "unable to set user",
	ChangeDirectory:  "unable to change directory",
	PathContainsNul:  "pid_file option contains NUL",
	OpenPidfile:      "unable to open pid file",
	GetPidfileFlags:  "unable get pid file flags",
	SetPidfileFlags:  "unable set pid file flags",
	LockPidfile:      "unable to lock pid file",
	ChownPidfile:     "unable to chown pid file",
	OpenDevnull:      "unable to open /dev/null",
	RedirectStreams:  "unable to redirect standard streams to /dev/null",
	CloseDevnull:     "unable to close /dev/null",
	WritePid:         "unable to write self pid to pid file",
	Chroot:           "unable to chroot into directory",
}

func (k ErrorKind) String() string {
	if phrase, ok := kindPhrases[k]; ok {
		return phrase
	}
	return "unknown daemonize error " + strconv.Itoa(int(k))
}

// Error reports a failed daemonization step together with the OS error
// number captured when it failed. Errno is zero for failures that are not
// system call errors, such as an unknown user name.
type Error struct {
	Kind  ErrorKind
	Errno syscall.Errno

	cause error
}

func (e *Error) Error() string {
	if e.Errno != 0 {
		return e.Kind.String() + ", errno " + strconv.Itoa(int(e.Errno))
	}
	return e.Kind.String()
}

// Unwrap exposes the errno and the underlying cause.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Errno != 0 {
		errs = append(errs, e.Errno)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// Is matches another *Error of the same kind. A target with a zero Errno
// matches any errno, so the package sentinels match every failure of their
// kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	if other.Kind != e.Kind {
		return false
	}
	return other.Errno == 0 || other.Errno == e.Errno
}

var (
	ErrFork             = &Error{Kind: Fork}
	ErrDetachSession    = &Error{Kind: DetachSession}
	ErrGroupNotFound    = &Error{Kind: GroupNotFound}
	ErrGroupContainsNul = &Error{Kind: GroupContainsNul}
	ErrSetGroup         = &Error{Kind: SetGroup}
	ErrUserNotFound     = &Error{Kind: UserNotFound}
	ErrUserContainsNul  = &Error{Kind: UserContainsNul}
	ErrSetUser          = &Error{Kind: SetUser}
	ErrChangeDirectory  = &Error{Kind: ChangeDirectory}
	ErrPathContainsNul  = &Error{Kind: PathContainsNul}
	ErrOpenPidfile      = &Error{Kind: OpenPidfile}
	ErrGetPidfileFlags  = &Error{Kind: GetPidfileFlags}
	ErrSetPidfileFlags  = &Error{Kind: SetPidfileFlags}
	ErrLockPidfile      = &Error{Kind: LockPidfile}
	ErrChownPidfile     = &Error{Kind: ChownPidfile}
	ErrOpenDevnull      = &Error{Kind: OpenDevnull}
	ErrRedirectStreams  = &Error{Kind: RedirectStreams}
	ErrCloseDevnull     = &Error{Kind: CloseDevnull}
	ErrWritePid         = &Error{Kind: WritePid}
	ErrChroot           = &Error{Kind: Chroot}
)

// ErrAlreadyStarted is returned when a Daemonize value is started twice.
var ErrAlreadyStarted = errors.New("daemonize: already started")

// stepKinds maps the internal step errors onto the public kinds.
var stepKinds = []struct {
	sentinel error
	kind     ErrorKind
}{
	{detach.ErrSpawn, Fork},
	{detach.ErrInherit, OpenPidfile},
	{detach.ErrChdir, ChangeDirectory},
	{detach.ErrSetsid, DetachSession},
	{identity.ErrUserContainsNul, UserContainsNul},
	{identity.ErrUserNotFound, UserNotFound},
	{identity.ErrGroupContainsNul, GroupContainsNul},
	{identity.ErrGroupNotFound, GroupNotFound},
	{pidfile.ErrPathContainsNul, PathContainsNul},
	{pidfile.ErrOpen, OpenPidfile},
	{pidfile.ErrLock, LockPidfile},
	{pidfile.ErrGetFlags, GetPidfileFlags},
	{pidfile.ErrSetFlags, SetPidfileFlags},
	{pidfile.ErrChown, ChownPidfile},
	{pidfile.ErrWrite, WritePid},
	{stdio.ErrOpenNull, OpenDevnull},
	{stdio.ErrRedirect, RedirectStreams},
	{stdio.ErrCloseNull, CloseDevnull},
	{privilege.ErrSetGroup, SetGroup},
	{privilege.ErrSetUser, SetUser},
	{privilege.ErrChroot, Chroot},
}

// classify converts an error from one of the internal steps into an *Error.
// fallback is used when the error carries no known sentinel.
func classify(err error, fallback ErrorKind) *Error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged
	}
	kind := fallback
	for _, step := range stepKinds {
		if errors.Is(err, step.sentinel) {
			kind = step.kind
			break
		}
	}
	out := &Error{Kind: kind, cause: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		out.Errno = errno
	}
	return out
}
