package daemonize

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"
	"testing"

	"daemonize/internal/detach"
	"daemonize/internal/identity"
	"daemonize/internal/pidfile"
	"daemonize/internal/stdio"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: Fork, Errno: syscall.EAGAIN}, fmt.Sprintf("unable to fork, errno %d", int(syscall.EAGAIN))},
		{&Error{Kind: LockPidfile, Errno: syscall.EWOULDBLOCK}, fmt.Sprintf("unable to lock pid file, errno %d", int(syscall.EWOULDBLOCK))},
		{&Error{Kind: UserNotFound}, "unable to resolve user name to user id"},
		{&Error{Kind: GroupContainsNul}, "group option contains NUL"},
		{&Error{Kind: PathContainsNul}, "pid_file option contains NUL"},
		{&Error{Kind: GetPidfileFlags, Errno: syscall.EBADF}, fmt.Sprintf("unable get pid file flags, errno %d", int(syscall.EBADF))},
		{&Error{Kind: RedirectStreams, Errno: syscall.EBADF}, fmt.Sprintf("unable to redirect standard streams to /dev/null, errno %d", int(syscall.EBADF))},
		{&Error{Kind: WritePid}, "unable to write self pid to pid file"},
		{&Error{Kind: Chroot, Errno: syscall.EPERM}, fmt.Sprintf("unable to chroot into directory, errno %d", int(syscall.EPERM))},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("kind %d: expected %q, got %q", tc.err.Kind, tc.want, got)
		}
	}
}

func TestEveryKindHasPhrase(t *testing.T) {
	for kind := Fork; kind <= Chroot; kind++ {
		if _, ok := kindPhrases[kind]; !ok {
			t.Errorf("kind %d has no phrase", kind)
		}
	}
	if got := ErrorKind(99).String(); got != "unknown daemonize error 99" {
		t.Fatalf("unexpected unknown kind string %q", got)
	}
}

func TestErrorIs(t *testing.T) {
	err := error(&Error{Kind: LockPidfile, Errno: syscall.EWOULDBLOCK})

	if !errors.Is(err, ErrLockPidfile) {
		t.Fatal("expected sentinel to match any errno")
	}
	if !errors.Is(err, &Error{Kind: LockPidfile, Errno: syscall.EWOULDBLOCK}) {
		t.Fatal("expected exact match")
	}
	if errors.Is(err, &Error{Kind: LockPidfile, Errno: syscall.EACCES}) {
		t.Fatal("expected mismatched errno not to match")
	}
	if errors.Is(err, ErrOpenPidfile) {
		t.Fatal("expected different kind not to match")
	}
	if !errors.Is(err, syscall.EWOULDBLOCK) {
		t.Fatal("expected errno to be reachable")
	}
	if errors.Is(&Error{Kind: UserNotFound}, syscall.Errno(0)) {
		t.Fatal("expected zero errno not to be exposed")
	}
}

func TestClassifyPidFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	held, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	defer held.Close()

	_, err = pidfile.Create(path)
	tagged := classify(err, OpenPidfile)
	if tagged.Kind != LockPidfile {
		t.Fatalf("expected LockPidfile, got %v", tagged.Kind)
	}
	if tagged.Errno != syscall.EWOULDBLOCK {
		t.Fatalf("expected EWOULDBLOCK, got %v", tagged.Errno)
	}

	_, err = pidfile.Create(filepath.Join(t.TempDir(), "missing", "daemon.pid"))
	tagged = classify(err, LockPidfile)
	if tagged.Kind != OpenPidfile || tagged.Errno != syscall.ENOENT {
		t.Fatalf("expected OpenPidfile with ENOENT, got %v (%d)", tagged.Kind, tagged.Errno)
	}
	if !errors.Is(tagged, fs.ErrNotExist) {
		t.Fatal("expected the cause to stay reachable")
	}

	_, err = pidfile.Create("bad\x00path")
	if tagged = classify(err, OpenPidfile); tagged.Kind != PathContainsNul {
		t.Fatalf("expected PathContainsNul, got %v", tagged.Kind)
	}
}

func TestClassifyStepErrors(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{fmt.Errorf("%w: %w", detach.ErrSpawn, syscall.EAGAIN), Fork},
		{fmt.Errorf("%w to /nowhere: %w", detach.ErrChdir, syscall.ENOENT), ChangeDirectory},
		{fmt.Errorf("%w: %w", detach.ErrSetsid, syscall.EPERM), DetachSession},
		{fmt.Errorf("%w: %q", identity.ErrUserNotFound, "ghost"), UserNotFound},
		{identity.ErrGroupContainsNul, GroupContainsNul},
		{fmt.Errorf("%w: %w", stdio.ErrOpenNull, syscall.ENOENT), OpenDevnull},
		{fmt.Errorf("%w: %w", stdio.ErrCloseNull, syscall.EIO), CloseDevnull},
		{errors.New("unrecognised"), SetUser},
	}
	for _, tc := range tests {
		if got := classify(tc.err, SetUser); got.Kind != tc.want {
			t.Errorf("%v: expected %v, got %v", tc.err, tc.want, got.Kind)
		}
	}

	already := &Error{Kind: Chroot}
	if got := classify(already, Fork); got != already {
		t.Fatal("expected tagged errors to pass through unchanged")
	}
	if classify(nil, Fork) != nil {
		t.Fatal("expected nil for nil error")
	}
}
