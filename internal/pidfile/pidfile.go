package pidfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// Sentinel errors identify which step of pid file handling failed. The
// underlying OS error stays reachable through errors.As/errors.Is.
var (
	ErrPathContainsNul = errors.New("pid file path contains NUL")
	ErrOpen            = errors.New("open pid file")
	ErrLock            = errors.New("lock pid file")
	ErrGetFlags        = errors.New("get pid file flags")
	ErrSetFlags        = errors.New("set pid file flags")
	ErrChown           = errors.New("chown pid file")
	ErrWrite           = errors.New("write pid file")
)

// Mode is the permission the pid file is created with, before the umask.
const Mode fs.FileMode = 0o644

// File is an open pid file holding an exclusive advisory lock. The lock lives
// on the open file description, so it survives being handed to a re-executed
// child and is released only when the last descriptor referring to it closes.
type File struct {
	path string
	fh   *os.File
}

// Create opens (creating if needed) the pid file at path and takes an
// exclusive, non-blocking flock on it. A lock held by another process fails
// immediately with ErrLock wrapping EWOULDBLOCK.
func Create(path string) (*File, error) {
	if strings.IndexByte(path, 0) >= 0 {
		return nil, ErrPathContainsNul
	}

	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, Mode)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}
	if err := flockNonBlocking(fh); err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("%w %s: %w", ErrLock, path, err)
	}
	return &File{path: path, fh: fh}, nil
}

func flockNonBlocking(fh *os.File) error {
	for {
		err := unix.Flock(int(fh.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err != unix.EINTR {
			return err
		}
	}
}

// Adopt wraps a descriptor inherited from a parent stage. The lock taken by
// the parent is already attached to it.
func Adopt(fh *os.File) *File {
	return &File{path: fh.Name(), fh: fh}
}

// Path returns the pid file location.
func (f *File) Path() string {
	return f.path
}

// OSFile exposes the descriptor so it can be passed to a child process.
func (f *File) OSFile() *os.File {
	return f.fh
}

// SetCloseOnExec keeps the descriptor, and with it the lock, from leaking into
// programs the daemon later executes.
func (f *File) SetCloseOnExec() error {
	return f.setCloexec(true)
}

// KeepOnExec clears close-on-exec so an exec'd program inherits the lock.
func (f *File) KeepOnExec() error {
	return f.setCloexec(false)
}

func (f *File) setCloexec(on bool) error {
	fd := int(f.fh.Fd())
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGetFlags, err)
	}
	if on {
		flags |= unix.FD_CLOEXEC
	} else {
		flags &^= unix.FD_CLOEXEC
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags); err != nil {
		return fmt.Errorf("%w: %w", ErrSetFlags, err)
	}
	return nil
}

// Chown changes the pid file owner. A value of -1 leaves that id unchanged.
func (f *File) Chown(uid, gid int) error {
	if err := unix.Fchown(int(f.fh.Fd()), uid, gid); err != nil {
		return fmt.Errorf("%w %s: %w", ErrChown, f.path, err)
	}
	return nil
}

// WritePid replaces the file contents with the decimal pid and a trailing
// newline.
func (f *File) WritePid(pid int) error {
	if err := f.fh.Truncate(0); err != nil {
		return fmt.Errorf("%w %s: %w", ErrWrite, f.path, err)
	}
	if _, err := f.fh.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w %s: %w", ErrWrite, f.path, err)
	}
	value := strconv.Itoa(pid) + "\n"
	n, err := f.fh.WriteString(value)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrWrite, f.path, err)
	}
	if n != len(value) {
		return fmt.Errorf("%w %s: short write (%d of %d bytes)", ErrWrite, f.path, n, len(value))
	}
	return nil
}

// Close unlocks and releases the descriptor. The daemon never calls it; the
// lock goes away when the process exits.
func (f *File) Close() error {
	_ = unix.Flock(int(f.fh.Fd()), unix.LOCK_UN)
	return f.fh.Close()
}

// Handoff closes this process's descriptor without unlocking, leaving the lock
// with the children that inherited a copy of it.
func (f *File) Handoff() error {
	return f.fh.Close()
}

// Read parses the pid stored at path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pid file %q: %w", path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return 0, fmt.Errorf("pid file %q is empty", path)
	}
	pid, err := strconv.Atoi(value)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %q holds invalid pid %q", path, value)
	}
	return pid, nil
}

// Probe reports whether some process currently holds the lock on path. A
// missing file counts as unlocked.
func Probe(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat pid file %q: %w", path, err)
	}
	lock := flock.New(path, flock.SetFlag(os.O_RDONLY))
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe pid file lock %q: %w", path, err)
	}
	if !locked {
		return true, nil
	}
	if err := lock.Unlock(); err != nil {
		return false, fmt.Errorf("release pid file probe lock %q: %w", path, err)
	}
	return false, nil
}
