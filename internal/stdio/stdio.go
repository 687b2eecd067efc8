package stdio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var (
	ErrOpenNull  = errors.New("unable to open " + os.DevNull)
	ErrRedirect  = errors.New("unable to redirect standard streams")
	ErrCloseNull = errors.New("unable to close " + os.DevNull)
)

// Stdio describes where one standard stream of the daemon goes. The zero
// value discards the stream.
type Stdio struct {
	file *os.File
}

// Discard sends the stream to the null device.
func Discard() Stdio { return Stdio{} }

// File sends the stream to an already open file. A nil file discards.
func File(f *os.File) Stdio { return Stdio{file: f} }

// Discarded reports whether the stream goes to the null device.
func (s Stdio) Discarded() bool { return s.file == nil }

// Redirect points fds 0, 1 and 2 at the requested targets, in that order. The
// first failing dup aborts the remaining slots. Redirect works even when some
// of the standard slots are closed on entry.
func Redirect(stdin, stdout, stderr Stdio) error {
	nullFd, err := openNull()
	if err != nil {
		return err
	}

	slots := [...]struct {
		fd     int
		target Stdio
	}{
		{fd: unix.Stdin, target: stdin},
		{fd: unix.Stdout, target: stdout},
		{fd: unix.Stderr, target: stderr},
	}
	for _, slot := range slots {
		src := nullFd
		if !slot.target.Discarded() {
			src = int(slot.target.file.Fd())
		}
		if src == slot.fd {
			continue
		}
		if err := unix.Dup3(src, slot.fd, 0); err != nil {
			_ = unix.Close(nullFd)
			return fmt.Errorf("%w: fd %d: %w", ErrRedirect, slot.fd, err)
		}
	}

	if err := unix.Close(nullFd); err != nil {
		return fmt.Errorf("%w: %w", ErrCloseNull, err)
	}
	return nil
}

// openNull opens the null device above the standard slots, so redirecting a
// slot can never replace the descriptor the remaining slots are copied from.
// A raw descriptor keeps the runtime from finalizing it behind our back.
func openNull() (int, error) {
	fd, err := unix.Open(os.DevNull, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrOpenNull, err)
	}
	if fd > unix.Stderr {
		return fd, nil
	}
	high, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, unix.Stderr+1)
	_ = unix.Close(fd)
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrOpenNull, err)
	}
	return high, nil
}
