// Package privilege changes root directory and drops to an unprivileged uid and gid.
package privilege

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	ErrSetGroup = errors.New("unable to set group")
	ErrSetUser  = errors.New("unable to set user")
	ErrChroot   = errors.New("unable to chroot")
)

// SetGroup switches the real, effective and saved gid. It must run before
// SetUser: once the uid is dropped the process can no longer change group.
func SetGroup(gid int) error {
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("%w %d: %w", ErrSetGroup, gid, err)
	}
	return nil
}

// SetUser switches the real, effective and saved uid.
func SetUser(uid int) error {
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("%w %d: %w", ErrSetUser, uid, err)
	}
	return nil
}

// Drop applies gid and then uid, skipping either when negative.
func Drop(uid, gid int) error {
	if gid >= 0 {
		if err := SetGroup(gid); err != nil {
			return err
		}
	}
	if uid >= 0 {
		if err := SetUser(uid); err != nil {
			return err
		}
	}
	return nil
}

// Chroot changes the root directory. The working directory is left alone.
func Chroot(path string) error {
	if err := unix.Chroot(path); err != nil {
		return fmt.Errorf("%w %s: %w", ErrChroot, path, err)
	}
	return nil
}
