package pidfile_test

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"

	"daemonize/internal/pidfile"
)

func TestCreateLocksExclusively(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	first, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	defer first.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected pid file to exist: %v", err)
	}

	_, err = pidfile.Create(path)
	if err == nil {
		t.Fatal("expected second Create to fail while the lock is held")
	}
	if !errors.Is(err, pidfile.ErrLock) {
		t.Fatalf("expected ErrLock, got %v", err)
	}
	if !errors.Is(err, unix.EWOULDBLOCK) {
		t.Fatalf("expected EWOULDBLOCK in error chain, got %v", err)
	}
}

func TestCreateSucceedsAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	first, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	second, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("expected Create to succeed after release, got %v", err)
	}
	second.Close()
}

func TestCreateMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "daemon.pid")

	_, err := pidfile.Create(path)
	if !errors.Is(err, pidfile.ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist cause, got %v", err)
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) || errno != syscall.ENOENT {
		t.Fatalf("expected ENOENT errno, got %v", err)
	}
}

func TestCreateRejectsNul(t *testing.T) {
	_, err := pidfile.Create("/tmp/daemon\x00.pid")
	if !errors.Is(err, pidfile.ErrPathContainsNul) {
		t.Fatalf("expected ErrPathContainsNul, got %v", err)
	}
}

func TestWritePidTruncatesAndAppendsNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	file, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	defer file.Close()

	if err := file.WritePid(123456); err != nil {
		t.Fatalf("WritePid returned error: %v", err)
	}
	if err := file.WritePid(42); err != nil {
		t.Fatalf("WritePid returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if string(data) != "42\n" {
		t.Fatalf("unexpected pid file contents %q", data)
	}

	pid, err := pidfile.Read(path)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if pid != 42 {
		t.Fatalf("expected pid 42, got %d", pid)
	}
}

func TestChownLeavesUnsetSideUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	file, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	defer file.Close()

	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	beforeSys := before.Sys().(*syscall.Stat_t)

	if err := file.Chown(os.Getuid(), -1); err != nil {
		t.Fatalf("Chown returned error: %v", err)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	afterSys := after.Sys().(*syscall.Stat_t)
	if afterSys.Uid != uint32(os.Getuid()) {
		t.Fatalf("expected uid %d, got %d", os.Getuid(), afterSys.Uid)
	}
	if afterSys.Gid != beforeSys.Gid {
		t.Fatalf("expected gid to stay %d, got %d", beforeSys.Gid, afterSys.Gid)
	}
}

func TestChownFailureWrapsErrno(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root may chown to any uid")
	}
	path := filepath.Join(t.TempDir(), "daemon.pid")
	file, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	defer file.Close()

	err = file.Chown(0, -1)
	if !errors.Is(err, pidfile.ErrChown) {
		t.Fatalf("expected ErrChown, got %v", err)
	}
	if !errors.Is(err, syscall.EPERM) {
		t.Fatalf("expected EPERM, got %v", err)
	}
}

func TestCloseOnExecToggles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	file, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	defer file.Close()

	fd := file.OSFile().Fd()
	if err := file.KeepOnExec(); err != nil {
		t.Fatalf("KeepOnExec returned error: %v", err)
	}
	flags, err := unix.FcntlInt(fd, unix.F_GETFD, 0)
	if err != nil {
		t.Fatalf("fcntl: %v", err)
	}
	if flags&unix.FD_CLOEXEC != 0 {
		t.Fatal("expected close-on-exec to be cleared")
	}

	if err := file.SetCloseOnExec(); err != nil {
		t.Fatalf("SetCloseOnExec returned error: %v", err)
	}
	flags, err = unix.FcntlInt(fd, unix.F_GETFD, 0)
	if err != nil {
		t.Fatalf("fcntl: %v", err)
	}
	if flags&unix.FD_CLOEXEC == 0 {
		t.Fatal("expected close-on-exec to be set")
	}
}

func TestAdoptSharesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	file, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	dupFd, err := unix.Dup(int(file.OSFile().Fd()))
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	adopted := pidfile.Adopt(os.NewFile(uintptr(dupFd), path))

	// Handing off mirrors the parent stage letting go: the duplicate keeps
	// the lock alive.
	if err := file.Handoff(); err != nil {
		t.Fatalf("Handoff returned error: %v", err)
	}
	held, err := pidfile.Probe(path)
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if !held {
		t.Fatal("expected lock to survive through the adopted descriptor")
	}

	if err := adopted.WritePid(7); err != nil {
		t.Fatalf("WritePid through adopted handle: %v", err)
	}
	pid, err := pidfile.Read(path)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if pid != 7 {
		t.Fatalf("expected pid 7, got %d", pid)
	}

	if err := adopted.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	held, err = pidfile.Probe(path)
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if held {
		t.Fatal("expected lock to be released once every descriptor is closed")
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.pid")

	held, err := pidfile.Probe(path)
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if held {
		t.Fatal("expected missing pid file to be reported as unlocked")
	}

	file, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	held, err = pidfile.Probe(path)
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if !held {
		t.Fatal("expected Probe to report the lock as held")
	}

	file.Close()
	held, err = pidfile.Probe(path)
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if held {
		t.Fatal("expected Probe to report the lock as released")
	}
}

func TestReadRejectsInvalidContents(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty":    "",
		"garbage":  "not-a-pid\n",
		"negative": "-4\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := pidfile.Read(path); err == nil {
				t.Fatalf("expected error for contents %q", contents)
			}
		})
	}

	path := filepath.Join(dir, "spaced")
	if err := os.WriteFile(path, []byte("  "+strconv.Itoa(99)+" \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	pid, err := pidfile.Read(path)
	if err != nil || pid != 99 {
		t.Fatalf("expected pid 99, got %d (%v)", pid, err)
	}
}

func TestCreateDescriptorPassesLockToChild(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	path := filepath.Join(t.TempDir(), "daemon.pid")
	file, err := pidfile.Create(path)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	child := exec.Command(sleep, "30")
	child.ExtraFiles = []*os.File{file.OSFile()}
	if err := child.Start(); err != nil {
		t.Fatalf("start child: %v", err)
	}
	t.Cleanup(func() {
		_ = child.Process.Kill()
		_ = child.Wait()
	})

	if err := file.Handoff(); err != nil {
		t.Fatalf("Handoff returned error: %v", err)
	}
	held, err := pidfile.Probe(path)
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if !held {
		t.Fatal("expected the child's copy of the descriptor to keep the lock")
	}
	if _, err := pidfile.Create(path); !errors.Is(err, unix.EWOULDBLOCK) {
		t.Fatalf("expected EWOULDBLOCK while the child holds the lock, got %v", err)
	}

	if err := child.Process.Kill(); err != nil {
		t.Fatalf("kill child: %v", err)
	}
	_ = child.Wait()
	held, err = pidfile.Probe(path)
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if held {
		t.Fatal("expected the lock to be released once the child exited")
	}
}
