package stdio_test

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"daemonize/internal/stdio"
)

const (
	helperEnv    = "STDIO_TEST_HELPER_OUT"
	helperStderr = "STDIO_TEST_HELPER_ERR"
	helperStdin  = "STDIO_TEST_HELPER_CLOSED_STDIN"
)

func TestMain(m *testing.M) {
	if in := os.Getenv(helperStdin); in != "" {
		os.Exit(runClosedStdinHelper(in))
	}
	if out := os.Getenv(helperEnv); out != "" {
		os.Exit(runHelper(out, os.Getenv(helperStderr)))
	}
	os.Exit(m.Run())
}

// runHelper redirects its own streams and writes to all of them.
func runHelper(outPath, errPath string) int {
	out, err := os.Create(outPath)
	if err != nil {
		return 2
	}
	stderr := stdio.Discard()
	if errPath != "" {
		f, err := os.Create(errPath)
		if err != nil {
			return 2
		}
		stderr = stdio.File(f)
	}

	if err := stdio.Redirect(stdio.Discard(), stdio.File(out), stderr); err != nil {
		return 3
	}

	fmt.Fprint(os.Stdout, "stdout data\n")
	fmt.Fprint(os.Stderr, "stderr data\n")
	buf := make([]byte, 1)
	if n, _ := os.Stdin.Read(buf); n != 0 {
		return 4
	}
	return 0
}

// runClosedStdinHelper starts with fd 0 closed, so the null device would be
// opened onto slot 0, and sends stdin to a file while discarding stdout.
func runClosedStdinHelper(inPath string) int {
	in, err := os.OpenFile(inPath, os.O_RDWR, 0)
	if err != nil {
		return 2
	}
	if err := unix.Close(unix.Stdin); err != nil {
		return 2
	}
	if err := stdio.Redirect(stdio.File(in), stdio.Discard(), stdio.Discard()); err != nil {
		return 3
	}
	if _, err := unix.Write(unix.Stdout, []byte("discarded\n")); err != nil {
		return 4
	}
	var st unix.Stat_t
	if err := unix.Fstat(unix.Stdout, &st); err != nil || st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return 5
	}
	return 0
}

func runRedirectHelper(t *testing.T, env ...string) (string, string) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = bytes.NewBufferString("terminal input")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("helper failed: %v (stderr %q)", err, stderr.String())
	}
	return stdout.String(), stderr.String()
}

func TestRedirectToFileAndDiscard(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "stdout")

	stdout, stderr := runRedirectHelper(t, helperEnv+"="+outPath)

	if stdout != "" || stderr != "" {
		t.Fatalf("expected nothing on the original streams, got stdout %q stderr %q", stdout, stderr)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read redirected stdout: %v", err)
	}
	if string(data) != "stdout data\n" {
		t.Fatalf("unexpected stdout contents %q", data)
	}
}

func TestRedirectBothToFiles(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "stdout")
	errPath := filepath.Join(dir, "stderr")

	stdout, stderr := runRedirectHelper(t, helperEnv+"="+outPath, helperStderr+"="+errPath)
	if stdout != "" || stderr != "" {
		t.Fatalf("expected nothing on the original streams, got stdout %q stderr %q", stdout, stderr)
	}

	data, err := os.ReadFile(errPath)
	if err != nil {
		t.Fatalf("read redirected stderr: %v", err)
	}
	if string(data) != "stderr data\n" {
		t.Fatalf("unexpected stderr contents %q", data)
	}
}

func TestRedirectWithClosedStandardSlot(t *testing.T) {
	inPath := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(inPath, nil, 0o644); err != nil {
		t.Fatalf("create stdin file: %v", err)
	}

	cmd := exec.Command(os.Args[0], "-test.run=^$")
	cmd.Env = append(os.Environ(), helperStdin+"="+inPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("helper failed: %v (%q)", err, out)
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		t.Fatalf("read stdin file: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected discarded stdout to stay off the stdin file, got %q", data)
	}
}

func TestDiscardedZeroValue(t *testing.T) {
	var s stdio.Stdio
	if !s.Discarded() {
		t.Fatal("expected zero value to discard")
	}
	if !stdio.File(nil).Discarded() {
		t.Fatal("expected nil file to discard")
	}
	if stdio.File(os.Stdout).Discarded() {
		t.Fatal("expected file target not to discard")
	}
}
