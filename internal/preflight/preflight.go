package preflight

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"daemonize/internal/config"
	"daemonize/internal/identity"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to cfg. command is the payload argv
// and may be empty when no payload is known yet.
func RunAll(cfg *config.Config, command []string, names identity.NameService) []Result {
	if cfg == nil {
		return nil
	}
	d := cfg.Daemon

	var results []Result
	if d.PidFile != "" {
		results = append(results, CheckDirectoryAccess("Pid file directory", filepath.Dir(d.PidFile), unix.W_OK|unix.X_OK))
	}
	results = append(results, CheckDirectoryAccess("Working directory", d.WorkingDirectory, unix.X_OK))
	if d.Chroot != "" {
		results = append(results, CheckDirectoryAccess("Chroot", d.Chroot, unix.X_OK))
	}
	if d.Stdout != "" {
		results = append(results, CheckDirectoryAccess("Stdout directory", filepath.Dir(d.Stdout), unix.W_OK|unix.X_OK))
	}
	if d.Stderr != "" {
		results = append(results, CheckDirectoryAccess("Stderr directory", filepath.Dir(d.Stderr), unix.W_OK|unix.X_OK))
	}
	if d.User != "" || d.Group != "" {
		results = append(results, CheckIdentity(d.User, d.Group, names))
	}
	// Inside a chroot the payload is looked up after the root changes.
	if len(command) > 0 && d.Chroot == "" {
		results = append(results, CheckCommand(command[0]))
	}
	return results
}

// Failure returns the first failed result.
func Failure(results []Result) (Result, bool) {
	for _, r := range results {
		if !r.Passed {
			return r, true
		}
	}
	return Result{}, false
}

// Err converts the first failed result into an error.
func Err(results []Result) error {
	r, failed := Failure(results)
	if !failed {
		return nil
	}
	return fmt.Errorf("preflight %s: %s", strings.ToLower(r.Name), r.Detail)
}
