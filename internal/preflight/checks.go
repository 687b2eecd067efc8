package preflight

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"daemonize/internal/identity"
)

// CheckDirectoryAccess verifies path is a directory the current process can
// use with the given unix.Access mode bits.
func CheckDirectoryAccess(name, path string, mode uint32) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s does not exist", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("stat %s: %v", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s is not a directory", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not accessible (%s)", path, describeMode(mode))}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

func describeMode(mode uint32) string {
	var parts []string
	if mode&unix.R_OK != 0 {
		parts = append(parts, "read")
	}
	if mode&unix.W_OK != 0 {
		parts = append(parts, "write")
	}
	if mode&unix.X_OK != 0 {
		parts = append(parts, "search")
	}
	return strings.Join(parts, "/")
}

// CheckIdentity resolves the configured user and group the same way the
// daemon will after it detaches.
func CheckIdentity(user, group string, names identity.NameService) Result {
	const name = "Identity"

	var u *identity.User
	var g *identity.Group
	var parts []string
	if user != "" {
		parsed := identity.ParseUser(user)
		u = &parsed
	}
	if group != "" {
		parsed := identity.ParseGroup(group)
		g = &parsed
	}

	resolved, err := identity.NewResolver(names).Resolve(u, g)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUserNotFound):
			return Result{Name: name, Detail: fmt.Sprintf("user %q not found", user)}
		case errors.Is(err, identity.ErrGroupNotFound):
			return Result{Name: name, Detail: fmt.Sprintf("group %q not found", group)}
		default:
			return Result{Name: name, Detail: err.Error()}
		}
	}
	if resolved.UID != identity.Unset {
		parts = append(parts, fmt.Sprintf("uid=%d", resolved.UID))
	}
	if resolved.GID != identity.Unset {
		parts = append(parts, fmt.Sprintf("gid=%d", resolved.GID))
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(parts, " ")}
}

// CheckCommand reports whether the payload binary can be found in PATH.
func CheckCommand(command string) Result {
	const name = "Command"

	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return Result{Name: name, Detail: "command not configured"}
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("binary %q not found", cmd)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}
