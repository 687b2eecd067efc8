package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"daemonize/internal/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDaemon(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ParseUmask reads an octal permission mask such as "027" or "0o077".
func ParseUmask(value string) (fs.FileMode, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0o"), "0O")
	if trimmed == "" {
		return 0, errors.New("umask must not be empty")
	}
	mask, err := strconv.ParseUint(trimmed, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("umask %q is not an octal number", value)
	}
	if mask > 0o777 {
		return 0, fmt.Errorf("umask %q is out of range (max 0777)", value)
	}
	return fs.FileMode(mask), nil
}

func (c *Config) validateDaemon() error {
	if strings.TrimSpace(c.Daemon.WorkingDirectory) == "" {
		return errors.New("daemon.working_directory must be set")
	}
	if _, err := ParseUmask(c.Daemon.Umask); err != nil {
		return fmt.Errorf("daemon.umask: %w", err)
	}
	for key, value := range map[string]string{
		"daemon.user":              c.Daemon.User,
		"daemon.group":             c.Daemon.Group,
		"daemon.pid_file":          c.Daemon.PidFile,
		"daemon.working_directory": c.Daemon.WorkingDirectory,
		"daemon.chroot":            c.Daemon.Chroot,
	} {
		if strings.IndexByte(value, 0) >= 0 {
			return fmt.Errorf("%s contains NUL", key)
		}
	}
	if c.Daemon.ChownPidFile {
		if c.Daemon.PidFile == "" {
			return errors.New("daemon.chown_pid_file requires daemon.pid_file")
		}
		if c.Daemon.User == "" && c.Daemon.Group == "" {
			return errors.New("daemon.chown_pid_file requires daemon.user or daemon.group")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("logging.format must be auto, console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	return nil
}
