package config

import (
	"fmt"
	"strings"
)

// normalize trims values and makes paths absolute. Relative paths are taken
// relative to base, the directory holding the configuration file.
func (c *Config) normalize(base string) error {
	if err := c.normalizeDaemon(base); err != nil {
		return err
	}
	return c.normalizeLogging(base)
}

func (c *Config) normalizeDaemon(base string) error {
	paths := []struct {
		key   string
		value *string
	}{
		{"daemon.pid_file", &c.Daemon.PidFile},
		{"daemon.working_directory", &c.Daemon.WorkingDirectory},
		{"daemon.chroot", &c.Daemon.Chroot},
		{"daemon.stdout", &c.Daemon.Stdout},
		{"daemon.stderr", &c.Daemon.Stderr},
	}
	for _, p := range paths {
		expanded, err := expandPathFrom(base, strings.TrimSpace(*p.value))
		if err != nil {
			return fmt.Errorf("%s: %w", p.key, err)
		}
		*p.value = expanded
	}
	if c.Daemon.WorkingDirectory == "" {
		c.Daemon.WorkingDirectory = defaultWorkingDirectory
	}

	c.Daemon.User = strings.TrimSpace(c.Daemon.User)
	c.Daemon.Group = strings.TrimSpace(c.Daemon.Group)
	c.Daemon.Umask = strings.TrimSpace(c.Daemon.Umask)
	if c.Daemon.Umask == "" {
		c.Daemon.Umask = defaultUmask
	}
	return nil
}

func (c *Config) normalizeLogging(base string) error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	file, err := expandPathFrom(base, strings.TrimSpace(c.Logging.File))
	if err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	c.Logging.File = file
	return nil
}
