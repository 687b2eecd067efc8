// Package config loads, normalizes, and validates daemonize configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files with a [daemon] section describing how the
// payload is detached and a [logging] section for the CLI's own output.
//
// Always obtain settings through this package so the CLI receives absolute
// paths, a parsed umask, and clear validation errors.
package config
