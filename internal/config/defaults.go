package config

import "io/fs"

const (
	defaultConfigPath       = "~/.config/daemonize/config.toml"
	projectConfigName       = "daemonize.toml"
	defaultPidFile          = "~/.local/state/daemonize/daemonize.pid"
	defaultWorkingDirectory = "/"
	defaultUmask            = "027"
	defaultLogFormat        = "auto"
	defaultLogLevel         = "info"

	defaultUmaskMode fs.FileMode = 0o027
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Daemon: Daemon{
			PidFile:          defaultPidFile,
			WorkingDirectory: defaultWorkingDirectory,
			Umask:            defaultUmask,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
