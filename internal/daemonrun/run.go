package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"daemonize"
	"daemonize/internal/config"
	"daemonize/internal/detach"
	"daemonize/internal/identity"
	"daemonize/internal/logging"
	"daemonize/internal/preflight"
)

// Options configures the payload started by Run.
type Options struct {
	// Command is the payload's argv. Command[0] is looked up in PATH.
	Command []string
	// LogLevel overrides the configured level when set.
	LogLevel string
	// StageEnv names variables that only the detaching stages need. They are
	// removed before the payload starts.
	StageEnv []string
}

// Run detaches the current process as configured by cfg and replaces it with
// the payload. It only returns on failure: in the original process when a
// preflight check fails or the pid file is already locked, otherwise in the
// stage that failed. The
// original process exits with status 0 once the daemon is on its way.
func Run(cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if len(opts.Command) == 0 || strings.TrimSpace(opts.Command[0]) == "" {
		return errors.New("command is required")
	}
	// Later stages have no terminal to report to.
	if detach.Current() == detach.Original {
		if err := preflight.Err(preflight.RunAll(cfg, opts.Command, nil)); err != nil {
			return err
		}
	}

	logger, err := NewLogger(cfg, opts.LogLevel)
	if err != nil {
		return err
	}
	logger = logging.NewComponentLogger(logger, "daemonize")

	d, err := Build(cfg, logger)
	if err != nil {
		return err
	}
	d.ExitAction(func() {
		logger.Info("daemon started",
			logging.String(logging.FieldEventType, "daemon_started"),
			logging.String("pid_file", cfg.Daemon.PidFile),
			logging.String("command", strings.Join(opts.Command, " ")),
		)
	})

	if _, err := d.Start(); err != nil {
		logger.Error("daemonize failed",
			logging.String(logging.FieldEventType, "daemonize_failed"),
			logging.Error(err),
		)
		return fmt.Errorf("daemonize: %w", err)
	}

	for _, key := range opts.StageEnv {
		_ = os.Unsetenv(key)
	}

	binary, err := exec.LookPath(opts.Command[0])
	if err != nil {
		logger.Error("resolve command failed", logging.Error(err))
		return fmt.Errorf("resolve command: %w", err)
	}
	logger.Info("executing payload",
		logging.String(logging.FieldEventType, "payload_exec"),
		logging.String("binary", binary),
		logging.Int(logging.FieldPID, os.Getpid()),
	)
	if err := unix.Exec(binary, opts.Command, os.Environ()); err != nil {
		logger.Error("exec failed", logging.Error(err))
		return fmt.Errorf("exec %s: %w", binary, err)
	}
	return nil
}

// Build turns the daemon section of cfg into a Daemonize value. Stream files
// are opened here, so Build must run in every stage.
func Build(cfg *config.Config, logger *slog.Logger) (*daemonize.Daemonize[struct{}], error) {
	d := daemonize.New[struct{}]().
		WorkingDirectory(cfg.Daemon.WorkingDirectory).
		Umask(cfg.UmaskMode()).
		Logger(logger)

	if cfg.Daemon.PidFile != "" {
		d.PidFile(cfg.Daemon.PidFile).
			ChownPidFile(cfg.Daemon.ChownPidFile).
			ExecInheritsPidFile(true)
	}
	if cfg.Daemon.User != "" {
		d.User(identity.ParseUser(cfg.Daemon.User))
	}
	if cfg.Daemon.Group != "" {
		d.Group(identity.ParseGroup(cfg.Daemon.Group))
	}
	if cfg.Daemon.Chroot != "" {
		d.Chroot(cfg.Daemon.Chroot)
	}

	stdout, err := openStream(cfg.Daemon.Stdout)
	if err != nil {
		return nil, err
	}
	stderr, err := openStream(cfg.Daemon.Stderr)
	if err != nil {
		return nil, err
	}
	return d.Stdout(stdout).Stderr(stderr), nil
}

func openStream(path string) (daemonize.Stdio, error) {
	if path == "" {
		return daemonize.Discard(), nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return daemonize.Stdio{}, fmt.Errorf("open output %q: %w", path, err)
	}
	return daemonize.File(file), nil
}

// NewLogger builds the CLI logger from the [logging] section. level overrides
// the configured level when non-empty.
func NewLogger(cfg *config.Config, level string) (*slog.Logger, error) {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if strings.TrimSpace(level) != "" {
		opts.Level = level
	}
	if cfg.Logging.File != "" {
		opts.OutputPaths = []string{cfg.Logging.File}
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}
