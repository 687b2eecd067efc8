package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"daemonize/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The pid file, daemon stdout and CLI log all live under BaseDir, logging is
// JSON, and the parent directories exist.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Daemon.PidFile = filepath.Join(base, "run", "daemon.pid")
	cfgVal.Daemon.Stdout = filepath.Join(base, "out", "daemon.out")
	cfgVal.Logging.Format = "json"
	cfgVal.Logging.File = filepath.Join(base, "logs", "daemonize.log")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure test directories: %v", err)
	}
	return builder.cfg
}

// WithStderr sends daemon stderr to a file under the base directory.
func WithStderr() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.Stderr = filepath.Join(b.baseDir, "out", "daemon.err")
	}
}

// WithoutStreams discards both daemon streams.
func WithoutStreams() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.Stdout = ""
		b.cfg.Daemon.Stderr = ""
	}
}

// WithIdentity sets the user and group the daemon drops to.
func WithIdentity(user, group string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.User = user
		b.cfg.Daemon.Group = group
	}
}

// WithWorkingDirectory creates name under the base directory and makes it the
// daemon's working directory.
func WithWorkingDirectory(name string) ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir working dir: %v", err)
		}
		b.cfg.Daemon.WorkingDirectory = dir
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(filepath.Dir(cfg.Logging.File))
}

// WriteConfig stores cfg as TOML next to its temp directories and returns the
// file path.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
