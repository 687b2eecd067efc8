package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"daemonize/internal/config"
)

const (
	// configEnv pins the configuration file for the re-executed stages of
	// `run` and lets users select one without a flag.
	configEnv = "DAEMONIZE_CONFIG"
	// originDirEnv records where `run` was invoked so relative paths mean the
	// same thing after the working directory changes.
	originDirEnv = "DAEMONIZE_ORIGIN_DIR"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = originPath(strings.TrimSpace(*c.configFlag))
		}
		if path == "" {
			path = strings.TrimSpace(os.Getenv(configEnv))
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.logLevelFlag)
}

// originPath anchors a relative path to the directory `run` was started from.
func originPath(path string) string {
	if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "~") {
		return path
	}
	if origin := os.Getenv(originDirEnv); origin != "" {
		return filepath.Join(origin, path)
	}
	return path
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
