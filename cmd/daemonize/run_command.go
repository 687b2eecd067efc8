package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"daemonize/internal/config"
	"daemonize/internal/daemonrun"
)

// umaskValue is an octal permission mask flag.
type umaskValue struct {
	value string
}

var _ pflag.Value = (*umaskValue)(nil)

func (u *umaskValue) String() string { return u.value }

func (u *umaskValue) Set(raw string) error {
	mode, err := config.ParseUmask(raw)
	if err != nil {
		return err
	}
	u.value = fmt.Sprintf("%03o", uint32(mode))
	return nil
}

func (u *umaskValue) Type() string { return "octal" }

type runFlags struct {
	pidFile      string
	chownPidFile bool
	workDir      string
	user         string
	group        string
	umask        umaskValue
	chroot       string
	stdout       string
	stderr       string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [flags] -- COMMAND [ARGS...]",
		Short: "Detach and exec COMMAND as a daemon",
		Long: "Detach from the terminal, lock the pid file, drop privileges and replace\n" +
			"the daemon with COMMAND. The pid file stays locked until COMMAND exits.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			merged := *cfg
			if err := flags.apply(cmd.Flags(), &merged); err != nil {
				return err
			}
			if err := merged.Validate(); err != nil {
				return err
			}
			if err := merged.EnsureDirectories(); err != nil {
				return err
			}

			// Later stages rerun this command from the new working directory.
			if _, ok := os.LookupEnv(originDirEnv); !ok {
				if wd, err := os.Getwd(); err == nil {
					_ = os.Setenv(originDirEnv, wd)
				}
			}
			if _, ok := os.LookupEnv(configEnv); !ok && ctx.configPath != "" {
				_ = os.Setenv(configEnv, ctx.configPath)
			}

			command := append([]string(nil), args...)
			if strings.Contains(command[0], "/") {
				command[0] = originPath(command[0])
			}
			return daemonrun.Run(&merged, daemonrun.Options{
				Command:  command,
				LogLevel: ctx.logLevel(),
				StageEnv: []string{originDirEnv, configEnv},
			})
		},
	}

	f := cmd.Flags()
	f.SetInterspersed(false)
	f.StringVar(&flags.pidFile, "pid-file", "", "Pid file to lock and write (overrides daemon.pid_file)")
	f.BoolVar(&flags.chownPidFile, "chown-pid-file", false, "Hand the pid file to --user/--group")
	f.StringVarP(&flags.workDir, "workdir", "w", "", "Working directory of the daemon")
	f.StringVarP(&flags.user, "user", "u", "", "User name or id to run as")
	f.StringVarP(&flags.group, "group", "g", "", "Group name or id to run as")
	f.Var(&flags.umask, "umask", "Octal umask of the daemon")
	f.StringVar(&flags.chroot, "chroot", "", "Root directory of the daemon")
	f.StringVar(&flags.stdout, "stdout", "", "File receiving the daemon's stdout")
	f.StringVar(&flags.stderr, "stderr", "", "File receiving the daemon's stderr")
	return cmd
}

// apply copies the flags the user set onto cfg.
func (r *runFlags) apply(set *pflag.FlagSet, cfg *config.Config) error {
	paths := []struct {
		name   string
		value  string
		target *string
	}{
		{"pid-file", r.pidFile, &cfg.Daemon.PidFile},
		{"workdir", r.workDir, &cfg.Daemon.WorkingDirectory},
		{"chroot", r.chroot, &cfg.Daemon.Chroot},
		{"stdout", r.stdout, &cfg.Daemon.Stdout},
		{"stderr", r.stderr, &cfg.Daemon.Stderr},
	}
	for _, p := range paths {
		if !set.Changed(p.name) {
			continue
		}
		expanded, err := config.ExpandPath(originPath(strings.TrimSpace(p.value)))
		if err != nil {
			return fmt.Errorf("--%s: %w", p.name, err)
		}
		*p.target = expanded
	}
	if set.Changed("chown-pid-file") {
		cfg.Daemon.ChownPidFile = r.chownPidFile
	}
	if set.Changed("user") {
		cfg.Daemon.User = strings.TrimSpace(r.user)
	}
	if set.Changed("group") {
		cfg.Daemon.Group = strings.TrimSpace(r.group)
	}
	if set.Changed("umask") {
		cfg.Daemon.Umask = r.umask.String()
	}
	return nil
}
