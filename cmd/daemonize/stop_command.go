package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"daemonize/internal/daemonctl"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	var pidFileFlag string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Terminate the daemon owning the pid file",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath, err := resolvePidFile(ctx, pidFileFlag)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Stop(pidPath, timeout)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon (pid %d) ignored SIGTERM and was killed\n", result.PID)
				return nil
			}
			fmt.Fprintf(stdout, "Daemon (pid %d) stopped\n", result.PID)
			return nil
		},
	}
	cmd.Flags().StringVar(&pidFileFlag, "pid-file", "", "Pid file of the daemon (overrides daemon.pid_file)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait after each signal")
	return cmd
}
