package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"daemonize/internal/config"
	"daemonize/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var pidFileFlag string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon owning the pid file is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath, err := resolvePidFile(ctx, pidFileFlag)
			if err != nil {
				return err
			}
			status, err := daemonctl.Inspect(pidPath)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if shouldColorize(stdout) {
				renderStatusTable(stdout, status)
				return nil
			}
			renderStatusPlain(stdout, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&pidFileFlag, "pid-file", "", "Pid file to inspect (overrides daemon.pid_file)")
	return cmd
}

func resolvePidFile(ctx *commandContext, flag string) (string, error) {
	if value := strings.TrimSpace(flag); value != "" {
		return config.ExpandPath(value)
	}
	cfg := ctx.configValue()
	if cfg == nil || cfg.Daemon.PidFile == "" {
		return "", fmt.Errorf("no pid file configured; set daemon.pid_file or pass --pid-file")
	}
	return cfg.Daemon.PidFile, nil
}

func statusState(status daemonctl.Status) (string, statusKind) {
	switch {
	case status.Running():
		return "running", statusOK
	case status.Locked:
		return "starting", statusWarn
	case status.PID > 0:
		return "stopped (stale pid file)", statusWarn
	default:
		return "not running", statusInfo
	}
}

func pidLabel(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return strconv.Itoa(pid)
}

func renderStatusTable(w io.Writer, status daemonctl.Status) {
	state, kind := statusState(status)
	rows := [][]string{{
		status.PidFile,
		pidLabel(status.PID),
		yesNo(status.Locked),
		yesNo(status.Alive),
		statusKindColor(kind) + state + ansiReset,
	}}
	fmt.Fprintln(w, renderTable(
		[]column{
			{header: "Pid File"},
			{header: "PID", numeric: true},
			{header: "Locked"},
			{header: "Alive"},
			{header: "State"},
		},
		rows,
	))
}

func renderStatusPlain(w io.Writer, status daemonctl.Status) {
	state, _ := statusState(status)
	fmt.Fprintf(w, "pid_file=%s\n", status.PidFile)
	fmt.Fprintf(w, "pid=%s\n", pidLabel(status.PID))
	fmt.Fprintf(w, "locked=%s\n", yesNo(status.Locked))
	fmt.Fprintf(w, "alive=%s\n", yesNo(status.Alive))
	fmt.Fprintf(w, "state=%s\n", state)
}
