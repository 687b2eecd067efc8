package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"daemonize/internal/config"
	"daemonize/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the [daemon] section, then start a command with `daemonize run -- COMMAND`.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if _, err := os.Stat(ctx.configPath); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(out, "Pid file: %s\n", cfg.Daemon.PidFile)
			fmt.Fprintf(out, "Umask: %03o\n", uint32(cfg.UmaskMode()))

			results := preflight.RunAll(cfg, nil, nil)
			if shouldColorize(out) {
				renderPreflightTable(out, results)
			} else {
				renderPreflightPlain(out, results)
			}
			if err := preflight.Err(results); err != nil {
				return err
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func preflightLabel(result preflight.Result) (string, statusKind) {
	if result.Passed {
		return "ok", statusOK
	}
	return "fail", statusError
}

func renderPreflightTable(w io.Writer, results []preflight.Result) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		label, kind := preflightLabel(r)
		rows = append(rows, []string{r.Name, statusKindColor(kind) + label + ansiReset, r.Detail})
	}
	fmt.Fprintln(w, renderTable(
		[]column{{header: "Check"}, {header: "Result"}, {header: "Detail"}},
		rows,
	))
}

func renderPreflightPlain(w io.Writer, results []preflight.Result) {
	for _, r := range results {
		label, _ := preflightLabel(r)
		fmt.Fprintf(w, "Check %s: %s (%s)\n", r.Name, label, r.Detail)
	}
}
