package main

import (
	"errors"
	"fmt"
	"os"

	"daemonize"
)

// exitLocked is returned when another daemon already holds the pid file.
const exitLocked = 2

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, daemonize.ErrLockPidfile) {
		return exitLocked
	}
	return 1
}
