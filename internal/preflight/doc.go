// Package preflight checks that a daemon configuration can work before the
// process detaches from the terminal.
//
// Once the daemon has redirected its streams a failure is only visible in
// the log file, so these checks run in two places:
//   - "daemonize run" calls RunAll in the original process and refuses to
//     start when a check fails.
//   - "daemonize config validate" prints every result.
//
// Checks for optional settings are skipped when the setting is empty.
package preflight
