// Package logging assembles the structured slog loggers used by the daemonize
// command and library.
//
// It owns the console and JSON handlers, level parsing and output plumbing,
// and the field keys (stage, run id, pid) that let records written by the
// original process, the session leader and the daemon be stitched back
// together. A no-op logger is provided for callers that do not log.
package logging
