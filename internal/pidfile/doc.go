// Package pidfile creates, locks, and writes daemon pid files.
//
// The lock is an exclusive flock(2) taken without blocking, so a second
// instance pointed at the same path fails straight away instead of queueing
// behind the first. Pid files hold the decimal pid followed by a newline.
package pidfile
