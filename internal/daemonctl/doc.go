// Package daemonctl inspects and stops daemons through their pid files.
//
// The pid file lock is the source of truth: a daemon is running while some
// process holds it, and it has stopped once the lock can be taken again.
package daemonctl
