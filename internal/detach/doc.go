// Package detach implements the double fork that turns a process into a
// daemon.
//
// The Go runtime cannot safely fork without exec, so each fork is a re-exec
// of the running binary with a stage marker in the environment:
//
//	Original --Spawn--> SessionLeader --Detach, Spawn--> Daemon
//
// The session leader changes directory, calls setsid and sets the umask
// before spawning the daemon, so the daemon is never a session leader and can
// never acquire a controlling terminal. A pid file descriptor travels between
// stages as fd 3 and keeps its flock(2) lock along the way.
package detach
