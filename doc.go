// Package daemonize turns the running program into a Unix daemon.
//
// A Daemonize value collects the options (pid file, working directory, umask,
// user and group, chroot, standard stream targets and the privileged and exit
// actions) and Start applies them in a fixed order: the pid file is created
// and locked, the program detaches from its session in two steps, the streams
// are redirected, identities are resolved, the privileged action runs, the
// root directory changes, privileges drop, and finally the daemon's pid is
// written.
//
// The Go runtime cannot fork safely, so each detachment step re-executes the
// program with a stage marker in its environment. Start must therefore be
// called early in main, and the same options must be built in every stage:
//
//	func main() {
//		out, _ := os.OpenFile("/var/log/app.out", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
//		_, err := daemonize.New[struct{}]().
//			PidFile("/run/app.pid").
//			User(daemonize.UserName("nobody")).
//			Stdout(daemonize.File(out)).
//			Start()
//		if err != nil {
//			log.Fatal(err)
//		}
//		serve()
//	}
//
// Failures are reported as *Error values whose Kind names the failed step and
// whose Errno holds the OS error, if any. Nothing already applied is undone.
package daemonize
