// Package daemonrun implements `daemonize run`: it detaches according to the
// loaded configuration and then execs the payload, which inherits the locked
// pid file.
package daemonrun
