// Package main hosts the daemonize CLI entrypoint and command graph.
//
// `run` detaches and execs a payload that keeps the pid file locked, `status`
// and `stop` work from that pid file, and `config` scaffolds and checks the
// TOML configuration. Flags on `run` override the [daemon] section.
//
// Keep this package lean: behaviour lives in the internal packages and the
// daemonize library; commands here only translate flags and render output.
package main
