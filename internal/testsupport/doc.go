// Package testsupport builds throwaway daemonize configurations for tests.
package testsupport
