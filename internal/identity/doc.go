// Package identity resolves the user and group a daemon drops to.
//
// Names go through a NameService (the host databases by default). Resolution
// happens once per start so the pid file owner and the dropped credentials
// can never disagree, even if the directory service answers differently on a
// second query.
package identity
