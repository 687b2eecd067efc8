// Package stdio rewires a daemon's standard streams onto the null device or
// caller supplied files.
package stdio
