//go:build !sqlite_cgo
// +build !sqlite_cgo

package store

// This file is compiled when building without the sqlite_cgo tag. It uses a
// pure Go SQLite implementation, so no C compiler is required and
// cross-compilation stays trivial.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)

// dsn builds the driver connection string. busy_timeout and foreign_keys are
// per-connection settings, so they must travel in the DSN to reach every
// pooled connection, not just the one a PRAGMA exec happens to run on.
func dsn(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)"
}
