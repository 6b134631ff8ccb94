//go:build sqlite_cgo
// +build sqlite_cgo

package store

// This file is compiled when building with CGO and the sqlite_cgo tag.
//
// Build command:
//   CGO_ENABLED=1 go build -tags sqlite_cgo ./...
//
// The C driver is faster on large fact bases and is the recommended
// configuration when a C toolchain is available.
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)

// dsn builds the driver connection string. busy_timeout and foreign_keys are
// per-connection settings, so they must travel in the DSN to reach every
// pooled connection, not just the one a PRAGMA exec happens to run on.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_busy_timeout=30000&_foreign_keys=on"
}
