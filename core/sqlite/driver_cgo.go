//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3.
// This is used when the cgo_sqlite build tag is set.
//
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
//
// The actual driver implementation is in contrib/sqlite-external
// to clearly separate optional external dependencies from core functionality.
package sqlite

import (
	sqliteexternal "github.com/FocuswithJustin/numbits/contrib/sqlite-external"
)

const (
	driverName    = sqliteexternal.DriverName
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3 (via contrib/sqlite-external)"
)

// mattn/go-sqlite3 binds functions per connection from a connect hook, which
// the external driver installs when it registers itself.
func registerEngineFunctions() error {
	return sqliteexternal.Register()
}
