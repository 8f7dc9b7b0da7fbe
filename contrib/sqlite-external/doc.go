// Package sqliteexternal provides optional external SQLite drivers.
//
// This package is part of the main github.com/FocuswithJustin/numbits module
// and provides a CGO-based SQLite driver for performance-critical
// applications. Connections opened through it have merge_numbits,
// numbits_any_intersection and num_in_numbits bound by a connect hook.
//
// # CGO SQLite Driver
//
// To use the CGO driver (github.com/mattn/go-sqlite3):
//
//	import sqliteexternal "github.com/FocuswithJustin/numbits/contrib/sqlite-external"
//
//	sqliteexternal.Register()
//	db, err := sql.Open(sqliteexternal.DriverName, "coverage.db")
//
// Build with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite
//
// # Default Pure Go Driver
//
// By default the pure Go modernc.org/sqlite driver is used, which requires
// no CGO. See github.com/FocuswithJustin/numbits/core/sqlite for details.
//
// # Engine differences
//
// go-sqlite3 hands SQL NULL to Go functions as an empty blob and turns an
// empty blob result into NULL. The pure Go driver keeps the two apart, so
// merge_numbits(NULL, x) fails there and succeeds here.
package sqliteexternal
