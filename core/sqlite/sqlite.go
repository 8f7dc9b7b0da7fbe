// Package sqlite provides a unified SQLite interface supporting both
// pure Go (modernc.org/sqlite) and CGO (mattn/go-sqlite3) implementations,
// with the numbits SQL functions bound into every connection it opens.
//
// Build modes:
//   - Default (CGO_ENABLED=0): Uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): Uses mattn/go-sqlite3 via contrib/sqlite-external
//
// The CGO driver is located in contrib/sqlite-external/ to clearly separate
// optional external dependencies from core functionality.
//
// Use Open() instead of sql.Open() to ensure the correct driver is used and
// that merge_numbits, numbits_any_intersection and num_in_numbits are
// available in queries.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/FocuswithJustin/numbits/core/numbits"
	"github.com/FocuswithJustin/numbits/internal/logging"
)

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// RegisterFunctions binds the numbits SQL functions into the active engine.
// Connections opened afterwards can call them. It is safe to call more than
// once and from multiple goroutines.
func RegisterFunctions() error {
	if err := registerEngineFunctions(); err != nil {
		return fmt.Errorf("sqlite: failed to register numbits functions: %w", err)
	}
	return nil
}

// Open opens a SQLite database using the appropriate driver.
// This is the preferred way to open SQLite databases.
func Open(dataSourceName string) (*sql.DB, error) {
	if err := RegisterFunctions(); err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	logging.Debug("sqlite_open", "driver", driverName, "driver_type", driverType)
	return db, nil
}

// OpenReadOnly opens a SQLite database in read-only mode. The path is
// escaped into a file: URI, so it may contain '?', '#' or '%'.
func OpenReadOnly(path string) (*sql.DB, error) {
	u := url.URL{Scheme: "file", Path: path, OmitHost: true, RawQuery: "mode=ro"}
	return Open(u.String())
}

// MustOpen opens a SQLite database and panics on error.
// Use Open instead if you need to handle errors gracefully.
// This is intended for use in tests or initialization code where
// database access failure is unrecoverable.
func MustOpen(dataSourceName string) *sql.DB {
	db, err := Open(dataSourceName)
	if err != nil {
		panic(fmt.Sprintf("sqlite: failed to open %s: %v", dataSourceName, err))
	}
	return db
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string   `json:"driver_name"`
	DriverType string   `json:"driver_type"`
	IsCGO      bool     `json:"is_cgo"`
	Package    string   `json:"package"`
	Functions  []string `json:"functions"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	var names []string
	for _, f := range numbits.Functions() {
		names = append(names, f.Name)
	}
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
		Functions:  names,
	}
}
