//go:build cgo_sqlite

// Package sqliteexternal provides a CGO-based SQLite driver using mattn/go-sqlite3.
// This is an optional external dependency for performance-critical applications.
//
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package sqliteexternal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/FocuswithJustin/numbits/core/numbits"
	"github.com/FocuswithJustin/numbits/internal/logging"
)

const (
	// DriverName is the SQL driver name to use with database/sql. Every
	// connection opened through it has the numbits functions bound.
	DriverName = "sqlite3_numbits"

	// DriverType identifies this as the CGO implementation.
	DriverType = "cgo"

	// DriverPackage is the import path of the underlying driver.
	DriverPackage = "github.com/mattn/go-sqlite3"
)

var registerOnce sync.Once

// Register makes DriverName available to database/sql. It is safe to call
// repeatedly.
func Register() error {
	registerOnce.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return numbits.RegisterFunctions(ConnRegistrar{Conn: conn})
			},
		})
		logging.Debug("sqlite_driver_registered", "driver", DriverName)
	})
	return nil
}

// ConnRegistrar binds functions into a single live connection. Registering
// a name again replaces the previous binding on that connection.
type ConnRegistrar struct {
	Conn *sqlite3.SQLiteConn
}

// RegisterScalarFunction implements numbits.FunctionRegistrar.
func (r ConnRegistrar) RegisterScalarFunction(name string, nArgs int, fn numbits.ScalarFunc) error {
	var impl any
	switch nArgs {
	case 1:
		impl = func(a any) (any, error) { return fn([]any{a}) }
	case 2:
		impl = func(a, b any) (any, error) { return fn([]any{a, b}) }
	case 3:
		impl = func(a, b, c any) (any, error) { return fn([]any{a, b, c}) }
	default:
		return fmt.Errorf("unsupported arity %d for %s", nArgs, name)
	}
	if err := r.Conn.RegisterFunc(name, impl, true); err != nil {
		return err
	}
	logging.FunctionRegistered(name, nArgs, DriverType)
	return nil
}

// RegisterConn binds the numbits functions into conn, which must come from a
// mattn/go-sqlite3 driver. Use it for connections opened without DriverName.
// Nothing is bound if ctx is already done.
func RegisterConn(ctx context.Context, conn *sql.Conn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("not a go-sqlite3 connection: %T", driverConn)
		}
		return numbits.RegisterFunctions(ConnRegistrar{Conn: c})
	})
}
