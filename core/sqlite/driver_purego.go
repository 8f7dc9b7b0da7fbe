//go:build !cgo_sqlite

package sqlite

import (
	"database/sql/driver"
	"sync"

	msqlite "modernc.org/sqlite"

	"github.com/FocuswithJustin/numbits/core/numbits"
	"github.com/FocuswithJustin/numbits/internal/logging"
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)

// moderncRegistrar binds functions into modernc.org/sqlite. That driver keeps
// one process-wide function table which it applies to each new connection
// and which refuses duplicate names, so a name is only handed over once.
type moderncRegistrar struct {
	mu    sync.Mutex
	bound map[string]bool
}

var engine = &moderncRegistrar{bound: make(map[string]bool)}

func (r *moderncRegistrar) RegisterScalarFunction(name string, nArgs int, fn numbits.ScalarFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bound[name] {
		return nil
	}
	err := msqlite.RegisterDeterministicScalarFunction(name, int32(nArgs),
		func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			vals := make([]any, len(args))
			for i, a := range args {
				vals[i] = a
			}
			return fn(vals)
		})
	if err != nil {
		return err
	}
	r.bound[name] = true
	logging.FunctionRegistered(name, nArgs, driverType)
	return nil
}

func registerEngineFunctions() error {
	return numbits.RegisterFunctions(engine)
}
