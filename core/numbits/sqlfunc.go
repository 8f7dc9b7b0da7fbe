package numbits

import (
	"math"
	"strconv"

	"github.com/FocuswithJustin/numbits/core/errors"
)

// SQL names of the registered functions.
const (
	FuncMerge           = "merge_numbits"
	FuncAnyIntersection = "numbits_any_intersection"
	FuncNumIn           = "num_in_numbits"
)

// ScalarFunc is a SQL scalar function body. Arguments arrive as database
// driver values: int64, float64, string, []byte or nil for NULL.
type ScalarFunc func(args []any) (any, error)

// Function describes one SQL scalar function.
type Function struct {
	Name  string
	NArgs int
	Fn    ScalarFunc
}

// FunctionRegistrar is anything that can bind deterministic scalar functions
// into a SQL engine. Registering a name that is already bound must rebind it
// (or leave the identical binding in place) rather than fail.
type FunctionRegistrar interface {
	RegisterScalarFunction(name string, nArgs int, fn ScalarFunc) error
}

// Functions returns the SQL bindings for Union, Intersects and Contains:
//
//	merge_numbits(blob, blob) -> blob
//	numbits_any_intersection(blob, blob) -> 0 or 1
//	num_in_numbits(integer, blob) -> 0 or 1
func Functions() []Function {
	return []Function{
		{Name: FuncMerge, NArgs: 2, Fn: sqlMerge},
		{Name: FuncAnyIntersection, NArgs: 2, Fn: sqlAnyIntersection},
		{Name: FuncNumIn, NArgs: 2, Fn: sqlNumIn},
	}
}

// RegisterFunctions binds every function from Functions into r.
func RegisterFunctions(r FunctionRegistrar) error {
	for _, f := range Functions() {
		if err := r.RegisterScalarFunction(f.Name, f.NArgs, f.Fn); err != nil {
			return errors.Wrapf(err, "register %s", f.Name)
		}
	}
	return nil
}

func sqlMerge(args []any) (any, error) {
	a, b, err := blobPair(FuncMerge, args)
	if err != nil {
		return nil, err
	}
	return Union(a, b), nil
}

func sqlAnyIntersection(args []any) (any, error) {
	a, b, err := blobPair(FuncAnyIntersection, args)
	if err != nil {
		return nil, err
	}
	return boolInt(Intersects(a, b)), nil
}

func sqlNumIn(args []any) (any, error) {
	if err := checkArity(FuncNumIn, args, 2); err != nil {
		return nil, err
	}
	num, err := intArg(FuncNumIn, args, 0)
	if err != nil {
		return nil, err
	}
	b, err := blobArg(FuncNumIn, args, 1)
	if err != nil {
		return nil, err
	}
	return boolInt(Contains(num, b)), nil
}

func blobPair(fn string, args []any) ([]byte, []byte, error) {
	if err := checkArity(fn, args, 2); err != nil {
		return nil, nil, err
	}
	a, err := blobArg(fn, args, 0)
	if err != nil {
		return nil, nil, err
	}
	b, err := blobArg(fn, args, 1)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func checkArity(fn string, args []any, n int) error {
	if len(args) != n {
		return errors.NewValidation(fn, "expected "+strconv.Itoa(n)+" arguments, got "+strconv.Itoa(len(args)))
	}
	return nil
}

// blobArg accepts only []byte. Text is rejected even though SQLite could
// convert it, so a mistyped column surfaces as an error.
func blobArg(fn string, args []any, i int) ([]byte, error) {
	b, ok := args[i].([]byte)
	if !ok {
		return nil, errors.NewType(fn, i+1, "blob", args[i])
	}
	return b, nil
}

func intArg(fn string, args []any, i int) (int, error) {
	v, ok := args[i].(int64)
	if !ok {
		return 0, errors.NewType(fn, i+1, "integer", args[i])
	}
	if v < 0 {
		return 0, &errors.ValidationError{
			Field:   fn,
			Value:   strconv.FormatInt(v, 10),
			Message: "argument " + strconv.Itoa(i+1) + " must be non-negative",
		}
	}
	if uint64(v) > math.MaxInt {
		// Beyond any blob this process could hold.
		return math.MaxInt, nil
	}
	return int(v), nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
