// Package ops interprets operators over values whose types are only known at
// run time. Each (operator, operand types, lifted) signature is compiled once
// into a closure and cached.
package ops

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/specialistvlad/livexpr/internal/fastcmp"
	"github.com/specialistvlad/livexpr/internal/reflectx"
)

// ErrUnsupported is returned when an operator is not defined for the
// operand types.
var ErrUnsupported = errors.New("unsupported operation")

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Rem
	And
	Or
	Xor
	AndNot
	Shl
	Shr
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

var binaryNames = [...]string{"+", "-", "*", "/", "%", "&", "|", "^", "&^", "<<", ">>", "==", "!=", "<", "<=", ">", ">="}

func (op BinaryOp) String() string {
	if int(op) < len(binaryNames) {
		return binaryNames[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// IsComparison reports whether op produces a bool from two operands.
func (op BinaryOp) IsComparison() bool {
	return op >= Eq
}

// BinaryFunc evaluates a compiled binary operation.
type BinaryFunc func(l, r any) (any, error)

type binaryKey struct {
	op     BinaryOp
	l, r   reflect.Type
	lifted bool
}

type binaryEntry struct {
	fn     BinaryFunc
	result reflect.Type
	err    error
}

var binaries sync.Map // binaryKey -> binaryEntry

// BinaryResult returns the result type of op over l and r.
func BinaryResult(op BinaryOp, l, r reflect.Type, lifted bool) (reflect.Type, error) {
	e := binary(op, l, r, lifted)
	return e.result, e.err
}

// Binary compiles op over operands of static types l and r. With lifted set,
// pointer operands are dereferenced and a nil operand propagates: arithmetic
// yields a nil pointer, equality compares nil-ness and ordering yields false.
func Binary(op BinaryOp, l, r reflect.Type, lifted bool) (BinaryFunc, error) {
	e := binary(op, l, r, lifted)
	return e.fn, e.err
}

func binary(op BinaryOp, l, r reflect.Type, lifted bool) binaryEntry {
	key := binaryKey{op, l, r, lifted}
	if e, ok := binaries.Load(key); ok {
		return e.(binaryEntry)
	}
	e, _ := binaries.LoadOrStore(key, compileBinary(op, l, r, lifted))
	return e.(binaryEntry)
}

func compileBinary(op BinaryOp, l, r reflect.Type, lifted bool) binaryEntry {
	if l == nil || r == nil {
		return binaryEntry{err: fmt.Errorf("%w: %s on untyped operand", ErrUnsupported, op)}
	}
	if lifted {
		return compileLifted(op, l, r)
	}
	if op == Eq || op == Ne {
		return compileEquality(op, l, r)
	}
	fn, result, err := compileCore(op, l, r)
	if err != nil {
		return binaryEntry{err: err}
	}
	return binaryEntry{fn: fn, result: result}
}

func compileEquality(op BinaryOp, l, r reflect.Type) binaryEntry {
	var eq func(a, b any) bool
	switch {
	case l == r:
		eq = operatorEqual(fastcmp.For(l).Equal)
	case l.Kind() == reflect.Interface || r.Kind() == reflect.Interface:
		eq = operatorEqual(fastcmp.Equal)
	default:
		return binaryEntry{err: fmt.Errorf("%w: %s %s %s", ErrUnsupported, l, op, r)}
	}
	neg := op == Ne
	return binaryEntry{
		result: reflect.TypeFor[bool](),
		fn: func(a, b any) (any, error) {
			return eq(a, b) != neg, nil
		},
	}
}

// operatorEqual follows Go's ==, so NaN is unequal to itself. Operands ==
// cannot compare, such as slices and maps, fall back to fallback.
func operatorEqual(fallback func(a, b any) bool) func(a, b any) bool {
	return func(a, b any) (eq bool) {
		defer func() {
			if recover() != nil {
				eq = fallback(a, b)
			}
		}()
		return a == b
	}
}

func compileLifted(op BinaryOp, l, r reflect.Type) binaryEntry {
	lb, rb := l, r
	if lb.Kind() == reflect.Pointer {
		lb = lb.Elem()
	}
	if rb.Kind() == reflect.Pointer {
		rb = rb.Elem()
	}
	var (
		core   BinaryFunc
		result reflect.Type
		err    error
	)
	if op == Eq || op == Ne {
		e := compileEquality(op, lb, rb)
		core, result, err = e.fn, e.result, e.err
	} else {
		core, result, err = compileCore(op, lb, rb)
	}
	if err != nil {
		return binaryEntry{err: err}
	}
	deref := func(v any) (any, bool) {
		if v == nil {
			return nil, true
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer {
			return v, false
		}
		if rv.IsNil() {
			return nil, true
		}
		return rv.Elem().Interface(), false
	}
	switch {
	case op == Eq || op == Ne:
		neg := op == Ne
		return binaryEntry{result: result, fn: func(a, b any) (any, error) {
			av, an := deref(a)
			bv, bn := deref(b)
			if an || bn {
				return (an == bn) != neg, nil
			}
			return core(av, bv)
		}}
	case op.IsComparison():
		return binaryEntry{result: result, fn: func(a, b any) (any, error) {
			av, an := deref(a)
			bv, bn := deref(b)
			if an || bn {
				return false, nil
			}
			return core(av, bv)
		}}
	}
	ptr := reflect.PointerTo(result)
	return binaryEntry{result: ptr, fn: func(a, b any) (any, error) {
		av, an := deref(a)
		bv, bn := deref(b)
		if an || bn {
			return reflect.Zero(ptr).Interface(), nil
		}
		out, err := core(av, bv)
		if err != nil {
			return nil, err
		}
		p := reflect.New(result)
		p.Elem().Set(reflect.ValueOf(out))
		return p.Interface(), nil
	}}
}

// compileCore handles non-lifted arithmetic and ordering.
func compileCore(op BinaryOp, l, r reflect.Type) (BinaryFunc, reflect.Type, error) {
	unsupported := fmt.Errorf("%w: %s %s %s", ErrUnsupported, l, op, r)
	if op == Shl || op == Shr {
		if !isInteger(l) || !isInteger(r) {
			return nil, nil, unsupported
		}
		return shift(op, l), l, nil
	}
	if op.IsComparison() {
		if l != r {
			return nil, nil, unsupported
		}
		c := fastcmp.For(l)
		return func(a, b any) (any, error) {
			n, err := c.Compare(a, b)
			if err != nil {
				return nil, err
			}
			switch op {
			case Lt:
				return n < 0, nil
			case Le:
				return n <= 0, nil
			case Gt:
				return n > 0, nil
			}
			return n >= 0, nil
		}, reflect.TypeFor[bool](), nil
	}
	if l != r {
		return nil, nil, unsupported
	}
	t := l
	switch {
	case isSigned(t):
		return intOp(op, t, unsupported)
	case isUnsigned(t):
		return uintOp(op, t, unsupported)
	case isFloat(t):
		return floatOp(op, t, unsupported)
	case t.Kind() == reflect.String && op == Add:
		return func(a, b any) (any, error) {
			out := reflect.New(t).Elem()
			out.SetString(reflect.ValueOf(a).String() + reflect.ValueOf(b).String())
			return out.Interface(), nil
		}, t, nil
	case t.Kind() == reflect.Bool && (op == And || op == Or || op == Xor):
		return func(a, b any) (any, error) {
			x, y := reflect.ValueOf(a).Bool(), reflect.ValueOf(b).Bool()
			var v bool
			switch op {
			case And:
				v = x && y
			case Or:
				v = x || y
			default:
				v = x != y
			}
			out := reflect.New(t).Elem()
			out.SetBool(v)
			return out.Interface(), nil
		}, t, nil
	}
	return nil, nil, unsupported
}

func intOp(op BinaryOp, t reflect.Type, unsupported error) (BinaryFunc, reflect.Type, error) {
	var f func(x, y int64) (int64, error)
	switch op {
	case Add:
		f = func(x, y int64) (int64, error) { return x + y, nil }
	case Sub:
		f = func(x, y int64) (int64, error) { return x - y, nil }
	case Mul:
		f = func(x, y int64) (int64, error) { return x * y, nil }
	case Div:
		f = func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, errDivideByZero
			}
			return x / y, nil
		}
	case Rem:
		f = func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, errDivideByZero
			}
			return x % y, nil
		}
	case And:
		f = func(x, y int64) (int64, error) { return x & y, nil }
	case Or:
		f = func(x, y int64) (int64, error) { return x | y, nil }
	case Xor:
		f = func(x, y int64) (int64, error) { return x ^ y, nil }
	case AndNot:
		f = func(x, y int64) (int64, error) { return x &^ y, nil }
	default:
		return nil, nil, unsupported
	}
	return func(a, b any) (any, error) {
		v, err := f(reflect.ValueOf(a).Int(), reflect.ValueOf(b).Int())
		if err != nil {
			return nil, err
		}
		out := reflect.New(t).Elem()
		out.SetInt(v)
		return out.Interface(), nil
	}, t, nil
}

func uintOp(op BinaryOp, t reflect.Type, unsupported error) (BinaryFunc, reflect.Type, error) {
	var f func(x, y uint64) (uint64, error)
	switch op {
	case Add:
		f = func(x, y uint64) (uint64, error) { return x + y, nil }
	case Sub:
		f = func(x, y uint64) (uint64, error) { return x - y, nil }
	case Mul:
		f = func(x, y uint64) (uint64, error) { return x * y, nil }
	case Div:
		f = func(x, y uint64) (uint64, error) {
			if y == 0 {
				return 0, errDivideByZero
			}
			return x / y, nil
		}
	case Rem:
		f = func(x, y uint64) (uint64, error) {
			if y == 0 {
				return 0, errDivideByZero
			}
			return x % y, nil
		}
	case And:
		f = func(x, y uint64) (uint64, error) { return x & y, nil }
	case Or:
		f = func(x, y uint64) (uint64, error) { return x | y, nil }
	case Xor:
		f = func(x, y uint64) (uint64, error) { return x ^ y, nil }
	case AndNot:
		f = func(x, y uint64) (uint64, error) { return x &^ y, nil }
	default:
		return nil, nil, unsupported
	}
	return func(a, b any) (any, error) {
		v, err := f(reflect.ValueOf(a).Uint(), reflect.ValueOf(b).Uint())
		if err != nil {
			return nil, err
		}
		out := reflect.New(t).Elem()
		out.SetUint(v)
		return out.Interface(), nil
	}, t, nil
}

func floatOp(op BinaryOp, t reflect.Type, unsupported error) (BinaryFunc, reflect.Type, error) {
	var f func(x, y float64) float64
	switch op {
	case Add:
		f = func(x, y float64) float64 { return x + y }
	case Sub:
		f = func(x, y float64) float64 { return x - y }
	case Mul:
		f = func(x, y float64) float64 { return x * y }
	case Div:
		f = func(x, y float64) float64 { return x / y }
	default:
		return nil, nil, unsupported
	}
	return func(a, b any) (any, error) {
		out := reflect.New(t).Elem()
		out.SetFloat(f(reflect.ValueOf(a).Float(), reflect.ValueOf(b).Float()))
		return out.Interface(), nil
	}, t, nil
}

func shift(op BinaryOp, t reflect.Type) BinaryFunc {
	return func(a, b any) (any, error) {
		rb := reflect.ValueOf(b)
		var n uint64
		if isSigned(rb.Type()) {
			if rb.Int() < 0 {
				return nil, errNegativeShift
			}
			n = uint64(rb.Int())
		} else {
			n = rb.Uint()
		}
		out := reflect.New(t).Elem()
		ra := reflect.ValueOf(a)
		if isSigned(t) {
			if op == Shl {
				out.SetInt(ra.Int() << n)
			} else {
				out.SetInt(ra.Int() >> n)
			}
		} else {
			if op == Shl {
				out.SetUint(ra.Uint() << n)
			} else {
				out.SetUint(ra.Uint() >> n)
			}
		}
		return out.Interface(), nil
	}
}

var (
	errDivideByZero  = errors.New("integer divide by zero")
	errNegativeShift = errors.New("negative shift amount")
)

func isSigned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isInteger(t reflect.Type) bool { return isSigned(t) || isUnsigned(t) }

func isFloat(t reflect.Type) bool {
	return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
}

// Guard runs fn and converts a panic into an error.
func Guard(fn func() (any, error)) (out any, err error) {
	defer reflectx.Recover(&err)
	return fn()
}
