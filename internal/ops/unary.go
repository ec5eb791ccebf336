package ops

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/specialistvlad/livexpr/internal/reflectx"
)

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	Negate UnaryOp = iota
	Plus
	Not
	Complement
	// Convert converts the operand to the target type.
	Convert
	// TypeAs yields the operand as the target type, or the target's zero
	// value when the dynamic type does not match.
	TypeAs
	Len
	Deref
)

var unaryNames = [...]string{"-", "+", "!", "^", "convert", "as", "len", "*"}

func (op UnaryOp) String() string {
	if int(op) < len(unaryNames) {
		return unaryNames[op]
	}
	return fmt.Sprintf("UnaryOp(%d)", int(op))
}

// NeedsTarget reports whether op takes an explicit target type.
func (op UnaryOp) NeedsTarget() bool {
	return op == Convert || op == TypeAs
}

// UnaryFunc evaluates a compiled unary operation.
type UnaryFunc func(v any) (any, error)

type unaryKey struct {
	op      UnaryOp
	operand reflect.Type
	target  reflect.Type
}

type unaryEntry struct {
	fn     UnaryFunc
	result reflect.Type
	err    error
}

var unaries sync.Map // unaryKey -> unaryEntry

// UnaryResult returns the result type of op over operand.
func UnaryResult(op UnaryOp, operand, target reflect.Type) (reflect.Type, error) {
	e := unary(op, operand, target)
	return e.result, e.err
}

// Unary compiles op over an operand of static type operand. target is only
// consulted by Convert and TypeAs.
func Unary(op UnaryOp, operand, target reflect.Type) (UnaryFunc, error) {
	e := unary(op, operand, target)
	return e.fn, e.err
}

func unary(op UnaryOp, operand, target reflect.Type) unaryEntry {
	key := unaryKey{op, operand, target}
	if e, ok := unaries.Load(key); ok {
		return e.(unaryEntry)
	}
	e, _ := unaries.LoadOrStore(key, compileUnary(op, operand, target))
	return e.(unaryEntry)
}

func compileUnary(op UnaryOp, t, target reflect.Type) unaryEntry {
	if t == nil {
		return unaryEntry{err: fmt.Errorf("%w: %s on untyped operand", ErrUnsupported, op)}
	}
	unsupported := unaryEntry{err: fmt.Errorf("%w: %s%s", ErrUnsupported, op, t)}
	switch op {
	case Plus:
		if isInteger(t) || isFloat(t) {
			return unaryEntry{result: t, fn: func(v any) (any, error) { return v, nil }}
		}
	case Negate:
		switch {
		case isSigned(t):
			return unaryEntry{result: t, fn: func(v any) (any, error) {
				out := reflect.New(t).Elem()
				out.SetInt(-reflect.ValueOf(v).Int())
				return out.Interface(), nil
			}}
		case isUnsigned(t):
			return unaryEntry{result: t, fn: func(v any) (any, error) {
				out := reflect.New(t).Elem()
				out.SetUint(-reflect.ValueOf(v).Uint())
				return out.Interface(), nil
			}}
		case isFloat(t):
			return unaryEntry{result: t, fn: func(v any) (any, error) {
				out := reflect.New(t).Elem()
				out.SetFloat(-reflect.ValueOf(v).Float())
				return out.Interface(), nil
			}}
		}
	case Not:
		if t.Kind() == reflect.Bool {
			return unaryEntry{result: t, fn: func(v any) (any, error) {
				out := reflect.New(t).Elem()
				out.SetBool(!reflect.ValueOf(v).Bool())
				return out.Interface(), nil
			}}
		}
	case Complement:
		switch {
		case isSigned(t):
			return unaryEntry{result: t, fn: func(v any) (any, error) {
				out := reflect.New(t).Elem()
				out.SetInt(^reflect.ValueOf(v).Int())
				return out.Interface(), nil
			}}
		case isUnsigned(t):
			return unaryEntry{result: t, fn: func(v any) (any, error) {
				out := reflect.New(t).Elem()
				out.SetUint(^reflect.ValueOf(v).Uint())
				return out.Interface(), nil
			}}
		}
	case Len:
		return compileLen(t, unsupported)
	case Deref:
		if t.Kind() == reflect.Pointer {
			return unaryEntry{result: t.Elem(), fn: func(v any) (any, error) {
				rv := reflect.ValueOf(v)
				if !rv.IsValid() || rv.IsNil() {
					return nil, fmt.Errorf("%w: dereferencing %s", reflectx.ErrNilReference, t)
				}
				return rv.Elem().Interface(), nil
			}}
		}
	case Convert:
		return compileConvert(t, target, unsupported)
	case TypeAs:
		if target == nil {
			return unsupported
		}
		return unaryEntry{result: target, fn: func(v any) (any, error) {
			if v != nil && reflect.TypeOf(v).AssignableTo(target) {
				return reflectx.ValueOf(v, target).Interface(), nil
			}
			return reflect.Zero(target).Interface(), nil
		}}
	}
	return unsupported
}

func compileLen(t reflect.Type, unsupported unaryEntry) unaryEntry {
	intType := reflect.TypeFor[int]()
	switch t.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return unaryEntry{result: intType, fn: func(v any) (any, error) {
			rv := reflect.ValueOf(v)
			if !rv.IsValid() {
				return 0, nil
			}
			return rv.Len(), nil
		}}
	case reflect.Pointer:
		if t.Elem().Kind() == reflect.Array {
			n := t.Elem().Len()
			return unaryEntry{result: intType, fn: func(any) (any, error) { return n, nil }}
		}
	case reflect.Interface:
		return unaryEntry{result: intType, fn: func(v any) (any, error) {
			if l, ok := v.(interface{ Len() int }); ok {
				return l.Len(), nil
			}
			rv := reflect.ValueOf(v)
			switch rv.Kind() {
			case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
				return rv.Len(), nil
			case reflect.Invalid:
				return nil, fmt.Errorf("%w: len of nil", reflectx.ErrNilReference)
			}
			return nil, fmt.Errorf("%w: len of %T", ErrUnsupported, v)
		}}
	}
	return unsupported
}

func compileConvert(t, target reflect.Type, unsupported unaryEntry) unaryEntry {
	if target == nil {
		return unsupported
	}
	switch {
	case t == target:
		return unaryEntry{result: target, fn: func(v any) (any, error) { return v, nil }}
	case t.Kind() == reflect.Pointer && t.Elem() == target:
		return unaryEntry{result: target, fn: func(v any) (any, error) {
			rv := reflect.ValueOf(v)
			if !rv.IsValid() || rv.IsNil() {
				return nil, fmt.Errorf("%w: converting nil %s to %s", reflectx.ErrNilReference, t, target)
			}
			return rv.Elem().Interface(), nil
		}}
	case target.Kind() == reflect.Pointer && target.Elem() == t:
		return unaryEntry{result: target, fn: func(v any) (any, error) {
			p := reflect.New(t)
			p.Elem().Set(reflectx.ValueOf(v, t))
			return p.Interface(), nil
		}}
	case t.ConvertibleTo(target) && t.Kind() != reflect.Interface:
		return unaryEntry{result: target, fn: func(v any) (out any, err error) {
			defer reflectx.Recover(&err)
			return reflect.ValueOf(v).Convert(target).Interface(), nil
		}}
	case t.Kind() == reflect.Interface:
		return unaryEntry{result: target, fn: func(v any) (out any, err error) {
			defer reflectx.Recover(&err)
			if v == nil {
				if isNilable(target) {
					return reflect.Zero(target).Interface(), nil
				}
				return nil, fmt.Errorf("%w: converting nil to %s", reflectx.ErrNilReference, target)
			}
			rv := reflect.ValueOf(v)
			if rv.Type().AssignableTo(target) {
				return reflectx.ValueOf(v, target).Interface(), nil
			}
			if !rv.Type().ConvertibleTo(target) {
				return nil, fmt.Errorf("cannot convert %T to %s", v, target)
			}
			return rv.Convert(target).Interface(), nil
		}}
	}
	return unsupported
}

func isNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// TypeIs reports whether v is non-nil and its dynamic type is target or,
// for an interface target, implements it.
func TypeIs(v any, target reflect.Type) bool {
	if v == nil || target == nil {
		return false
	}
	t := reflect.TypeOf(v)
	if target.Kind() == reflect.Interface {
		if reflectx.IsNil(v) {
			return false
		}
		return t.Implements(target)
	}
	return t == target
}
