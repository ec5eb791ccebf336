// Package fastcmp provides default equality and ordering for values whose
// type is only known at run time.
//
// Adapters are built once per reflect.Type and cached, so the per-call cost
// is a map lookup plus the comparison itself.
package fastcmp

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
)

// ErrNotOrdered is returned by Compare for types without a default ordering.
var ErrNotOrdered = errors.New("type has no default ordering")

// Comparer holds the default equality and ordering of one type.
type Comparer interface {
	// Equal reports whether a and b are equal.
	Equal(a, b any) bool
	// Compare returns -1, 0 or +1, or ErrNotOrdered.
	Compare(a, b any) (int, error)
}

var cache sync.Map // reflect.Type -> Comparer

var dynamic Comparer = dynamicComparer{}

// For returns the cached Comparer for t. A nil t yields a comparer that
// dispatches on the dynamic types of its operands.
func For(t reflect.Type) Comparer {
	if t == nil {
		return dynamic
	}
	if c, ok := cache.Load(t); ok {
		return c.(Comparer)
	}
	c, _ := cache.LoadOrStore(t, build(t))
	return c.(Comparer)
}

// Equal compares a and b using the adapter of their dynamic type.
func Equal(a, b any) bool {
	return dynamic.Equal(a, b)
}

// Compare orders a and b using the adapter of their dynamic type.
func Compare(a, b any) (int, error) {
	return dynamic.Compare(a, b)
}

// SameReference reports whether a and b are the same instance for reference
// kinds, or equal for comparable value kinds.
func SameReference(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		return false
	}
	if !va.Type().Comparable() {
		return false
	}
	return safeEqual(a, b)
}

func build(t reflect.Type) Comparer {
	c := typed{t: t}
	if m, ok := t.MethodByName("Equal"); ok && isSelfMethod(t, m, reflect.TypeFor[bool]()) {
		c.eq = methodEqual(m.Name)
	} else {
		c.eq = kindEqual(t)
	}
	if m, ok := t.MethodByName("Compare"); ok && isSelfMethod(t, m, reflect.TypeFor[int]()) {
		c.cmp = methodCompare(m.Name)
	} else {
		c.cmp = kindCompare(t)
	}
	return c
}

// isSelfMethod matches func(T) R methods (receiver excluded for interfaces).
func isSelfMethod(t reflect.Type, m reflect.Method, out reflect.Type) bool {
	mt := m.Type
	offset := 1
	if t.Kind() == reflect.Interface {
		offset = 0
	}
	return mt.NumIn() == offset+1 && mt.In(offset) == t && mt.NumOut() == 1 && mt.Out(0) == out
}

type typed struct {
	t   reflect.Type
	eq  func(a, b any) bool
	cmp func(a, b any) (int, error)
}

func (c typed) Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return c.eq(a, b)
}

func (c typed) Compare(a, b any) (int, error) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, nil
		case a == nil:
			return -1, nil
		default:
			return 1, nil
		}
	}
	return c.cmp(a, b)
}

type dynamicComparer struct{}

func (dynamicComparer) Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	return For(ta).Equal(a, b)
}

func (dynamicComparer) Compare(a, b any) (int, error) {
	if a == nil || b == nil {
		return typed{}.Compare(a, b)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return 0, fmt.Errorf("%w: cannot order %s against %s", ErrNotOrdered, ta, tb)
	}
	return For(ta).Compare(a, b)
}

func kindEqual(t reflect.Type) func(a, b any) bool {
	switch t.Kind() {
	case reflect.Interface:
		return dynamic.Equal
	case reflect.Float32, reflect.Float64:
		return func(a, b any) bool {
			x, y := reflect.ValueOf(a).Float(), reflect.ValueOf(b).Float()
			return x == y || (math.IsNaN(x) && math.IsNaN(y))
		}
	case reflect.Func:
		return func(a, b any) bool { return false }
	case reflect.Slice, reflect.Map:
		return SameReference
	}
	if t.Comparable() {
		return safeEqual
	}
	return SameReference
}

// safeEqual compares with == and treats a run-time comparison panic (an
// interface field holding an uncomparable value) as inequality.
func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func kindCompare(t reflect.Type) func(a, b any) (int, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(a, b any) (int, error) {
			return cmp.Compare(reflect.ValueOf(a).Int(), reflect.ValueOf(b).Int()), nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(a, b any) (int, error) {
			return cmp.Compare(reflect.ValueOf(a).Uint(), reflect.ValueOf(b).Uint()), nil
		}
	case reflect.Float32, reflect.Float64:
		return func(a, b any) (int, error) {
			return cmp.Compare(reflect.ValueOf(a).Float(), reflect.ValueOf(b).Float()), nil
		}
	case reflect.String:
		return func(a, b any) (int, error) {
			return cmp.Compare(reflect.ValueOf(a).String(), reflect.ValueOf(b).String()), nil
		}
	case reflect.Bool:
		return func(a, b any) (int, error) {
			x, y := reflect.ValueOf(a).Bool(), reflect.ValueOf(b).Bool()
			switch {
			case x == y:
				return 0, nil
			case !x:
				return -1, nil
			default:
				return 1, nil
			}
		}
	case reflect.Interface:
		return dynamic.Compare
	}
	return func(a, b any) (int, error) {
		return 0, fmt.Errorf("%w: %s", ErrNotOrdered, t)
	}
}

func methodEqual(name string) func(a, b any) bool {
	return func(a, b any) bool {
		out := reflect.ValueOf(a).MethodByName(name).Call([]reflect.Value{reflect.ValueOf(b)})
		return out[0].Bool()
	}
}

func methodCompare(name string) func(a, b any) (int, error) {
	return func(a, b any) (int, error) {
		out := reflect.ValueOf(a).MethodByName(name).Call([]reflect.Value{reflect.ValueOf(b)})
		return cmp.Compare(int(out[0].Int()), 0), nil
	}
}
