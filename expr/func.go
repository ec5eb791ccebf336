package expr

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/specialistvlad/livexpr/internal/reflectx"
)

var nextID atomic.Uint64

// Func describes a package-level function that expressions can call.
// Descriptors compare by identity: two descriptors wrapping the same func
// value are distinct.
type Func struct {
	name    string
	generic string
	owned   bool
	fn      reflect.Value
	id      uint64
	err     error
}

// FuncOption configures a Func.
type FuncOption func(*Func)

// GenericDefinition marks the function as one instantiation of the named
// generic definition, so disposal rules can match every instantiation.
func GenericDefinition(name string) FuncOption {
	return func(f *Func) { f.generic = name }
}

// ReturnsOwned marks the function's result as owned by the caller: it is
// released when superseded regardless of other disposal rules.
func ReturnsOwned() FuncOption {
	return func(f *Func) { f.owned = true }
}

// NewFunc describes fn, which must be a non-nil func returning at least one
// value. A trailing error result becomes a Fault.
func NewFunc(name string, fn any, opts ...FuncOption) *Func {
	f := &Func{name: name, fn: reflect.ValueOf(fn), id: nextID.Add(1)}
	for _, o := range opts {
		o(f)
	}
	switch {
	case !f.fn.IsValid() || f.fn.Kind() != reflect.Func || f.fn.IsNil():
		f.err = fmt.Errorf("%w: %s is not a func", ErrMalformed, name)
	case f.fn.Type().NumOut() == 0:
		f.err = fmt.Errorf("%w: %s returns nothing", ErrMalformed, name)
	}
	return f
}

// Name returns the descriptive name.
func (f *Func) Name() string { return f.name }

// GenericName returns the generic definition name, if any.
func (f *Func) GenericName() string { return f.generic }

// Owned reports whether results are marked as owned by the caller.
func (f *Func) Owned() bool { return f.owned }

// ID returns the process-unique descriptor id.
func (f *Func) ID() uint64 { return f.id }

// Err returns the construction error.
func (f *Func) Err() error { return f.err }

// Signature returns the func type.
func (f *Func) Signature() reflect.Type {
	if f.err != nil {
		return nil
	}
	return f.fn.Type()
}

// Result returns the type of the first result.
func (f *Func) Result() reflect.Type {
	return reflectx.ResultType(f.Signature())
}

// Call invokes the function.
func (f *Func) Call(args []any) (any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return reflectx.CallFunc(f.fn.Interface(), args)
}

func (f *Func) String() string { return f.name }

// Ctor describes how a NewExpr produces its instance.
type Ctor struct {
	typ    reflect.Type
	fn     reflect.Value
	params []reflect.Type
	id     uint64
	err    error
}

// NewCtor uses fn, a func returning T or (T, error), as the constructor of T.
func NewCtor(fn any) *Ctor {
	c := &Ctor{fn: reflect.ValueOf(fn), id: nextID.Add(1)}
	if !c.fn.IsValid() || c.fn.Kind() != reflect.Func || c.fn.IsNil() || c.fn.Type().NumOut() == 0 {
		c.err = fmt.Errorf("%w: constructor must be a func returning a value", ErrMalformed)
		return c
	}
	t := c.fn.Type()
	c.typ = t.Out(0)
	for i := range t.NumIn() {
		c.params = append(c.params, t.In(i))
	}
	return c
}

// ZeroCtor produces the zero value of t, or a pointer to a fresh zero value
// when t is a pointer type.
func ZeroCtor(t reflect.Type) *Ctor {
	c := &Ctor{typ: t, id: nextID.Add(1)}
	if t == nil {
		c.err = fmt.Errorf("%w: constructor of untyped value", ErrMalformed)
	}
	return c
}

// CtorOf is ZeroCtor for T.
func CtorOf[T any]() *Ctor { return ZeroCtor(reflect.TypeFor[T]()) }

// Type returns the produced type.
func (c *Ctor) Type() reflect.Type { return c.typ }

// Params returns the constructor parameter types.
func (c *Ctor) Params() []reflect.Type { return c.params }

// Err returns the construction error.
func (c *Ctor) Err() error { return c.err }

// Construct produces a fresh instance.
func (c *Ctor) Construct(args []any) (any, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.fn.IsValid() {
		return reflectx.CallFunc(c.fn.Interface(), args)
	}
	if c.typ.Kind() == reflect.Pointer {
		return reflect.New(c.typ.Elem()).Interface(), nil
	}
	return reflect.Zero(c.typ).Interface(), nil
}

func (c *Ctor) String() string {
	if c.typ == nil {
		return "<invalid>"
	}
	return c.typ.String()
}
