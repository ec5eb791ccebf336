package livexpr

import (
	"context"
	"fmt"
	"reflect"

	"github.com/specialistvlad/livexpr/dispose"
	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/notify"
)

// Typed is a Handle whose result has static type R. Unlike a Handle it owns
// exactly one reference, so Close is idempotent; a Typed that is dropped
// without Close is closed by the collector and logged.
type Typed[R any] struct {
	h     *Handle
	guard dispose.Guard
}

func newTyped[R any](o *Observer, l *expr.LambdaExpr, params []reflect.Type, args ...any) (*Typed[R], error) {
	if l == nil {
		return nil, ErrNilExpression
	}
	if err := checkSignature[R](l, params); err != nil {
		return nil, err
	}
	h, err := o.Observe(l, args...)
	if err != nil {
		return nil, err
	}
	t := &Typed[R]{h: h}
	dispose.ArmFinalizer(t, func(t *Typed[R]) *dispose.Guard { return &t.guard }, o.logger, func(t *Typed[R]) {
		t.h.Close()
	})
	return t, nil
}

func checkSignature[R any](l *expr.LambdaExpr, params []reflect.Type) error {
	if err := l.Err(); err != nil {
		return err
	}
	if len(l.Params) != len(params) {
		return fmt.Errorf("%w: lambda takes %d parameters, want %d", ErrArity, len(l.Params), len(params))
	}
	for i, p := range l.Params {
		if p.Type() != params[i] {
			return fmt.Errorf("%w: parameter %s has type %s, want %s", ErrMalformed, p.Name, p.Type(), params[i])
		}
	}
	want := reflect.TypeFor[R]()
	if got := l.Result(); got != want && !(want.Kind() == reflect.Interface && got.Implements(want)) {
		return fmt.Errorf("%w: lambda yields %s, want %s", ErrMalformed, got, want)
	}
	return nil
}

// Observe0 observes a parameterless lambda yielding R.
func Observe0[R any](o *Observer, l *expr.LambdaExpr) (*Typed[R], error) {
	return newTyped[R](o, l, nil)
}

// Observe1 observes a lambda of one parameter of type A yielding R.
func Observe1[A, R any](o *Observer, l *expr.LambdaExpr, a A) (*Typed[R], error) {
	return newTyped[R](o, l, []reflect.Type{reflect.TypeFor[A]()}, a)
}

// Observe2 observes a lambda of parameters A and B yielding R.
func Observe2[A, B, R any](o *Observer, l *expr.LambdaExpr, a A, b B) (*Typed[R], error) {
	return newTyped[R](o, l, []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B]()}, a, b)
}

// Observe3 observes a lambda of parameters A, B and C yielding R.
func Observe3[A, B, C, R any](o *Observer, l *expr.LambdaExpr, a A, b B, c C) (*Typed[R], error) {
	return newTyped[R](o, l, []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[C]()}, a, b, c)
}

// Handle returns the shared untyped handle.
func (t *Typed[R]) Handle() *Handle { return t.h }

// Evaluation returns the latest Evaluation.
func (t *Typed[R]) Evaluation() Evaluation { return t.h.Evaluation() }

// Fault returns the latest fault, or nil.
func (t *Typed[R]) Fault() error { return t.h.Fault() }

// Result returns the latest result, the zero R while faulted.
func (t *Typed[R]) Result() R {
	v, _ := t.h.Result().(R)
	return v
}

// OnPropertyChanged subscribes to the underlying handle's notifications.
func (t *Typed[R]) OnPropertyChanged(h notify.PropertyHandler) func() {
	return t.h.OnPropertyChanged(h)
}

// Watch is Handle.Watch.
func (t *Typed[R]) Watch(fn func(old, new Evaluation)) (cancel func()) { return t.h.Watch(fn) }

// Close releases the reference. Later calls are no-ops.
func (t *Typed[R]) Close() error {
	t.guard.Do(func() {
		dispose.Disarm(t)
		t.h.Close()
	})
	return nil
}

// CloseAsync is Close for callers holding a context.
func (t *Typed[R]) CloseAsync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.Close()
}
