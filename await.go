package livexpr

import (
	"context"
	"fmt"
	"reflect"

	"github.com/specialistvlad/livexpr/expr"
)

// AwaitCondition blocks until the bool lambda l, bound to args, is true. It
// returns nil once true, the fault if the expression faults first, or the
// context error if ctx ends first. The observation is always closed before
// returning.
func (o *Observer) AwaitCondition(ctx context.Context, l *expr.LambdaExpr, args ...any) error {
	if l == nil {
		return ErrNilExpression
	}
	if l.Err() == nil && l.Result().Kind() != reflect.Bool {
		return fmt.Errorf("%w: condition yields %s", ErrMalformed, l.Result())
	}
	h, err := o.Observe(l, args...)
	if err != nil {
		return err
	}
	defer h.Close()

	done := make(chan error, 1)
	settle := func(ev Evaluation) {
		var outcome error
		switch {
		case ev.Fault != nil:
			outcome = ev.Fault
		default:
			if ok, _ := asBool(ev.Result); !ok {
				return
			}
		}
		select {
		case done <- outcome:
		default:
		}
	}
	cancel := h.Watch(func(_, ev Evaluation) { settle(ev) })
	defer cancel()
	settle(h.Evaluation())

	select {
	case err := <-done:
		return err
	default:
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
