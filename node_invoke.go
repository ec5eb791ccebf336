package livexpr

import (
	"fmt"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/reflectx"
)

// invokeNode calls an inline lambda or a func-valued expression.
//
// An inline lambda is expanded once: its parameters are replaced by the
// argument expressions and the body becomes a child, sharing the argument
// nodes. A func value is called through a synthetic call node that is
// rebuilt whenever the target produces a new value.
type invokeNode struct {
	nodeBase
	e      *expr.InvokeExpr
	body   node
	target node

	// Guarded by evalMu.
	call       node
	cancelCall func()
	callFor    *Evaluation
}

func (n *invokeNode) initialize() (err error) {
	if l, ok := n.e.Target.(*expr.LambdaExpr); ok {
		repl := make(map[*expr.ParameterExpr]expr.Expr, len(l.Params))
		for i, p := range l.Params {
			repl[p] = n.e.Args[i]
		}
		n.body, err = n.resolveChild(expr.Substitute(l.Body, repl))
		return err
	}
	n.target, err = n.resolveChild(n.e.Target)
	return err
}

func (n *invokeNode) evaluate() Evaluation {
	if n.body != nil {
		return n.body.base().get()
	}
	t := n.target.base().get()
	if t.Fault != nil {
		n.dropCall()
		return t
	}
	if reflectx.IsNil(t.Result) {
		n.dropCall()
		return faulted(fmt.Errorf("%w: invoking nil func", ErrNilReference))
	}
	// Func values have no usable identity; the target's published
	// Evaluation does.
	if cur := n.target.base().current.Load(); n.call == nil || cur != n.callFor {
		n.dropCall()
		c, err := n.obs.resolve(expr.CallFunc(expr.NewFunc(n.e.Target.String(), t.Result), n.e.Args...), true)
		if err != nil {
			return faulted(err)
		}
		n.call, n.callFor = c, cur
		n.cancelCall = c.base().OnPropertyChanged(func(any, string) { n.reevaluate() })
	}
	return n.call.base().get()
}

func (n *invokeNode) dropCall() {
	if n.call == nil {
		return
	}
	n.cancelCall()
	n.obs.release(n.call)
	n.call, n.cancelCall, n.callFor = nil, nil, nil
}

func (n *invokeNode) teardown() { n.dropCall() }
