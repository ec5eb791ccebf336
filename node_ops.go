package livexpr

import (
	"reflect"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/ops"
	"github.com/specialistvlad/livexpr/internal/reflectx"
)

type binaryNode struct {
	nodeBase
	e           *expr.BinaryExpr
	left, right node
	fn          ops.BinaryFunc
}

func (n *binaryNode) initialize() (err error) {
	if n.e.Method != nil {
		n.owns = n.obs.opts.ShouldDisposeFunc(n.e.Method)
	} else if n.fn, err = ops.Binary(n.e.Op, n.e.Left.Type(), n.e.Right.Type(), n.e.Lifted); err != nil {
		return err
	}
	if n.left, err = n.resolveChild(n.e.Left); err != nil {
		return err
	}
	n.right, err = n.resolveChild(n.e.Right)
	return err
}

func (n *binaryNode) evaluate() Evaluation {
	operands, err := pull([]node{n.left, n.right})
	if err != nil {
		return faulted(err)
	}
	if n.e.Method != nil {
		return outcome(n.e.Method.Call(operands))
	}
	return outcome(ops.Guard(func() (any, error) { return n.fn(operands[0], operands[1]) }))
}

// logicalNode short-circuits: the right operand stays deferred, and thus
// unsubscribed, until the left one lets it matter.
type logicalNode struct {
	nodeBase
	e           *expr.LogicalExpr
	left, right node
}

func (n *logicalNode) initialize() (err error) {
	if n.left, err = n.resolveChild(n.e.Left); err != nil {
		return err
	}
	n.right, err = n.resolveChild(n.e.Right)
	return err
}

func (n *logicalNode) evaluate() Evaluation {
	l := n.left.base().get()
	if l.Fault != nil {
		return l
	}
	lb, err := asBool(l.Result)
	if err != nil {
		return faulted(err)
	}
	if n.e.Kind() == expr.KindAndAlso && !lb || n.e.Kind() == expr.KindOrElse && lb {
		return succeeded(lb)
	}
	r := n.right.base().get()
	if r.Fault != nil {
		return r
	}
	rb, err := asBool(r.Result)
	if err != nil {
		return faulted(err)
	}
	return succeeded(rb)
}

type coalesceNode struct {
	nodeBase
	e           *expr.CoalesceExpr
	left, right node
}

func (n *coalesceNode) initialize() (err error) {
	if n.e.Conversion != nil {
		n.owns = n.obs.opts.ShouldDisposeFunc(n.e.Conversion)
	}
	if n.left, err = n.resolveChild(n.e.Left); err != nil {
		return err
	}
	n.right, err = n.resolveChild(n.e.Right)
	return err
}

func (n *coalesceNode) evaluate() Evaluation {
	l := n.left.base().get()
	if l.Fault != nil {
		return l
	}
	if !reflectx.IsNil(l.Result) {
		switch {
		case n.e.Conversion != nil:
			return outcome(n.e.Conversion.Call([]any{l.Result}))
		case n.e.Deref:
			return succeeded(reflect.ValueOf(l.Result).Elem().Interface())
		}
		return l
	}
	return n.right.base().get()
}

// conditionalNode forces only the chosen branch. The other one keeps
// whatever it last computed, or stays deferred, until the test flips.
type conditionalNode struct {
	nodeBase
	e                     *expr.ConditionalExpr
	test, ifTrue, ifFalse node
}

func (n *conditionalNode) initialize() (err error) {
	if n.test, err = n.resolveChild(n.e.Test); err != nil {
		return err
	}
	if n.ifTrue, err = n.resolveChild(n.e.IfTrue); err != nil {
		return err
	}
	n.ifFalse, err = n.resolveChild(n.e.IfFalse)
	return err
}

func (n *conditionalNode) evaluate() Evaluation {
	t := n.test.base().get()
	if t.Fault != nil {
		return t
	}
	ok, err := asBool(t.Result)
	if err != nil {
		return faulted(err)
	}
	if ok {
		return n.ifTrue.base().get()
	}
	return n.ifFalse.base().get()
}

type typeIsNode struct {
	nodeBase
	e       *expr.TypeIsExpr
	operand node
}

func (n *typeIsNode) initialize() (err error) {
	n.operand, err = n.resolveChild(n.e.Operand)
	return err
}

func (n *typeIsNode) evaluate() Evaluation {
	v := n.operand.base().get()
	if v.Fault != nil {
		return v
	}
	return succeeded(ops.TypeIs(v.Result, n.e.Target))
}

type unaryNode struct {
	nodeBase
	e       *expr.UnaryExpr
	operand node
	fn      ops.UnaryFunc
}

func (n *unaryNode) initialize() (err error) {
	if n.e.Method != nil {
		n.owns = n.obs.opts.ShouldDisposeFunc(n.e.Method)
	} else if n.fn, err = ops.Unary(n.e.Op, n.e.Operand.Type(), n.e.Target); err != nil {
		return err
	}
	n.operand, err = n.resolveChild(n.e.Operand)
	return err
}

func (n *unaryNode) evaluate() Evaluation {
	v := n.operand.base().get()
	if v.Fault != nil {
		return v
	}
	if n.e.Method != nil {
		return outcome(n.e.Method.Call([]any{v.Result}))
	}
	return outcome(ops.Guard(func() (any, error) { return n.fn(v.Result) }))
}

// newArrayNode rebuilds the whole slice when any element changes.
type newArrayNode struct {
	nodeBase
	e     *expr.NewArrayExpr
	elems []node
}

func (n *newArrayNode) initialize() error {
	for _, x := range n.e.Elems {
		c, err := n.resolveChild(x)
		if err != nil {
			return err
		}
		n.elems = append(n.elems, c)
	}
	return nil
}

func (n *newArrayNode) evaluate() Evaluation {
	vals, err := pull(n.elems)
	if err != nil {
		return faulted(err)
	}
	s := reflect.MakeSlice(n.typ, len(vals), len(vals))
	for i, v := range vals {
		s.Index(i).Set(reflectx.ValueOf(v, n.e.Elem))
	}
	return succeeded(s.Interface())
}
