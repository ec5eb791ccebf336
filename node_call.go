package livexpr

import (
	"reflect"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/fastcmp"
	"github.com/specialistvlad/livexpr/internal/reflectx"
	"github.com/specialistvlad/livexpr/notify"
)

// callNode invokes a method or a package-level func. A receiver that is a
// live collection or map is followed structurally; property changes of the
// receiver are not, since nothing says which ones the method reads.
type callNode struct {
	nodeBase
	e      *expr.CallExpr
	object node
	args   []node

	// Guarded by evalMu.
	instance any
	cancels  []func()
}

func (n *callNode) initialize() (err error) {
	if n.e.IsStatic() {
		n.owns = n.obs.opts.ShouldDisposeFunc(n.e.Func)
	} else {
		n.owns = n.obs.opts.ShouldDisposeMethod(n.e.Object.Type(), n.e.Name())
		if n.object, err = n.resolveChild(n.e.Object); err != nil {
			return err
		}
	}
	n.args, err = n.resolveChildren(n.e.Args)
	return err
}

func (n *callNode) evaluate() Evaluation {
	if n.e.IsStatic() {
		args, err := pull(n.args)
		if err != nil {
			return faulted(err)
		}
		return outcome(n.e.Func.Call(args))
	}
	obj := n.object.base().get()
	if obj.Fault != nil {
		n.unwatch()
		return obj
	}
	if n.cancels == nil || !fastcmp.SameReference(obj.Result, n.instance) {
		n.unwatch()
		n.watch(obj.Result)
	}
	args, err := pull(n.args)
	if err != nil {
		return faulted(err)
	}
	return outcome(n.e.Method.Call(obj.Result, args))
}

func (n *callNode) watch(inst any) {
	n.instance = inst
	n.cancels = []func(){}
	if reflectx.IsNil(inst) {
		return
	}
	if c, ok := inst.(notify.CollectionNotifier); ok && n.obs.opts.MemberCollectionChanges {
		n.cancels = append(n.cancels, c.OnCollectionChanged(func(notify.CollectionChange) { n.reevaluate() }))
	}
	if m, ok := inst.(notify.MapNotifier); ok && n.obs.opts.MemberMapChanges {
		n.cancels = append(n.cancels, m.OnMapChanged(func(notify.MapChange) { n.reevaluate() }))
	}
}

func (n *callNode) unwatch() {
	for _, c := range n.cancels {
		c()
	}
	n.cancels = nil
	n.instance = nil
}

func (n *callNode) teardown() { n.unwatch() }

func (b *nodeBase) resolveChildren(es []expr.Expr) ([]node, error) {
	out := make([]node, 0, len(es))
	for _, e := range es {
		c, err := b.resolveChild(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

type newNode struct {
	nodeBase
	e    *expr.NewExpr
	args []node
}

func (n *newNode) initialize() (err error) {
	n.owns = n.obs.opts.ShouldDisposeConstructed(n.e.Type(), n.e.ArgTypes())
	n.args, err = n.resolveChildren(n.e.Args)
	return err
}

func (n *newNode) evaluate() Evaluation {
	args, err := pull(n.args)
	if err != nil {
		return faulted(err)
	}
	return outcome(n.e.Ctor.Construct(args))
}

// memberInitNode constructs an instance and assigns its bindings. A change
// of one binding is applied to the current instance in place when it is a
// pointer; a change of a constructor argument rebuilds the instance.
type memberInitNode struct {
	nodeBase
	e        *expr.MemberInitExpr
	args     []node
	bindings []node
}

func (n *memberInitNode) initialize() (err error) {
	n.owns = n.obs.opts.ShouldDisposeConstructed(n.e.New.Type(), n.e.New.ArgTypes())
	if n.args, err = n.resolveChildren(n.e.New.Args); err != nil {
		return err
	}
	for i, b := range n.e.Bindings {
		c, err := n.resolveChildWith(b.Value, func() { n.rebind(i) })
		if err != nil {
			return err
		}
		n.bindings = append(n.bindings, c)
	}
	return nil
}

func (n *memberInitNode) evaluate() Evaluation {
	args, err := pull(n.args)
	if err != nil {
		return faulted(err)
	}
	inst, err := n.e.New.Ctor.Construct(args)
	if err != nil {
		return faulted(err)
	}
	for i, b := range n.e.Bindings {
		v := n.bindings[i].base().get()
		if v.Fault == nil {
			v.Fault = b.Setter().Set(inst, v.Result)
		}
		if v.Fault != nil {
			if n.owns {
				n.release(inst)
			}
			return faulted(v.Fault)
		}
	}
	return succeeded(inst)
}

func (n *memberInitNode) rebind(i int) {
	if n.typ.Kind() != reflect.Pointer {
		n.reevaluate()
		return
	}
	n.update(func() Evaluation {
		cur := *n.current.Load()
		if cur.Fault != nil || reflectx.IsNil(cur.Result) {
			return n.evaluate()
		}
		v := n.bindings[i].base().get()
		if v.Fault != nil {
			return faulted(v.Fault)
		}
		if err := n.e.Bindings[i].Setter().Set(cur.Result, v.Result); err != nil {
			return faulted(err)
		}
		return cur
	}, true)
}
