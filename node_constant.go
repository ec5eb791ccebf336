package livexpr

import (
	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/reflectx"
	"github.com/specialistvlad/livexpr/notify"
)

// constantNode yields its literal. A literal that announces structural
// changes is followed: its reference stays the same, so the node raises
// unconditionally and lets its parents decide.
type constantNode struct {
	nodeBase
	e       *expr.ConstantExpr
	value   any
	watched bool
	cancels []func()
}

func (n *constantNode) initialize() error {
	n.value = n.e.Value
	if n.value == nil {
		n.value = n.zero
	}
	return nil
}

func (n *constantNode) evaluate() Evaluation {
	if !n.watched {
		n.watched = true
		n.watch()
	}
	return succeeded(n.value)
}

func (n *constantNode) watch() {
	if reflectx.IsNil(n.value) {
		return
	}
	changed := func() { n.update(nil, true) }
	if c, ok := n.value.(notify.CollectionNotifier); ok && n.obs.opts.ConstantCollectionChanges {
		n.cancels = append(n.cancels, c.OnCollectionChanged(func(notify.CollectionChange) { changed() }))
	}
	if m, ok := n.value.(notify.MapNotifier); ok && n.obs.opts.ConstantMapChanges {
		n.cancels = append(n.cancels, m.OnMapChanged(func(notify.MapChange) { changed() }))
	}
}

func (n *constantNode) teardown() {
	for _, c := range n.cancels {
		c()
	}
	n.cancels = nil
}
