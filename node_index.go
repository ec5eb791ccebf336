package livexpr

import (
	"sync/atomic"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/fastcmp"
	"github.com/specialistvlad/livexpr/internal/reflectx"
	"github.com/specialistvlad/livexpr/notify"
)

// indexNode reads object[args...]. When the object announces structural
// changes, events that cannot move the element at a single held index or
// key are ignored; anything ambiguous re-evaluates.
type indexNode struct {
	nodeBase
	e      *expr.IndexExpr
	object node
	args   []node

	// Guarded by evalMu.
	target  any
	cancels []func()

	// key is read by change handlers outside evalMu.
	key atomic.Pointer[any]
}

func (n *indexNode) initialize() (err error) {
	if n.object, err = n.resolveChild(n.e.Object); err != nil {
		return err
	}
	for _, a := range n.e.Args {
		c, err := n.resolveChild(a)
		if err != nil {
			return err
		}
		n.args = append(n.args, c)
	}
	return nil
}

func (n *indexNode) evaluate() Evaluation {
	obj := n.object.base().get()
	if obj.Fault != nil {
		n.unwatch()
		return obj
	}
	args, err := pull(n.args)
	if err != nil {
		return faulted(err)
	}
	if len(args) == 1 {
		k := args[0]
		n.key.Store(&k)
	} else {
		n.key.Store(nil)
	}
	if n.cancels == nil || !fastcmp.SameReference(obj.Result, n.target) {
		n.unwatch()
		n.watch(obj.Result)
	}
	if g := n.e.Getter(); g != nil {
		return outcome(g.Call(obj.Result, args))
	}
	return outcome(reflectx.Index(obj.Result, args[0]))
}

func (n *indexNode) watch(target any) {
	n.target = target
	n.cancels = []func(){}
	if reflectx.IsNil(target) {
		return
	}
	structural := false
	if c, ok := target.(notify.CollectionNotifier); ok {
		structural = true
		n.cancels = append(n.cancels, c.OnCollectionChanged(func(ch notify.CollectionChange) {
			if n.collectionAffects(ch) {
				n.reevaluate()
			}
		}))
	}
	if m, ok := target.(notify.MapNotifier); ok {
		structural = true
		n.cancels = append(n.cancels, m.OnMapChanged(func(ch notify.MapChange) {
			if n.mapAffects(ch) {
				n.reevaluate()
			}
		}))
	}
	if p, ok := target.(notify.PropertyNotifier); ok {
		n.cancels = append(n.cancels, p.OnPropertyChanged(func(_ any, property string) {
			// Structural events already cover element changes.
			if property == "" || property == notify.ItemsProperty && !structural {
				n.reevaluate()
			}
		}))
	}
}

func (n *indexNode) unwatch() {
	for _, c := range n.cancels {
		c()
	}
	n.cancels = nil
	n.target = nil
}

func (n *indexNode) teardown() { n.unwatch() }

func (n *indexNode) collectionAffects(ch notify.CollectionChange) bool {
	k := n.key.Load()
	if k == nil {
		return true
	}
	idx, ok := reflectx.ToInt(*k)
	if !ok {
		return true
	}
	return indexAffected(idx, ch)
}

// indexAffected reports whether ch may change the element at idx.
func indexAffected(idx int, ch notify.CollectionChange) bool {
	switch ch.Action {
	case notify.Add:
		return ch.NewIndex < 0 || ch.NewIndex <= idx
	case notify.Remove:
		return ch.OldIndex < 0 || ch.OldIndex <= idx
	case notify.Replace:
		if ch.NewIndex < 0 {
			return true
		}
		return idx >= ch.NewIndex && idx < ch.NewIndex+max(len(ch.NewItems), 1)
	case notify.Move:
		if ch.NewIndex < 0 || ch.OldIndex < 0 {
			return true
		}
		lo, hi := min(ch.OldIndex, ch.NewIndex), max(ch.OldIndex, ch.NewIndex)
		return idx >= lo && idx < hi+max(len(ch.NewItems), 1)
	}
	return true
}

func (n *indexNode) mapAffects(ch notify.MapChange) bool {
	k := n.key.Load()
	if k == nil || ch.Action == notify.Reset {
		return true
	}
	for _, items := range [][]notify.KeyValue{ch.NewItems, ch.OldItems} {
		for _, kv := range items {
			if fastcmp.Equal(kv.Key, *k) {
				return true
			}
		}
	}
	return false
}
