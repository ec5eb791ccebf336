package livexpr

import (
	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/fastcmp"
	"github.com/specialistvlad/livexpr/internal/reflectx"
	"github.com/specialistvlad/livexpr/notify"
)

// memberNode reads a field or a getter and follows the owning instance's
// change notifications for that member.
type memberNode struct {
	nodeBase
	e       *expr.MemberExpr
	member  *reflectx.Member
	object  node
	ignored bool

	// Guarded by evalMu.
	instance       any
	cancelInstance func()
	value          any
	cancelValue    []func()
}

func (n *memberNode) initialize() (err error) {
	n.member = n.e.Resolved()
	owner := n.e.Object.Type()
	n.ignored = n.obs.opts.IsPropertyIgnored(owner, n.e.Name)
	if n.member.Kind == reflectx.Property {
		n.owns = n.obs.opts.ShouldDisposeProperty(owner, n.e.Name)
	}
	n.object, err = n.resolveChild(n.e.Object)
	return err
}

func (n *memberNode) evaluate() Evaluation {
	obj := n.object.base().get()
	if obj.Fault != nil {
		n.unwatchInstance()
		n.unwatchValue()
		return obj
	}
	inst := obj.Result

	var v any
	var err error
	if n.member.Kind == reflectx.Field {
		// A notification raised between unsubscribing and resubscribing
		// concerns a value that is read fresh right here.
		n.unwatchInstance()
		v, err = n.member.Get(inst)
		n.watchInstance(inst)
	} else {
		if n.cancelInstance == nil || !fastcmp.SameReference(inst, n.instance) {
			n.unwatchInstance()
			n.watchInstance(inst)
		}
		v, err = n.member.Get(inst)
	}
	if err != nil {
		n.unwatchValue()
		return faulted(err)
	}
	n.watchValue(v)
	return succeeded(v)
}

func (n *memberNode) watchInstance(inst any) {
	n.instance = inst
	if n.ignored || reflectx.IsNil(inst) {
		return
	}
	pn, ok := inst.(notify.PropertyNotifier)
	if !ok {
		return
	}
	name := n.e.Name
	n.cancelInstance = pn.OnPropertyChanged(func(_ any, property string) {
		if property == name || property == "" {
			n.reevaluate()
		}
	})
}

func (n *memberNode) unwatchInstance() {
	if n.cancelInstance != nil {
		n.cancelInstance()
		n.cancelInstance = nil
	}
	n.instance = nil
}

// watchValue follows structural changes of a collection or map read through
// the member, which keeps the same reference while its contents change.
func (n *memberNode) watchValue(v any) {
	if n.cancelValue != nil && fastcmp.SameReference(v, n.value) {
		return
	}
	n.unwatchValue()
	n.value = v
	if reflectx.IsNil(v) {
		return
	}
	changed := func() { n.update(nil, true) }
	if c, ok := v.(notify.CollectionNotifier); ok && n.obs.opts.MemberCollectionChanges {
		n.cancelValue = append(n.cancelValue, c.OnCollectionChanged(func(notify.CollectionChange) { changed() }))
	}
	if m, ok := v.(notify.MapNotifier); ok && n.obs.opts.MemberMapChanges {
		n.cancelValue = append(n.cancelValue, m.OnMapChanged(func(notify.MapChange) { changed() }))
	}
}

func (n *memberNode) unwatchValue() {
	for _, c := range n.cancelValue {
		c()
	}
	n.cancelValue = nil
	n.value = nil
}

func (n *memberNode) teardown() {
	n.unwatchInstance()
	n.unwatchValue()
}
