package livexpr

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/specialistvlad/livexpr/dispose"
	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/fastcmp"
	"github.com/specialistvlad/livexpr/internal/reflectx"
	"github.com/specialistvlad/livexpr/notify"
)

// evaluationProperty is raised by nodes and handles whose Evaluation changed.
const evaluationProperty = "Evaluation"

// node is one shared evaluation node. Each expression kind has its own
// implementation embedding nodeBase.
type node interface {
	base() *nodeBase
	// initialize resolves children and prepares the node. It runs once,
	// outside the cache lock.
	initialize() error
	// evaluate computes the Evaluation. It runs under the node's evalMu.
	evaluate() Evaluation
	// teardown cancels runtime-value subscriptions. It runs under evalMu
	// after the node was evicted.
	teardown()
}

type child struct {
	n      node
	cancel func()
}

// nodeBase carries the state shared by every node kind.
//
// Lock order is parent before child: a node holding its evalMu may force a
// deferred child, which takes the child's evalMu. Change notifications are
// always raised after evalMu is released. Re-evaluation requests never block
// on evalMu; they set pending and the holder repeats its evaluation.
type nodeBase struct {
	notify.Source

	obs  *Observer
	self node
	kind expr.Kind
	key  string
	expr expr.Expr
	id   uuid.UUID
	typ  reflect.Type
	cmp  fastcmp.Comparer
	zero any
	// owns is set by initialize when superseded values must be released.
	owns bool

	initMu      sync.Mutex
	initialized bool
	initErr     error

	evalMu       sync.Mutex
	disposed     bool
	deferred     atomic.Bool
	current      atomic.Pointer[Evaluation]
	pending      atomic.Bool
	raisePending atomic.Bool

	childMu  sync.Mutex
	children []child
}

func (b *nodeBase) base() *nodeBase { return b }

func (b *nodeBase) teardown() {}

func (b *nodeBase) setup(o *Observer, self node, e expr.Expr, key string) {
	b.obs, b.self, b.expr, b.key = o, self, e, key
	b.kind = e.Kind()
	b.id = uuid.New()
	b.typ = e.Type()
	b.cmp = fastcmp.For(b.typ)
	b.zero = zeroOf(b.typ)
	b.deferred.Store(true)
	b.current.Store(&Evaluation{Result: b.zero})
}

func (b *nodeBase) ensureInitialized() error {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	if !b.initialized {
		b.initialized = true
		b.initErr = b.self.initialize()
	}
	return b.initErr
}

// get returns the current Evaluation, evaluating a deferred node first.
// Forcing never raises: the caller is the only one that can be interested.
func (b *nodeBase) get() Evaluation {
	if b.deferred.Load() {
		b.force()
	}
	return *b.current.Load()
}

func (b *nodeBase) force() {
	b.evalMu.Lock()
	if b.disposed || !b.deferred.Load() {
		b.evalMu.Unlock()
		return
	}
	b.pending.Store(false)
	b.raisePending.Store(false)
	ev := b.compute(b.self.evaluate)
	b.current.Store(&ev)
	b.deferred.Store(false)
	b.evalMu.Unlock()

	// A getter may have raised from inside evaluate.
	if b.pending.Load() {
		b.update(nil, false)
	}
}

// reevaluate runs in response to a dependency change.
func (b *nodeBase) reevaluate() { b.update(nil, false) }

// update recomputes the node with compute, or evaluate when nil, and
// publishes the outcome. It raises when the Evaluation changed, or always
// when forceRaise is set.
//
// update never waits on evalMu. When an evaluation is already running, on
// another goroutine or further up this one's stack, the request is left
// pending and the running evaluation repeats before it publishes.
func (b *nodeBase) update(compute func() Evaluation, forceRaise bool) {
	if forceRaise {
		b.raisePending.Store(true)
	}
	b.pending.Store(true)
	for b.pending.Load() {
		if !b.evalMu.TryLock() {
			return
		}
		b.drain(compute)
		compute = nil
	}
}

// drain runs with evalMu held and releases it.
func (b *nodeBase) drain(compute func() Evaluation) {
	if b.disposed || b.deferred.Load() {
		b.pending.Store(false)
		b.raisePending.Store(false)
		b.evalMu.Unlock()
		return
	}
	ev := *b.current.Load()
	changed := false
	for b.pending.Swap(false) {
		fn := compute
		if fn == nil {
			fn = b.self.evaluate
		}
		compute = nil
		next := b.compute(fn)
		if !sameEvaluation(b.cmp, ev, next) {
			if b.owns && !fastcmp.SameReference(ev.Result, next.Result) {
				b.release(ev.Result)
			}
			ev = next
			b.current.Store(&ev)
			changed = true
		} else if b.owns && !fastcmp.SameReference(ev.Result, next.Result) {
			// An equal but distinct value: the current one stays.
			b.release(next.Result)
		}
	}
	forceRaise := b.raisePending.Swap(false)
	b.evalMu.Unlock()

	if changed || forceRaise {
		b.raise(ev)
	}
}

func (b *nodeBase) compute(fn func() Evaluation) (ev Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			ev = faulted(fmt.Errorf("panic: %v", r))
		}
		if ev.Fault != nil {
			ev.Result = b.zero
		}
		b.obs.metrics.recordEvaluation(b.kind, ev.Fault != nil)
		if b.obs.trace {
			b.obs.logger.Debug("evaluated", b.attrs(ev)...)
		}
	}()
	return fn()
}

func (b *nodeBase) raise(ev Evaluation) {
	if b.obs.trace {
		b.obs.logger.Debug("raising change", b.attrs(ev)...)
	}
	b.RaisePropertyChanged(b.self, evaluationProperty)
	if b.obs.trace {
		b.obs.logger.Debug("raised change", b.attrs(ev)...)
	}
}

func (b *nodeBase) attrs(ev Evaluation) []any {
	return []any{
		slog.String("node", b.id.String()),
		slog.String("kind", b.kind.String()),
		slog.String("expression", b.expr.String()),
		slog.String("evaluation", ev.String()),
	}
}

// resolveChild resolves e as a deferred child that re-evaluates b when it
// changes.
func (b *nodeBase) resolveChild(e expr.Expr) (node, error) {
	return b.resolveChildWith(e, b.reevaluate)
}

func (b *nodeBase) resolveChildWith(e expr.Expr, onChange func()) (node, error) {
	c, err := b.obs.resolve(e, true)
	if err != nil {
		return nil, err
	}
	cancel := c.base().OnPropertyChanged(func(any, string) { onChange() })
	b.childMu.Lock()
	b.children = append(b.children, child{c, cancel})
	b.childMu.Unlock()
	return c, nil
}

// dropChild cancels and releases a child resolved with resolveChild.
func (b *nodeBase) dropChild(c node) {
	b.childMu.Lock()
	for i, ch := range b.children {
		if ch.n == c {
			b.children = append(b.children[:i], b.children[i+1:]...)
			b.childMu.Unlock()
			ch.cancel()
			b.obs.release(c)
			return
		}
	}
	b.childMu.Unlock()
}

// dispose tears the node down after eviction.
func (b *nodeBase) dispose() {
	b.evalMu.Lock()
	b.disposed = true
	b.self.teardown()
	cur := *b.current.Load()
	b.evalMu.Unlock()

	b.childMu.Lock()
	children := b.children
	b.children = nil
	b.childMu.Unlock()
	for _, c := range children {
		c.cancel()
		b.obs.release(c.n)
	}
	if b.owns {
		b.release(cur.Result)
	}
}

// release disposes a produced value that is no longer current.
func (b *nodeBase) release(v any) {
	if reflectx.IsNil(v) || !dispose.Capable(v) {
		return
	}
	b.obs.metrics.recordDisposal(b.kind)
	if err := dispose.Value(context.Background(), v, b.obs.pref, b.obs.logger); err != nil {
		b.obs.logger.Warn("Releasing a superseded value failed.",
			"node", b.id.String(), "kind", b.kind.String(), "type", fmt.Sprintf("%T", v), "error", err)
	}
}

// outcome turns a (value, error) pair into an Evaluation.
func outcome(v any, err error) Evaluation {
	if err != nil {
		return faulted(err)
	}
	return succeeded(v)
}

// pull returns the results of nodes, or the first fault.
func pull(nodes []node) ([]any, error) {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		ev := n.base().get()
		if ev.Fault != nil {
			return nil, ev.Fault
		}
		out[i] = ev.Result
	}
	return out, nil
}
