package livexpr

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/specialistvlad/livexpr/dispose"
	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/refcache"
)

// Observer owns the shared node graph. Observations of structurally equal
// expressions share nodes, so one Observer should serve a whole program;
// Default returns such an instance.
type Observer struct {
	opts    *Options
	logger  *slog.Logger
	trace   bool
	pref    dispose.Preference
	metrics *metrics

	partitions map[expr.Kind]*refcache.Cache[string, node]
	handles    refcache.Cache[handleKey, *Handle]
}

// New returns an Observer using a snapshot of opts. A nil opts means
// NewOptions().
func New(opts *Options) *Observer {
	if opts == nil {
		opts = NewOptions()
	}
	opts = opts.Clone()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Observer{
		opts:       opts,
		logger:     logger,
		trace:      opts.TraceEvents,
		pref:       dispose.Preference{PreferAsync: opts.PreferAsyncDisposal, Block: opts.BlockOnAsyncDisposal},
		metrics:    newMetrics(opts.MeterProvider),
		partitions: make(map[expr.Kind]*refcache.Cache[string, node], len(expr.Kinds)),
	}
	for _, k := range expr.Kinds {
		if evaluable(k) {
			o.partitions[k] = &refcache.Cache[string, node]{}
		}
	}
	return o
}

// evaluable reports whether kind k has shared nodes. Parameters and lambdas
// are bound by invocation and never evaluated on their own.
func evaluable(k expr.Kind) bool {
	return k != expr.KindParameter && k != expr.KindLambda
}

var defaultObserver = sync.OnceValue(func() *Observer { return New(nil) })

// Default returns the process-wide Observer with default options.
func Default() *Observer { return defaultObserver() }

// Options returns a copy of the options the Observer was created with.
func (o *Observer) Options() *Options { return o.opts.Clone() }

// CachedNodes returns the number of resident shared nodes.
func (o *Observer) CachedNodes() int {
	n := 0
	for _, p := range o.partitions {
		n += p.Len()
	}
	return n
}

// CachedNodesByKind returns the resident node count per kind, omitting
// empty kinds.
func (o *Observer) CachedNodesByKind() map[expr.Kind]int {
	out := make(map[expr.Kind]int)
	for k, p := range o.partitions {
		if n := p.Len(); n > 0 {
			out[k] = n
		}
	}
	return out
}

// LiveHandles returns the number of resident handles.
func (o *Observer) LiveHandles() int { return o.handles.Len() }

// resolve returns the shared node for e with one more reference. The node
// is initialised outside the partition lock. Unless deferEval is set it is
// evaluated before resolve returns.
func (o *Observer) resolve(e expr.Expr, deferEval bool) (node, error) {
	if e == nil {
		return nil, ErrNilExpression
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	p, ok := o.partitions[e.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s outside an invocation", ErrUnsupported, e.Kind(), e)
	}

	key := expr.Key(e)
	n, created := p.Acquire(key, func() node { return o.newNode(e, key) })
	b := n.base()
	if created {
		o.metrics.recordCreated(b.kind)
		if o.trace {
			o.logger.Debug("node created", "node", b.id.String(), "kind", b.kind.String(), "expression", e.String())
		}
	}
	if err := b.ensureInitialized(); err != nil {
		o.release(n)
		return nil, err
	}
	if !deferEval {
		b.get()
	}
	return n, nil
}

// release drops one reference to n and tears it down when it was the last.
func (o *Observer) release(n node) {
	b := n.base()
	if _, evicted := o.partitions[b.kind].Release(b.key, n); !evicted {
		return
	}
	b.dispose()
	o.metrics.recordEvicted(b.kind)
	if o.trace {
		o.logger.Debug("node evicted", "node", b.id.String(), "kind", b.kind.String(), "expression", b.expr.String())
	}
}

func (o *Observer) newNode(e expr.Expr, key string) node {
	var n node
	switch e := e.(type) {
	case *expr.BinaryExpr:
		n = &binaryNode{e: e}
	case *expr.LogicalExpr:
		n = &logicalNode{e: e}
	case *expr.CoalesceExpr:
		n = &coalesceNode{e: e}
	case *expr.ConditionalExpr:
		n = &conditionalNode{e: e}
	case *expr.ConstantExpr:
		n = &constantNode{e: e}
	case *expr.IndexExpr:
		n = &indexNode{e: e}
	case *expr.InvokeExpr:
		n = &invokeNode{e: e}
	case *expr.MemberExpr:
		n = &memberNode{e: e}
	case *expr.MemberInitExpr:
		n = &memberInitNode{e: e}
	case *expr.CallExpr:
		n = &callNode{e: e}
	case *expr.NewExpr:
		n = &newNode{e: e}
	case *expr.NewArrayExpr:
		n = &newArrayNode{e: e}
	case *expr.TypeIsExpr:
		n = &typeIsNode{e: e}
	case *expr.UnaryExpr:
		n = &unaryNode{e: e}
	default:
		// resolve only reaches here for kinds with a partition.
		panic(fmt.Sprintf("livexpr: no node for %T", e))
	}
	n.base().setup(o, n, e, key)
	return n
}
