package livexpr

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/fastcmp"
	"github.com/specialistvlad/livexpr/notify"
)

const (
	faultProperty  = "Fault"
	resultProperty = "Result"
)

type handleKey struct {
	key   string
	arity int
}

// Handle is a live observation of a bound expression. Handles are shared:
// observing a structurally equal expression with the same arguments returns
// the same Handle, so every successful Observe must be balanced by exactly
// one Close.
//
// A Handle raises "Evaluation" on every change, followed by "Fault" and/or
// "Result" for the half that changed. It is a PropertyNotifier itself, so
// expressions can depend on other handles.
type Handle struct {
	notify.Source

	obs  *Observer
	key  handleKey
	id   uuid.UUID
	expr expr.Expr
	args []any

	initMu      sync.Mutex
	initialized bool
	initErr     error
	root        node
	cancelRoot  func()

	mu          sync.Mutex
	closed      bool
	last        Evaluation
	nextWatcher uint64
	watchers    map[uint64]func(old, new Evaluation)
}

// Observe binds args to the parameters of l and returns a live Handle over
// the body. Only construction and initialisation failures are returned;
// evaluation failures become the Handle's Fault.
func (o *Observer) Observe(l *expr.LambdaExpr, args ...any) (*Handle, error) {
	if l == nil {
		return nil, ErrNilExpression
	}
	if err := l.Err(); err != nil {
		return nil, err
	}
	if o.opts.Optimizer != nil {
		body := o.opts.Optimizer(l.Body)
		if body == nil {
			return nil, fmt.Errorf("%w: optimizer returned nil", ErrNilExpression)
		}
		l = expr.Lambda(body, l.Params...)
	}
	body, err := expr.Apply(l, args...)
	if err != nil {
		return nil, err
	}

	key := handleKey{expr.Key(body), len(args)}
	h, _ := o.handles.Acquire(key, func() *Handle {
		return &Handle{obs: o, key: key, id: uuid.New(), expr: body, args: slices.Clone(args)}
	})
	if err := h.ensureInitialized(); err != nil {
		o.releaseHandle(h)
		return nil, err
	}
	return h, nil
}

func (h *Handle) ensureInitialized() error {
	h.initMu.Lock()
	defer h.initMu.Unlock()
	if h.initialized {
		return h.initErr
	}
	h.initialized = true
	root, err := h.obs.resolve(h.expr, false)
	if err != nil {
		h.initErr = err
		return err
	}
	h.root = root
	h.cancelRoot = root.base().OnPropertyChanged(func(any, string) { h.onRootChanged(root) })
	h.mu.Lock()
	h.last = root.base().get()
	h.mu.Unlock()
	return nil
}

// onRootChanged reads the root under mu, so the last notification to get
// the lock always publishes the newest Evaluation.
func (h *Handle) onRootChanged(root node) {
	b := root.base()
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	ev := b.get()
	old := h.last
	h.last = ev
	watchers := make([]func(old, new Evaluation), 0, len(h.watchers))
	for _, id := range slices.Sorted(maps.Keys(h.watchers)) {
		watchers = append(watchers, h.watchers[id])
	}
	h.mu.Unlock()

	for _, w := range watchers {
		w(old, ev)
	}
	h.RaisePropertyChanged(h, evaluationProperty)
	if !sameFault(old.Fault, ev.Fault) {
		h.RaisePropertyChanged(h, faultProperty)
	}
	if !fastcmp.SameReference(old.Result, ev.Result) && !b.cmp.Equal(old.Result, ev.Result) {
		h.RaisePropertyChanged(h, resultProperty)
	}
}

// Evaluation returns the latest Evaluation.
func (h *Handle) Evaluation() Evaluation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Fault returns the latest fault, or nil.
func (h *Handle) Fault() error { return h.Evaluation().Fault }

// Result returns the latest result, the zero value of the expression type
// while faulted.
func (h *Handle) Result() any { return h.Evaluation().Result }

// Expression returns the bound body being observed.
func (h *Handle) Expression() expr.Expr { return h.expr }

// Args returns the arguments the body was bound with.
func (h *Handle) Args() []any { return slices.Clone(h.args) }

// ID identifies the handle in trace logs.
func (h *Handle) ID() uuid.UUID { return h.id }

// Watch calls fn with the previous and the new Evaluation after every
// change, on the goroutine that delivered it.
func (h *Handle) Watch(fn func(old, new Evaluation)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers == nil {
		h.watchers = make(map[uint64]func(old, new Evaluation))
	}
	id := h.nextWatcher
	h.nextWatcher++
	h.watchers[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers, id)
			h.mu.Unlock()
		})
	}
}

// Close releases one reference. The last Close unsubscribes from the
// expression and releases its nodes. Surplus calls are no-ops.
func (h *Handle) Close() error {
	h.obs.releaseHandle(h)
	return nil
}

// CloseAsync is Close for callers holding a context.
func (h *Handle) CloseAsync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.Close()
}

func (o *Observer) releaseHandle(h *Handle) {
	if _, evicted := o.handles.Release(h.key, h); !evicted {
		return
	}
	h.mu.Lock()
	h.closed = true
	h.watchers = nil
	h.mu.Unlock()

	h.initMu.Lock()
	root, cancel := h.root, h.cancelRoot
	h.root, h.cancelRoot = nil, nil
	h.initMu.Unlock()
	if root != nil {
		cancel()
		o.release(root)
	}
	if o.trace {
		o.logger.Debug("handle closed", "handle", h.id.String(), "expression", h.expr.String())
	}
}
