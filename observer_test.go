package livexpr

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/notify"
)

func nameLength() *expr.LambdaExpr {
	p := expr.ParamOf[*person]("p")
	return expr.Lambda(expr.Len(expr.Deref(expr.Member(p, "Name"))), p)
}

func TestObserve_NameLengthFollowsChanges(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	obs := New(nil)
	p := newPerson("John", 30)

	h, err := obs.Observe(nameLength(), p)
	require.NoError(t, err)
	require.Equal(t, 4, h.Result())

	var mu sync.Mutex
	var raised []string
	cancel := h.OnPropertyChanged(func(_ any, property string) {
		mu.Lock()
		raised = append(raised, property)
		mu.Unlock()
	})
	defer cancel()

	// --- Act & Assert ---
	p.SetName(ptr("Jonathan"))
	assert.Equal(t, 8, h.Result())
	assert.NoError(t, h.Fault())
	assert.Equal(t, []string{"Evaluation", "Result"}, raised)

	raised = nil
	p.SetName(nil)
	require.ErrorIs(t, h.Fault(), ErrNilReference)
	assert.Equal(t, 0, h.Result(), "a faulted evaluation carries the zero result")
	assert.Equal(t, []string{"Evaluation", "Fault", "Result"}, raised)

	raised = nil
	p.SetName(ptr("Ada"))
	assert.NoError(t, h.Fault())
	assert.Equal(t, 3, h.Result())
	assert.Equal(t, []string{"Evaluation", "Fault", "Result"}, raised)

	require.NoError(t, h.Close())
	assert.Zero(t, obs.CachedNodes())
	assert.Zero(t, obs.LiveHandles())
	assert.Zero(t, p.PropertySubscribers(), "closing the last handle unsubscribes from the person")
}

func TestObserve_SharesHandlesAndNodes(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 30)

	h1, err := obs.Observe(nameLength(), p)
	require.NoError(t, err)
	h2, err := obs.Observe(nameLength(), p)
	require.NoError(t, err)
	assert.Same(t, h1, h2, "structurally equal observations share one handle")
	assert.Equal(t, 1, obs.LiveHandles())

	other, err := obs.Observe(nameLength(), newPerson("Ada", 1))
	require.NoError(t, err)
	assert.NotSame(t, h1, other)

	require.NoError(t, h1.Close())
	assert.Equal(t, 2, obs.LiveHandles(), "one reference is still held")
	assert.Equal(t, 4, h2.Result())
	require.NoError(t, h2.Close())
	require.NoError(t, other.Close())
	assert.Zero(t, obs.LiveHandles())
	assert.Zero(t, obs.CachedNodes())
}

func TestObserve_SharesSubExpressions(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 30)
	param := expr.ParamOf[*person]("p")
	plusOne := expr.Lambda(expr.Add(expr.Member(param, "Age"), expr.Const(1)), param)
	double := expr.Lambda(expr.Multiply(expr.Member(param, "Age"), expr.Const(2)), param)

	h1, err := obs.Observe(plusOne, p)
	require.NoError(t, err)
	defer h1.Close()
	h2, err := obs.Observe(double, p)
	require.NoError(t, err)
	defer h2.Close()

	byKind := obs.CachedNodesByKind()
	assert.Equal(t, 1, byKind[expr.KindMember], "p.Age is shared")
	assert.Equal(t, 2, byKind[expr.KindBinary])
	assert.Equal(t, 3, byKind[expr.KindConstant])
	assert.Equal(t, 1, p.PropertySubscribers())

	p.SetAge(40)
	assert.Equal(t, 41, h1.Result())
	assert.Equal(t, 80, h2.Result())
}

func TestObserve_ConcurrentObserveAndClose(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 30)

	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			for range 50 {
				h, err := obs.Observe(nameLength(), p)
				if err != nil {
					return err
				}
				if got := h.Result(); got != 4 {
					h.Close()
					return fmt.Errorf("unexpected result %v", got)
				}
				if err := h.Close(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Zero(t, obs.LiveHandles())
	assert.Zero(t, obs.CachedNodes())
	assert.Zero(t, p.PropertySubscribers())
}

func TestObserve_ConcurrentChanges(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 0)
	param := expr.ParamOf[*person]("p")
	l := expr.Lambda(expr.Multiply(expr.Member(param, "Age"), expr.Const(2)), param)

	h, err := obs.Observe(l, p)
	require.NoError(t, err)
	defer h.Close()

	var g errgroup.Group
	for i := range 8 {
		g.Go(func() error {
			for j := range 25 {
				p.SetAge(i*100 + j)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	p.SetAge(1000)
	assert.Equal(t, 2000, h.Result())
}

func TestObserve_ConcurrentChangesSettleOnLatest(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 0)
	param := expr.ParamOf[*person]("p")
	l := expr.Lambda(expr.Multiply(expr.Member(param, "Age"), expr.Const(2)), param)

	for range 20 {
		h, err := obs.Observe(l, p)
		require.NoError(t, err)

		var g errgroup.Group
		for i := range 8 {
			g.Go(func() error {
				for j := range 25 {
					p.SetAge(i*100 + j + 1)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, 2*p.Age(), h.Result())
		require.NoError(t, h.Close())
	}
}

// lazyTotal starts loading on its first read and raises once the load is
// done, from inside that same read.
type lazyTotal struct {
	notify.Source
	reads atomic.Int32
	total atomic.Int64
}

func (l *lazyTotal) Total() int {
	if l.reads.Add(1) == 1 {
		l.total.Store(42)
		l.RaisePropertyChanged(l, "Total")
		return 0
	}
	return int(l.total.Load())
}

func observeWithin(t *testing.T, obs *Observer, l *expr.LambdaExpr, args ...any) *Handle {
	t.Helper()
	var (
		h   *Handle
		err error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h, err = obs.Observe(l, args...)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Observe did not return")
	}
	require.NoError(t, err)
	return h
}

func TestObserve_GetterRaisingDuringEvaluation(t *testing.T) {
	t.Parallel()

	t.Run("root", func(t *testing.T) {
		t.Parallel()
		obs := New(nil)
		lt := &lazyTotal{}
		param := expr.ParamOf[*lazyTotal]("l")

		h := observeWithin(t, obs, expr.Lambda(expr.Member(param, "Total"), param), lt)
		defer h.Close()

		assert.Equal(t, 42, h.Result(), "the change raised mid-evaluation is not lost")
		assert.Equal(t, int32(2), lt.reads.Load())
	})

	t.Run("deferred child", func(t *testing.T) {
		t.Parallel()
		obs := New(nil)
		lt := &lazyTotal{}
		param := expr.ParamOf[*lazyTotal]("l")
		l := expr.Lambda(expr.Add(expr.Member(param, "Total"), expr.Const(1)), param)

		h := observeWithin(t, obs, l, lt)
		defer h.Close()

		assert.Equal(t, 43, h.Result())
	})
}

func TestObserve_ShortCircuitSkipsRightOperand(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 10)
	var calls atomic.Int32
	touch := expr.NewFunc("touch", func() bool {
		calls.Add(1)
		return true
	})
	param := expr.ParamOf[*person]("p")
	adult := expr.GreaterThan(expr.Member(param, "Age"), expr.Const(18))
	l := expr.Lambda(expr.AndAlso(adult, expr.CallFunc(touch)), param)

	h, err := obs.Observe(l, p)
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, false, h.Result())
	assert.Zero(t, calls.Load(), "the right operand is never evaluated while the left is false")

	p.SetAge(20)
	assert.Equal(t, true, h.Result())
	assert.EqualValues(t, 1, calls.Load())

	p.SetAge(5)
	assert.Equal(t, false, h.Result())
	assert.EqualValues(t, 1, calls.Load())
}

func TestObserve_ConditionalEvaluatesOnlyTakenBranch(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 10)
	var calls atomic.Int32
	expensive := expr.NewFunc("expensive", func() int {
		calls.Add(1)
		return 99
	})
	param := expr.ParamOf[*person]("p")
	l := expr.Lambda(expr.Conditional(
		expr.GreaterThan(expr.Member(param, "Age"), expr.Const(18)),
		expr.CallFunc(expensive),
		expr.Const(-1),
	), param)

	h, err := obs.Observe(l, p)
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, -1, h.Result())
	assert.Zero(t, calls.Load())

	p.SetAge(30)
	assert.Equal(t, 99, h.Result())
	assert.EqualValues(t, 1, calls.Load())
}

func TestObserve_UnchangedEvaluationDoesNotNotify(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 20)
	param := expr.ParamOf[*person]("p")
	l := expr.Lambda(expr.GreaterThan(expr.Member(param, "Age"), expr.Const(18)), param)

	h, err := obs.Observe(l, p)
	require.NoError(t, err)
	defer h.Close()

	var changes atomic.Int32
	cancel := h.Watch(func(_, _ Evaluation) { changes.Add(1) })
	defer cancel()

	p.SetAge(30)
	p.SetAge(40)
	assert.Zero(t, changes.Load(), "true stays true")

	p.SetAge(1)
	assert.EqualValues(t, 1, changes.Load())
}

func TestObserve_CoalesceFallsBack(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 20)
	param := expr.ParamOf[*person]("p")
	l := expr.Lambda(expr.Deref(expr.Coalesce(expr.Member(param, "Name"), expr.Value(ptr("unknown")))), param)

	h, err := obs.Observe(l, p)
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, "John", h.Result())

	p.SetName(nil)
	assert.Equal(t, "unknown", h.Result())
	assert.NoError(t, h.Fault())
}

func TestObserve_IgnoredPropertyIsNotFollowed(t *testing.T) {
	t.Parallel()

	opts := NewOptions()
	require.NoError(t, opts.IgnorePropertyChanges(reflectTypeOfPerson(), "Age"))
	obs := New(opts)
	p := newPerson("John", 20)
	param := expr.ParamOf[*person]("p")
	l := expr.Lambda(expr.Member(param, "Age"), param)

	h, err := obs.Observe(l, p)
	require.NoError(t, err)
	defer h.Close()

	p.SetAge(21)
	assert.Equal(t, 20, h.Result(), "changes of an ignored property are not observed")
	assert.Zero(t, p.PropertySubscribers())
}

func TestObserve_Errors(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 20)
	param := expr.ParamOf[*person]("p")

	t.Run("nil lambda", func(t *testing.T) {
		_, err := obs.Observe(nil)
		require.ErrorIs(t, err, ErrNilExpression)
	})
	t.Run("arity", func(t *testing.T) {
		_, err := obs.Observe(nameLength())
		require.ErrorIs(t, err, ErrArity)
	})
	t.Run("unbound parameter", func(t *testing.T) {
		x := expr.ParamOf[int]("x")
		l := expr.Lambda(expr.Add(expr.Member(param, "Age"), x), param)
		_, err := obs.Observe(l, p)
		require.ErrorIs(t, err, ErrUnsupported)
		assert.Zero(t, obs.CachedNodes(), "partially initialised nodes are released")
		assert.Zero(t, obs.LiveHandles())
	})
	t.Run("optimizer returning nil", func(t *testing.T) {
		opts := NewOptions()
		opts.Optimizer = func(expr.Expr) expr.Expr { return nil }
		_, err := New(opts).Observe(nameLength(), p)
		require.ErrorIs(t, err, ErrNilExpression)
	})
}

func TestResolve_InitializationFaultIsShared(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	obs := New(nil)
	p := newPerson("John", 20)
	x := expr.ParamOf[int]("x")
	shared := expr.Add(expr.Member(expr.Const(p), "Age"), x)

	key := expr.Key(shared)
	pinned, created := obs.partitions[shared.Kind()].Acquire(key, func() node { return obs.newNode(shared, key) })
	require.True(t, created)

	// --- Act ---
	const resolvers = 16
	errs := make([]error, resolvers)
	var wg sync.WaitGroup
	for i := range resolvers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = obs.resolve(shared, true)
		}()
	}
	wg.Wait()

	// --- Assert ---
	for _, err := range errs {
		require.ErrorIs(t, err, ErrUnsupported)
		assert.True(t, err == errs[0], "every resolver sees the first failure")
	}
	pinned.base().childMu.Lock()
	children := len(pinned.base().children)
	pinned.base().childMu.Unlock()
	assert.Equal(t, 1, children, "initialisation ran once")

	obs.release(pinned)
	assert.Zero(t, obs.CachedNodes())
	assert.Zero(t, p.PropertySubscribers())
}

func TestObserve_ConcurrentInitializationFaults(t *testing.T) {
	t.Parallel()

	obs := New(nil)
	p := newPerson("John", 20)
	param := expr.ParamOf[*person]("p")
	x := expr.ParamOf[int]("x")
	shared := expr.Add(expr.Member(param, "Age"), x)

	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			l := expr.Lambda(expr.Multiply(shared, expr.Const(i)), param)
			if _, err := obs.Observe(l, p); !errors.Is(err, ErrUnsupported) {
				return fmt.Errorf("observer %d: unexpected error %v", i, err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Zero(t, obs.CachedNodes())
	assert.Zero(t, obs.LiveHandles())
	assert.Zero(t, p.PropertySubscribers())
}

func TestObserve_OptimizerRewritesBody(t *testing.T) {
	t.Parallel()

	opts := NewOptions()
	opts.Optimizer = func(e expr.Expr) expr.Expr {
		return expr.Add(e, expr.Const(100))
	}
	obs := New(opts)
	param := expr.ParamOf[*person]("p")

	h, err := obs.Observe(expr.Lambda(expr.Member(param, "Age"), param), newPerson("John", 1))
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 101, h.Result())
}

func TestDefault_IsShared(t *testing.T) {
	t.Parallel()
	assert.Same(t, Default(), Default())
}
