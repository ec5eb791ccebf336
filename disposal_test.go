package livexpr

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/livexpr/expr"
)

func resourceByAge() *expr.LambdaExpr {
	p := expr.ParamOf[*person]("p")
	return expr.Lambda(expr.New(expr.NewCtor(newResource), expr.Member(p, "Age")), p)
}

func TestDisposal_SupersededConstructedValueIsClosedOnce(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	obs := New(nil)
	p := newPerson("John", 1)
	h, err := obs.Observe(resourceByAge(), p)
	require.NoError(t, err)
	first := h.Result().(*resource)

	// --- Act ---
	p.SetAge(2)
	second := h.Result().(*resource)

	// --- Assert ---
	require.NotSame(t, first, second)
	assert.Equal(t, 2, second.ID)
	assert.EqualValues(t, 1, first.closed.Load(), "the superseded instance is released")
	assert.Zero(t, second.closed.Load(), "the current instance is never released")

	require.NoError(t, h.Close())
	assert.EqualValues(t, 1, first.closed.Load(), "released exactly once")
	assert.EqualValues(t, 1, second.closed.Load(), "eviction releases the current instance")
}

func TestDisposal_DisabledByDefaultToggle(t *testing.T) {
	t.Parallel()

	opts := NewOptions()
	opts.DisposeConstructedObjects = false
	obs := New(opts)
	p := newPerson("John", 1)

	h, err := obs.Observe(resourceByAge(), p)
	require.NoError(t, err)
	first := h.Result().(*resource)
	p.SetAge(2)
	require.NoError(t, h.Close())

	assert.Zero(t, first.closed.Load())
}

func TestDisposal_ConstructedTypeRule(t *testing.T) {
	t.Parallel()

	opts := NewOptions()
	opts.DisposeConstructedObjects = false
	require.NoError(t, opts.AddConstructedTypeDisposal(reflect.TypeFor[*resource](), reflect.TypeFor[int]()))
	obs := New(opts)
	p := newPerson("John", 1)

	h, err := obs.Observe(resourceByAge(), p)
	require.NoError(t, err)
	first := h.Result().(*resource)
	p.SetAge(2)
	assert.EqualValues(t, 1, first.closed.Load())
	require.NoError(t, h.Close())
}

func TestDisposal_StaticCallResults(t *testing.T) {
	t.Parallel()

	open := expr.NewFunc("open", newResource)
	owned := expr.NewFunc("openOwned", newResource, expr.ReturnsOwned())
	generic := expr.NewFunc("Pool[int].Acquire", newResource, expr.GenericDefinition("Pool.Acquire"))

	cases := []struct {
		name      string
		fn        *expr.Func
		configure func(o *Options)
		released  bool
	}{
		{name: "not registered", fn: open, released: false},
		{name: "global toggle", fn: open, configure: func(o *Options) { o.DisposeStaticCallResults = true }, released: true},
		{name: "func rule", fn: open, configure: func(o *Options) { require.NoError(t, o.AddFuncDisposal(open)) }, released: true},
		{name: "owned result", fn: owned, released: true},
		{name: "generic definition", fn: generic, configure: func(o *Options) {
			require.NoError(t, o.AddGenericDefinitionDisposal("Pool.Acquire"))
		}, released: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := NewOptions()
			if tc.configure != nil {
				tc.configure(opts)
			}
			obs := New(opts)
			p := newPerson("John", 1)
			param := expr.ParamOf[*person]("p")
			l := expr.Lambda(expr.CallFunc(tc.fn, expr.Member(param, "Age")), param)

			h, err := obs.Observe(l, p)
			require.NoError(t, err)
			first := h.Result().(*resource)
			p.SetAge(2)
			require.NoError(t, h.Close())

			if tc.released {
				assert.EqualValues(t, 1, first.closed.Load())
			} else {
				assert.Zero(t, first.closed.Load())
			}
		})
	}
}

type asyncResource struct {
	closes, asyncCloses atomic.Int32
}

func (r *asyncResource) Close() error {
	r.closes.Add(1)
	return nil
}

func (r *asyncResource) CloseAsync(context.Context) error {
	r.asyncCloses.Add(1)
	return nil
}

func TestDisposal_PrefersAsyncRelease(t *testing.T) {
	t.Parallel()

	opts := NewOptions()
	opts.BlockOnAsyncDisposal = true
	obs := New(opts)
	p := newPerson("John", 1)
	param := expr.ParamOf[*person]("p")
	mk := expr.NewCtor(func(int) *asyncResource { return &asyncResource{} })
	h, err := obs.Observe(expr.Lambda(expr.New(mk, expr.Member(param, "Age")), param), p)
	require.NoError(t, err)
	first := h.Result().(*asyncResource)

	p.SetAge(2)
	require.NoError(t, h.Close())

	assert.EqualValues(t, 1, first.asyncCloses.Load())
	assert.Zero(t, first.closes.Load())
}
