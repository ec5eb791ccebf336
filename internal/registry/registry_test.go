package registry

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/config"
)

type widget struct{}

type gadget struct{}

func newWidget(string) *widget { return &widget{} }

func TestRegistry_Type(t *testing.T) {
	t.Parallel()

	r := New()
	r.RegisterType(reflect.TypeFor[*widget](), "Widget")

	cases := map[string]reflect.Type{
		"int":               reflect.TypeFor[int](),
		"interface{}":       reflect.TypeFor[any](),
		"registry.widget":   reflect.TypeFor[widget](),
		"Widget":            reflect.TypeFor[widget](),
		"*Widget":           reflect.TypeFor[*widget](),
		"[]*Widget":         reflect.TypeFor[[]*widget](),
		" [][]string ":      reflect.TypeFor[[][]string](),
		"**registry.widget": reflect.TypeFor[**widget](),
	}
	for name, want := range cases {
		got, ok := r.Type(name)
		if assert.True(t, ok, name) {
			assert.Equal(t, want, got, name)
		}
	}

	_, ok := r.Type("*Gadget")
	assert.False(t, ok)
}

func TestRegistry_DuplicateNamesPanic(t *testing.T) {
	t.Parallel()

	r := New()
	r.RegisterType(reflect.TypeFor[widget](), "Thing")
	assert.NotPanics(t, func() { r.RegisterType(reflect.TypeFor[*widget](), "Thing") }, "same type again is fine")
	assert.PanicsWithValue(t, "type with name 'Thing' already registered", func() {
		r.RegisterType(reflect.TypeFor[gadget](), "Thing")
	})

	r.RegisterFunc(expr.NewFunc("newWidget", newWidget))
	assert.Panics(t, func() { r.RegisterFunc(expr.NewFunc("newWidget", newWidget)) })
	assert.Panics(t, func() { r.RegisterFunc(nil) })
}

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fn := expr.NewFunc("newWidget", newWidget)
	r := New()
	r.RegisterType(reflect.TypeFor[widget](), "Widget")
	r.RegisterFunc(fn)

	m := config.NewModel()
	require.NoError(t, m.Defaults.Set("member_map_changes", false))
	m.Constructed = []*config.ConstructedRule{{Type: "*Widget", Args: []string{"string"}, Source: "p.hcl"}}
	m.Methods = []*config.MemberRule{{Owner: "Widget", Name: "Close", Source: "p.hcl"}}
	m.Funcs = []*config.NameRule{{Name: "newWidget", Source: "p.hcl"}}
	m.Generics = []*config.NameRule{{Name: "Pool.Acquire", Source: "p.hcl"}}

	// --- Act ---
	p, err := r.Resolve(context.Background(), m)

	// --- Assert ---
	require.NoError(t, err)
	assert.False(t, *p.Defaults.MemberMapChanges)
	require.Len(t, p.Constructed, 1)
	assert.Equal(t, reflect.TypeFor[*widget](), p.Constructed[0].Type)
	assert.Equal(t, []reflect.Type{reflect.TypeFor[string]()}, p.Constructed[0].Args)
	assert.Equal(t, []Member{{Owner: reflect.TypeFor[widget](), Name: "Close"}}, p.Methods)
	assert.Same(t, fn, p.Funcs[0])
	assert.Equal(t, []string{"Pool.Acquire"}, p.Generics)
}

func TestRegistry_Resolve_ReportsEveryUnknownName(t *testing.T) {
	t.Parallel()

	m := config.NewModel()
	m.Constructed = []*config.ConstructedRule{{Type: "Conn", Args: []string{"Dialer"}, Source: "a.hcl"}}
	m.Ignored = []*config.MemberRule{{Owner: "Cart", Name: "Total", Source: "b.yaml"}}
	m.Funcs = []*config.NameRule{{Name: "open", Source: "b.yaml"}}

	p, err := New().Resolve(context.Background(), m)

	require.Error(t, err)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.ErrorIs(t, err, ErrUnknownFunc)
	for _, want := range []string{`a.hcl: unknown type "Conn"`, `a.hcl: unknown type "Dialer"`, `b.yaml: unknown type "Cart"`, `b.yaml: unknown func "open"`} {
		assert.Contains(t, err.Error(), want)
	}
}
