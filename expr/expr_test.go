package expr

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name *string
	Age  int
}

func (p *person) Greeting() string { return "hi" }

type widget struct {
	Label string
	Size  int
}

func newWidget(label string, size int) *widget { return &widget{Label: label, Size: size} }

func ptr[T any](v T) *T { return &v }

func nameLength() *LambdaExpr {
	p := ParamOf[*person]("p")
	return Lambda(Len(Deref(Member(p, "Name"))), p)
}

func TestKey_StructuralEquality(t *testing.T) {
	john := &person{Name: ptr("John")}

	a, err := Apply(nameLength(), john)
	require.NoError(t, err)
	b, err := Apply(nameLength(), john)
	require.NoError(t, err)
	assert.Equal(t, Key(a), Key(b), "separately built trees over the same instance share a key")

	c, err := Apply(nameLength(), &person{Name: ptr("John")})
	require.NoError(t, err)
	assert.NotEqual(t, Key(a), Key(c), "pointer constants compare by identity")

	assert.Equal(t, reflect.TypeFor[int](), a.Type())
	assert.Equal(t, "len(*p.Name)", nameLength().Body.String())
}

func TestKey_Constants(t *testing.T) {
	assert.Equal(t, Key(Const(3)), Key(Const(3)))
	assert.NotEqual(t, Key(Const(3)), Key(Const(int64(3))))
	assert.NotEqual(t, Key(Const(3)), Key(Const("3")))
	assert.Equal(t, Key(Const(widget{"a", 1})), Key(Const(widget{"a", 1})))

	fn := Const(func() {})
	assert.NotEqual(t, Key(fn), Key(fn), "func constants are never shared")

	nested := Add(Const(1), Const(2))
	assert.Equal(t, Key(Const(Expr(nested))), Key(Const(Expr(Add(Const(1), Const(2))))))
}

func TestKey_LambdaParametersArePositional(t *testing.T) {
	x := ParamOf[int]("x")
	y := ParamOf[int]("y")
	l1 := Lambda(Add(x, Const(1)), x)
	l2 := Lambda(Add(y, Const(1)), y)
	assert.Equal(t, Key(l1), Key(l2))
	assert.Equal(t, Key(Invoke(l1, Const(2))), Key(Invoke(l2, Const(2))))
}

func TestBuilders_RecordErrors(t *testing.T) {
	tests := []struct {
		name string
		e    Expr
		want error
	}{
		{"mismatched operands", Add(Const(1), Const("a")), ErrUnsupported},
		{"nil operand", Add(Const(1), nil), ErrMalformed},
		{"unknown member", Member(Const(&person{}), "Nope"), ErrMalformed},
		{"non-bool condition", Conditional(Const(1), Const(1), Const(2)), ErrUnsupported},
		{"branch mismatch", Conditional(Const(true), Const(1), Const("x")), ErrMalformed},
		{"coalesce non-nilable", Coalesce(Const(1), Const(2)), ErrUnsupported},
		{"lambda arity", Invoke(Lambda(Const(1), ParamOf[int]("a")), Const(1), Const(2)), ErrArity},
		{"ctor arity", New(NewCtor(newWidget), Const("a")), ErrArity},
		{"inherited", Not(Add(Const(1), Const("a"))), ErrUnsupported},
		{"not indexable", Index(Const(3), Const(0)), ErrUnsupported},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.e.Err(), tc.want)
		})
	}
}

func TestBuilders_Types(t *testing.T) {
	assert.Equal(t, reflect.TypeFor[bool](), AndAlso(Const(true), Const(false)).Type())
	assert.Equal(t, reflect.TypeFor[string](), Coalesce(Value[*string](nil), Const("x")).Type())
	assert.True(t, Coalesce(Value[*string](nil), Const("x")).Deref)
	assert.Equal(t, reflect.TypeFor[*widget](), New(NewCtor(newWidget), Const("a"), Const(1)).Type())
	assert.Equal(t, reflect.TypeFor[[]int](), NewArray(reflect.TypeFor[int](), Const(1), Const(2)).Type())
	assert.Equal(t, reflect.TypeFor[string](), Index(Const([]string{"a"}), Const(0)).Type())
	assert.Equal(t, reflect.TypeFor[int](), Index(Const(map[string]int{}), Const("k")).Type())
	assert.Equal(t, reflect.TypeFor[string](), Call(Const(&person{}), "Greeting").Type())

	mi := MemberInit(New(CtorOf[*widget]()), Assign("Label", Const("x")))
	require.NoError(t, mi.Err())
	assert.NotNil(t, mi.Bindings[0].Setter())
}

func TestSubstitute(t *testing.T) {
	x := ParamOf[int]("x")
	unrelated := Multiply(Const(2), Const(3))
	body := Add(x, unrelated)

	out := Substitute(body, map[*ParameterExpr]Expr{x: Const(5)})
	bin, ok := out.(*BinaryExpr)
	require.True(t, ok)
	assert.Same(t, unrelated, bin.Right, "untouched subtrees keep their identity")
	assert.Equal(t, Key(Add(Const(5), unrelated)), Key(out))

	// An inner lambda that rebinds x shadows the outer replacement.
	inner := Lambda(x, x)
	assert.Same(t, inner, Substitute(inner, map[*ParameterExpr]Expr{x: Const(1)}))
}

func TestApply_Validation(t *testing.T) {
	_, err := Apply(nameLength())
	assert.ErrorIs(t, err, ErrArity)

	_, err = Apply(nameLength(), "not a person")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Apply(nil)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestChildren(t *testing.T) {
	e := Conditional(Const(true), Const(1), Const(2))
	kinds := []Kind{}
	for _, c := range Children(e) {
		kinds = append(kinds, c.Kind())
	}
	if diff := cmp.Diff([]Kind{KindConstant, KindConstant, KindConstant}, kinds); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Conditional", e.Kind().String())
}
