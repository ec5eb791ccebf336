package expr

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/specialistvlad/livexpr/internal/ops"
	"github.com/specialistvlad/livexpr/internal/reflectx"
)

// BinaryExpr applies an arithmetic, bitwise or comparison operator.
type BinaryExpr struct {
	base
	Op          BinaryOp
	Left, Right Expr
	// Lifted operands are pointers; a nil operand propagates.
	Lifted bool
	// Method, when set, implements the operator.
	Method *Func
}

func (*BinaryExpr) Kind() Kind { return KindBinary }

// MakeBinary applies op to l and r, which must have identical types except
// for shifts and interface equality.
func MakeBinary(op BinaryOp, l, r Expr) *BinaryExpr {
	e := &BinaryExpr{Op: op, Left: l, Right: r}
	if e.err = operandErr(l, r); e.err == nil {
		e.typ, e.err = ops.BinaryResult(op, l.Type(), r.Type(), false)
	}
	return e
}

// Lifted applies op to pointer operands. Arithmetic on a nil operand yields
// nil, equality compares nil-ness and ordering against nil is false.
func Lifted(op BinaryOp, l, r Expr) *BinaryExpr {
	e := &BinaryExpr{Op: op, Left: l, Right: r, Lifted: true}
	if e.err = operandErr(l, r); e.err == nil {
		e.typ, e.err = ops.BinaryResult(op, l.Type(), r.Type(), true)
	}
	return e
}

// BinaryMethod implements op with fn, which takes both operands.
func BinaryMethod(op BinaryOp, l, r Expr, fn *Func) *BinaryExpr {
	e := &BinaryExpr{Op: op, Left: l, Right: r, Method: fn}
	if e.err = operandErr(l, r); e.err != nil {
		return e
	}
	switch {
	case fn == nil:
		e.err = fmt.Errorf("%w: nil operator method", ErrMalformed)
	case fn.Err() != nil:
		e.err = fn.Err()
	case fn.Signature().NumIn() != 2:
		e.err = fmt.Errorf("%w: operator method %s must take two operands", ErrMalformed, fn.Name())
	default:
		e.typ = fn.Result()
	}
	return e
}

func Add(l, r Expr) *BinaryExpr            { return MakeBinary(OpAdd, l, r) }
func Subtract(l, r Expr) *BinaryExpr       { return MakeBinary(OpSub, l, r) }
func Multiply(l, r Expr) *BinaryExpr       { return MakeBinary(OpMul, l, r) }
func Divide(l, r Expr) *BinaryExpr         { return MakeBinary(OpDiv, l, r) }
func Modulo(l, r Expr) *BinaryExpr         { return MakeBinary(OpRem, l, r) }
func Equal(l, r Expr) *BinaryExpr          { return MakeBinary(OpEq, l, r) }
func NotEqual(l, r Expr) *BinaryExpr       { return MakeBinary(OpNe, l, r) }
func LessThan(l, r Expr) *BinaryExpr       { return MakeBinary(OpLt, l, r) }
func LessOrEqual(l, r Expr) *BinaryExpr    { return MakeBinary(OpLe, l, r) }
func GreaterThan(l, r Expr) *BinaryExpr    { return MakeBinary(OpGt, l, r) }
func GreaterOrEqual(l, r Expr) *BinaryExpr { return MakeBinary(OpGe, l, r) }

func (e *BinaryExpr) String() string {
	if e.Method != nil {
		return fmt.Sprintf("%s(%s, %s)", e.Method.Name(), e.Left, e.Right)
	}
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

// LogicalExpr is a short-circuiting && or ||.
type LogicalExpr struct {
	base
	kind        Kind
	Left, Right Expr
}

func (e *LogicalExpr) Kind() Kind { return e.kind }

// AndAlso evaluates r only when l is true.
func AndAlso(l, r Expr) *LogicalExpr { return logical(KindAndAlso, l, r) }

// OrElse evaluates r only when l is false.
func OrElse(l, r Expr) *LogicalExpr { return logical(KindOrElse, l, r) }

func logical(k Kind, l, r Expr) *LogicalExpr {
	e := &LogicalExpr{base: base{typ: boolType}, kind: k, Left: l, Right: r}
	if e.err = operandErr(l, r); e.err == nil {
		if l.Type().Kind() != reflect.Bool || r.Type().Kind() != reflect.Bool {
			e.err = fmt.Errorf("%w: %s over %s and %s", ErrUnsupported, k, l.Type(), r.Type())
		}
	}
	return e
}

func (e *LogicalExpr) String() string {
	op := "&&"
	if e.kind == KindOrElse {
		op = "||"
	}
	return fmt.Sprintf("(%s %s %s)", e.Left, op, e.Right)
}

// CoalesceExpr yields Left when it is non-nil, otherwise Right.
type CoalesceExpr struct {
	base
	Left, Right Expr
	// Conversion, when set, maps a non-nil Left to the result type.
	Conversion *Func
	// Deref is set when a non-nil pointer Left yields its pointee.
	Deref bool
}

func (*CoalesceExpr) Kind() Kind { return KindCoalesce }

// Coalesce yields l unless it is nil, then r. A *T left operand with a T
// right operand yields T.
func Coalesce(l, r Expr) *CoalesceExpr { return CoalesceWith(l, r, nil) }

// CoalesceWith is Coalesce with conv applied to a non-nil left value.
func CoalesceWith(l, r Expr, conv *Func) *CoalesceExpr {
	e := &CoalesceExpr{Left: l, Right: r, Conversion: conv}
	if e.err = operandErr(l, r); e.err != nil {
		return e
	}
	lt, rt := l.Type(), r.Type()
	switch {
	case !nilable(lt):
		e.err = fmt.Errorf("%w: coalesce of non-nilable %s", ErrUnsupported, lt)
	case conv != nil:
		switch {
		case conv.Err() != nil:
			e.err = conv.Err()
		case conv.Signature().NumIn() != 1 || conv.Result() != rt:
			e.err = fmt.Errorf("%w: conversion %s must map %s to %s", ErrMalformed, conv.Name(), lt, rt)
		default:
			e.typ = rt
		}
	case lt == rt:
		e.typ = rt
	case lt.Kind() == reflect.Pointer && lt.Elem() == rt:
		e.typ, e.Deref = rt, true
	case rt.Kind() == reflect.Interface && lt.Implements(rt):
		e.typ = rt
	default:
		e.err = fmt.Errorf("%w: coalesce of %s and %s", ErrUnsupported, lt, rt)
	}
	return e
}

func (e *CoalesceExpr) String() string {
	if e.Conversion != nil {
		return fmt.Sprintf("(%s ?? %s via %s)", e.Left, e.Right, e.Conversion.Name())
	}
	return fmt.Sprintf("(%s ?? %s)", e.Left, e.Right)
}

// ConditionalExpr selects between two branches.
type ConditionalExpr struct {
	base
	Test, IfTrue, IfFalse Expr
}

func (*ConditionalExpr) Kind() Kind { return KindConditional }

// Conditional yields ifTrue when test holds, else ifFalse. Both branches
// must have the same type.
func Conditional(test, ifTrue, ifFalse Expr) *ConditionalExpr {
	e := &ConditionalExpr{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}
	if e.err = operandErr(test, ifTrue, ifFalse); e.err != nil {
		return e
	}
	switch {
	case test.Type().Kind() != reflect.Bool:
		e.err = fmt.Errorf("%w: condition of type %s", ErrUnsupported, test.Type())
	case ifTrue.Type() != ifFalse.Type():
		e.err = fmt.Errorf("%w: branches of %s and %s", ErrMalformed, ifTrue.Type(), ifFalse.Type())
	default:
		e.typ = ifTrue.Type()
	}
	return e
}

func (e *ConditionalExpr) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", e.Test, e.IfTrue, e.IfFalse)
}

// ConstantExpr is a literal value.
type ConstantExpr struct {
	base
	Value any
}

func (*ConstantExpr) Kind() Kind { return KindConstant }

var anyType = reflect.TypeFor[any]()

// Const wraps v with its dynamic type; a nil v has type any.
func Const(v any) *ConstantExpr {
	t := reflect.TypeOf(v)
	if t == nil {
		t = anyType
	}
	return &ConstantExpr{base: base{typ: t}, Value: v}
}

// ConstOf wraps v with static type t.
func ConstOf(v any, t reflect.Type) *ConstantExpr {
	e := &ConstantExpr{base: base{typ: t}, Value: v}
	switch {
	case t == nil:
		e.err = fmt.Errorf("%w: constant of untyped value", ErrMalformed)
	case v == nil:
		if !nilable(t) {
			e.err = fmt.Errorf("%w: nil constant of %s", ErrMalformed, t)
		}
	case !reflect.TypeOf(v).AssignableTo(t):
		e.err = fmt.Errorf("%w: %T constant is not assignable to %s", ErrMalformed, v, t)
	}
	return e
}

// Value wraps v with static type T.
func Value[T any](v T) *ConstantExpr {
	return ConstOf(v, reflect.TypeFor[T]())
}

func (e *ConstantExpr) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", v)
	case Expr:
		return "expr(" + v.String() + ")"
	}
	rv := reflect.ValueOf(e.Value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return fmt.Sprintf("%s@%#x", rv.Type(), rv.Pointer())
	}
	return fmt.Sprintf("%v", e.Value)
}

// ParameterExpr is a formal lambda parameter. Parameters compare by identity.
type ParameterExpr struct {
	base
	Name string
}

func (*ParameterExpr) Kind() Kind { return KindParameter }

// Param declares a parameter of type t.
func Param(name string, t reflect.Type) *ParameterExpr {
	e := &ParameterExpr{base: base{typ: t}, Name: name}
	if t == nil {
		e.err = fmt.Errorf("%w: parameter %s has no type", ErrMalformed, name)
	}
	return e
}

// ParamOf declares a parameter of type T.
func ParamOf[T any](name string) *ParameterExpr {
	return Param(name, reflect.TypeFor[T]())
}

func (e *ParameterExpr) String() string { return e.Name }

// LambdaExpr is a function literal over Params.
type LambdaExpr struct {
	base
	Params []*ParameterExpr
	Body   Expr
}

func (*LambdaExpr) Kind() Kind { return KindLambda }

// Lambda builds func(params...) body.
func Lambda(body Expr, params ...*ParameterExpr) *LambdaExpr {
	e := &LambdaExpr{Params: params, Body: body}
	if e.err = operandErr(body); e.err != nil {
		return e
	}
	in := make([]reflect.Type, len(params))
	for i, p := range params {
		if p == nil {
			e.err = fmt.Errorf("%w: parameter %d is nil", ErrMalformed, i)
			return e
		}
		if p.err != nil {
			e.err = p.err
			return e
		}
		in[i] = p.typ
	}
	e.typ = reflect.FuncOf(in, []reflect.Type{body.Type()}, false)
	return e
}

// Result returns the body type.
func (e *LambdaExpr) Result() reflect.Type {
	if e.Body == nil {
		return nil
	}
	return e.Body.Type()
}

func (e *LambdaExpr) String() string {
	names := make([]string, len(e.Params))
	for i, p := range e.Params {
		names[i] = p.Name
	}
	return fmt.Sprintf("func(%s) { %s }", strings.Join(names, ", "), e.Body)
}

// IndexExpr reads an element by index or key: natively for slices, arrays,
// strings and maps, otherwise through an At method.
type IndexExpr struct {
	base
	Object Expr
	Args   []Expr
	getter *reflectx.Method
}

func (*IndexExpr) Kind() Kind { return KindIndex }

// Index builds object[args...].
func Index(object Expr, args ...Expr) *IndexExpr {
	e := &IndexExpr{Object: object, Args: args}
	if e.err = operandErr(append([]Expr{object}, args...)...); e.err != nil {
		return e
	}
	t := object.Type()
	nt := t
	for nt.Kind() == reflect.Pointer {
		nt = nt.Elem()
	}
	if len(args) == 1 {
		switch nt.Kind() {
		case reflect.Slice, reflect.Array:
			if !isIntegerType(args[0].Type()) {
				e.err = fmt.Errorf("%w: index of type %s", ErrMalformed, args[0].Type())
				return e
			}
			e.typ = nt.Elem()
			return e
		case reflect.String:
			if !isIntegerType(args[0].Type()) {
				e.err = fmt.Errorf("%w: index of type %s", ErrMalformed, args[0].Type())
				return e
			}
			e.typ = reflect.TypeFor[byte]()
			return e
		case reflect.Map:
			if !args[0].Type().AssignableTo(nt.Key()) && args[0].Type().Kind() != reflect.Interface {
				e.err = fmt.Errorf("%w: key of type %s for %s", ErrMalformed, args[0].Type(), nt)
				return e
			}
			e.typ = nt.Elem()
			return e
		}
	}
	m, err := reflectx.LookupMethod(t, "At")
	if err != nil {
		e.err = fmt.Errorf("%w: %s is not indexable", ErrUnsupported, t)
		return e
	}
	if m.Type.NumIn() != len(args) {
		e.err = fmt.Errorf("%w: %s.At takes %d indices, got %d", ErrMalformed, t, m.Type.NumIn(), len(args))
		return e
	}
	e.getter, e.typ = m, reflectx.ResultType(m.Type)
	return e
}

// Getter returns the At method, or nil for native indexing.
func (e *IndexExpr) Getter() *reflectx.Method { return e.getter }

func (e *IndexExpr) String() string {
	return fmt.Sprintf("%s[%s]", e.Object, joinExprs(e.Args))
}

// InvokeExpr calls a func-valued expression or an inline lambda.
type InvokeExpr struct {
	base
	Target Expr
	Args   []Expr
}

func (*InvokeExpr) Kind() Kind { return KindInvoke }

// Invoke builds target(args...).
func Invoke(target Expr, args ...Expr) *InvokeExpr {
	e := &InvokeExpr{Target: target, Args: args}
	if e.err = operandErr(append([]Expr{target}, args...)...); e.err != nil {
		return e
	}
	if l, ok := target.(*LambdaExpr); ok {
		if len(l.Params) != len(args) {
			e.err = fmt.Errorf("%w: lambda takes %d, got %d", ErrArity, len(l.Params), len(args))
			return e
		}
		e.typ = l.Result()
		return e
	}
	t := target.Type()
	if t.Kind() != reflect.Func {
		e.err = fmt.Errorf("%w: invoking non-func %s", ErrUnsupported, t)
		return e
	}
	if !t.IsVariadic() && t.NumIn() != len(args) {
		e.err = fmt.Errorf("%w: %s takes %d, got %d", ErrArity, t, t.NumIn(), len(args))
		return e
	}
	if t.NumOut() == 0 {
		e.err = fmt.Errorf("%w: invoking %s yields no value", ErrMalformed, t)
		return e
	}
	e.typ = t.Out(0)
	return e
}

func (e *InvokeExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Target, joinExprs(e.Args))
}

// MemberExpr reads a field or calls a getter.
type MemberExpr struct {
	base
	Object Expr
	Name   string
	member *reflectx.Member
}

func (*MemberExpr) Kind() Kind { return KindMember }

// Member builds object.name.
func Member(object Expr, name string) *MemberExpr {
	e := &MemberExpr{Object: object, Name: name}
	if e.err = operandErr(object); e.err != nil {
		return e
	}
	m, err := reflectx.LookupMember(object.Type(), name)
	if err != nil {
		e.err = fmt.Errorf("%w: %w", ErrMalformed, err)
		return e
	}
	e.member, e.typ = m, m.Type
	return e
}

// Resolved returns the field or getter behind the expression.
func (e *MemberExpr) Resolved() *reflectx.Member { return e.member }

func (e *MemberExpr) String() string { return fmt.Sprintf("%s.%s", e.Object, e.Name) }

// Binding assigns Value to the member Name of a freshly constructed instance.
type Binding struct {
	Name   string
	Value  Expr
	setter *reflectx.Setter
}

// Assign builds a member-init binding.
func Assign(name string, value Expr) Binding {
	return Binding{Name: name, Value: value}
}

// Setter returns the resolved setter.
func (b Binding) Setter() *reflectx.Setter { return b.setter }

// MemberInitExpr constructs an instance then assigns members on it.
type MemberInitExpr struct {
	base
	New      *NewExpr
	Bindings []Binding
}

func (*MemberInitExpr) Kind() Kind { return KindMemberInit }

// MemberInit builds New{bindings...}. Field bindings need a pointer type.
func MemberInit(n *NewExpr, bindings ...Binding) *MemberInitExpr {
	e := &MemberInitExpr{New: n, Bindings: slices.Clone(bindings)}
	if n == nil {
		e.err = fmt.Errorf("%w: member-init without constructor", ErrMalformed)
		return e
	}
	if e.err = n.Err(); e.err != nil {
		return e
	}
	e.typ = n.Type()
	for i, b := range e.Bindings {
		if err := operandErr(b.Value); err != nil {
			e.err = err
			return e
		}
		s, err := reflectx.LookupSetter(e.typ, b.Name)
		if err != nil {
			e.err = fmt.Errorf("%w: %w", ErrMalformed, err)
			return e
		}
		if !assignable(b.Value.Type(), s.Type) {
			e.err = fmt.Errorf("%w: assigning %s to %s.%s of type %s", ErrMalformed, b.Value.Type(), e.typ, b.Name, s.Type)
			return e
		}
		e.Bindings[i].setter = s
	}
	return e
}

func (e *MemberInitExpr) String() string {
	parts := make([]string, len(e.Bindings))
	for i, b := range e.Bindings {
		parts[i] = fmt.Sprintf("%s: %s", b.Name, b.Value)
	}
	return fmt.Sprintf("%s{%s}", e.New, strings.Join(parts, ", "))
}

// CallExpr invokes a method on Object, or a package-level Func.
type CallExpr struct {
	base
	Object Expr
	Method *reflectx.Method
	Func   *Func
	Args   []Expr
}

func (*CallExpr) Kind() Kind { return KindCall }

// Call builds object.method(args...).
func Call(object Expr, method string, args ...Expr) *CallExpr {
	e := &CallExpr{Object: object, Args: args}
	if e.err = operandErr(append([]Expr{object}, args...)...); e.err != nil {
		return e
	}
	m, err := reflectx.LookupMethod(object.Type(), method)
	if err != nil {
		e.err = fmt.Errorf("%w: %w", ErrMalformed, err)
		return e
	}
	e.Method = m
	e.typ, e.err = callResult(m.Type, args)
	return e
}

// CallFunc builds fn(args...).
func CallFunc(fn *Func, args ...Expr) *CallExpr {
	e := &CallExpr{Func: fn, Args: args}
	if fn == nil {
		e.err = fmt.Errorf("%w: nil func", ErrMalformed)
		return e
	}
	if e.err = fn.Err(); e.err != nil {
		return e
	}
	if e.err = operandErr(args...); e.err != nil {
		return e
	}
	e.typ, e.err = callResult(fn.Signature(), args)
	return e
}

// IsStatic reports whether the call targets a package-level func.
func (e *CallExpr) IsStatic() bool { return e.Func != nil }

// Name returns the called method or func name.
func (e *CallExpr) Name() string {
	if e.Func != nil {
		return e.Func.Name()
	}
	if e.Method != nil {
		return e.Method.Name
	}
	return "<invalid>"
}

func callResult(sig reflect.Type, args []Expr) (reflect.Type, error) {
	n := sig.NumIn()
	if sig.IsVariadic() {
		if len(args) < n-1 {
			return nil, fmt.Errorf("%w: %s takes at least %d, got %d", ErrArity, sig, n-1, len(args))
		}
	} else if len(args) != n {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, sig, n, len(args))
	}
	for i, a := range args {
		var pt reflect.Type
		if sig.IsVariadic() && i >= n-1 {
			pt = sig.In(n - 1).Elem()
		} else {
			pt = sig.In(i)
		}
		if !assignable(a.Type(), pt) {
			return nil, fmt.Errorf("%w: argument %d of type %s, want %s", ErrMalformed, i, a.Type(), pt)
		}
	}
	if sig.NumOut() == 0 {
		return nil, fmt.Errorf("%w: %s yields no value", ErrMalformed, sig)
	}
	return sig.Out(0), nil
}

func (e *CallExpr) String() string {
	if e.Object == nil {
		return fmt.Sprintf("%s(%s)", e.Name(), joinExprs(e.Args))
	}
	return fmt.Sprintf("%s.%s(%s)", e.Object, e.Name(), joinExprs(e.Args))
}

// NewExpr constructs a fresh instance.
type NewExpr struct {
	base
	Ctor *Ctor
	Args []Expr
}

func (*NewExpr) Kind() Kind { return KindNew }

// New builds ctor(args...).
func New(ctor *Ctor, args ...Expr) *NewExpr {
	e := &NewExpr{Ctor: ctor, Args: args}
	if ctor == nil {
		e.err = fmt.Errorf("%w: nil constructor", ErrMalformed)
		return e
	}
	if e.err = ctor.Err(); e.err != nil {
		return e
	}
	if e.err = operandErr(args...); e.err != nil {
		return e
	}
	if len(args) != len(ctor.Params()) {
		e.err = fmt.Errorf("%w: constructor of %s takes %d, got %d", ErrArity, ctor.Type(), len(ctor.Params()), len(args))
		return e
	}
	for i, a := range args {
		if !assignable(a.Type(), ctor.Params()[i]) {
			e.err = fmt.Errorf("%w: constructor argument %d of type %s, want %s", ErrMalformed, i, a.Type(), ctor.Params()[i])
			return e
		}
	}
	e.typ = ctor.Type()
	return e
}

// ArgTypes returns the static argument types, which select disposal rules.
func (e *NewExpr) ArgTypes() []reflect.Type {
	out := make([]reflect.Type, len(e.Args))
	for i, a := range e.Args {
		out[i] = a.Type()
	}
	return out
}

func (e *NewExpr) String() string {
	return fmt.Sprintf("new %s(%s)", e.Ctor, joinExprs(e.Args))
}

// NewArrayExpr builds a slice from element expressions.
type NewArrayExpr struct {
	base
	Elem  reflect.Type
	Elems []Expr
}

func (*NewArrayExpr) Kind() Kind { return KindNewArray }

// NewArray builds []elem{elems...}.
func NewArray(elem reflect.Type, elems ...Expr) *NewArrayExpr {
	e := &NewArrayExpr{Elem: elem, Elems: elems}
	if elem == nil {
		e.err = fmt.Errorf("%w: array of untyped elements", ErrMalformed)
		return e
	}
	if e.err = operandErr(elems...); e.err != nil {
		return e
	}
	for i, x := range elems {
		if !assignable(x.Type(), elem) {
			e.err = fmt.Errorf("%w: element %d of type %s, want %s", ErrMalformed, i, x.Type(), elem)
			return e
		}
	}
	e.typ = reflect.SliceOf(elem)
	return e
}

func (e *NewArrayExpr) String() string {
	return fmt.Sprintf("[]%s{%s}", e.Elem, joinExprs(e.Elems))
}

// TypeIsExpr tests the dynamic type of its operand.
type TypeIsExpr struct {
	base
	Operand Expr
	Target  reflect.Type
}

func (*TypeIsExpr) Kind() Kind { return KindTypeIs }

// TypeIs reports whether operand holds a non-nil value of type target.
func TypeIs(operand Expr, target reflect.Type) *TypeIsExpr {
	e := &TypeIsExpr{base: base{typ: boolType}, Operand: operand, Target: target}
	if e.err = operandErr(operand); e.err == nil && target == nil {
		e.err = fmt.Errorf("%w: type test against untyped target", ErrMalformed)
	}
	return e
}

func (e *TypeIsExpr) String() string { return fmt.Sprintf("(%s is %s)", e.Operand, e.Target) }

// UnaryExpr applies a unary operator.
type UnaryExpr struct {
	base
	Op      UnaryOp
	Operand Expr
	// Target is the destination type of conversions.
	Target reflect.Type
	// Method, when set, implements the operator.
	Method *Func
}

func (*UnaryExpr) Kind() Kind { return KindUnary }

// Unary applies op to operand.
func Unary(op UnaryOp, operand Expr) *UnaryExpr {
	return unary(op, operand, nil)
}

// UnaryMethod implements op with fn, which takes the operand.
func UnaryMethod(op UnaryOp, operand Expr, fn *Func) *UnaryExpr {
	e := &UnaryExpr{Op: op, Operand: operand, Method: fn}
	if e.err = operandErr(operand); e.err != nil {
		return e
	}
	switch {
	case fn == nil:
		e.err = fmt.Errorf("%w: nil operator method", ErrMalformed)
	case fn.Err() != nil:
		e.err = fn.Err()
	case fn.Signature().NumIn() != 1:
		e.err = fmt.Errorf("%w: operator method %s must take one operand", ErrMalformed, fn.Name())
	default:
		e.typ = fn.Result()
	}
	return e
}

func Negate(operand Expr) *UnaryExpr     { return unary(OpNegate, operand, nil) }
func Not(operand Expr) *UnaryExpr        { return unary(OpNot, operand, nil) }
func Complement(operand Expr) *UnaryExpr { return unary(OpComplement, operand, nil) }
func Len(operand Expr) *UnaryExpr        { return unary(OpLen, operand, nil) }
func Deref(operand Expr) *UnaryExpr      { return unary(OpDeref, operand, nil) }

// Convert converts operand to t.
func Convert(operand Expr, t reflect.Type) *UnaryExpr { return unary(OpConvert, operand, t) }

// TypeAs yields operand as t, or the zero value of t when it is not one.
func TypeAs(operand Expr, t reflect.Type) *UnaryExpr { return unary(OpTypeAs, operand, t) }

func unary(op UnaryOp, operand Expr, target reflect.Type) *UnaryExpr {
	e := &UnaryExpr{Op: op, Operand: operand, Target: target}
	if e.err = operandErr(operand); e.err == nil {
		e.typ, e.err = ops.UnaryResult(op, operand.Type(), target)
	}
	return e
}

func (e *UnaryExpr) String() string {
	switch {
	case e.Method != nil:
		return fmt.Sprintf("%s(%s)", e.Method.Name(), e.Operand)
	case e.Op == OpLen:
		return fmt.Sprintf("len(%s)", e.Operand)
	case e.Op == OpConvert:
		return fmt.Sprintf("%s(%s)", e.Target, e.Operand)
	case e.Op == OpTypeAs:
		return fmt.Sprintf("%s.(%s)", e.Operand, e.Target)
	}
	return fmt.Sprintf("%s%s", e.Op, e.Operand)
}

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// assignable defers interface-typed operands to a run-time check.
func assignable(from, to reflect.Type) bool {
	return from.AssignableTo(to) || from.Kind() == reflect.Interface
}

func isIntegerType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}
