// Package expr defines the closed set of expression shapes that can be
// observed.
//
// # Overview
//
// An expression is a tree of values implementing Expr. The set of shapes is
// closed: Expr carries an unexported method, so only the types in this
// package satisfy it, and every consumer can switch over them exhaustively.
//
// Builders never panic. A malformed shape (mismatched operand types, an
// unknown member, a wrong argument count) records its error, which every
// enclosing expression inherits through Err. The error surfaces when the
// expression is observed.
//
// # Keys
//
// Key renders the canonical structural key of an expression. Two expressions
// with the same key are interchangeable: they have the same shape, the same
// types and equal constants. Constants of reference kinds compare by
// identity, func-valued and non-comparable constants are never equal to any
// other constant.
package expr

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/specialistvlad/livexpr/internal/ops"
)

var (
	// ErrMalformed is recorded by builders given inconsistent input.
	ErrMalformed = errors.New("malformed expression")
	// ErrUnsupported is returned for operators that are not defined on the
	// operand types, and for shapes that cannot be observed where they appear.
	ErrUnsupported = ops.ErrUnsupported
	// ErrArity is returned when a lambda receives the wrong number of
	// arguments.
	ErrArity = errors.New("wrong number of arguments")
)

// Kind identifies an expression shape.
type Kind int

const (
	KindBinary Kind = iota
	KindAndAlso
	KindOrElse
	KindCoalesce
	KindConditional
	KindConstant
	KindParameter
	KindLambda
	KindIndex
	KindInvoke
	KindMember
	KindMemberInit
	KindCall
	KindNew
	KindNewArray
	KindTypeIs
	KindUnary
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{
	KindBinary, KindAndAlso, KindOrElse, KindCoalesce, KindConditional,
	KindConstant, KindParameter, KindLambda, KindIndex, KindInvoke,
	KindMember, KindMemberInit, KindCall, KindNew, KindNewArray,
	KindTypeIs, KindUnary,
}

var kindNames = [...]string{
	"Binary", "AndAlso", "OrElse", "Coalesce", "Conditional",
	"Constant", "Parameter", "Lambda", "Index", "Invoke",
	"Member", "MemberInit", "Call", "New", "NewArray",
	"TypeIs", "Unary",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Expr is an expression node.
type Expr interface {
	// Kind returns the shape of the expression.
	Kind() Kind
	// Type returns the static type of the value the expression produces.
	Type() reflect.Type
	// String renders the expression in Go-like syntax.
	String() string
	// Err returns the first construction error of the expression or any of
	// its operands.
	Err() error

	writeKey(w *keyWriter)
}

// BinaryOp and UnaryOp are the operator sets understood by Binary and Unary.
type (
	BinaryOp = ops.BinaryOp
	UnaryOp  = ops.UnaryOp
)

const (
	OpAdd    = ops.Add
	OpSub    = ops.Sub
	OpMul    = ops.Mul
	OpDiv    = ops.Div
	OpRem    = ops.Rem
	OpAnd    = ops.And
	OpOr     = ops.Or
	OpXor    = ops.Xor
	OpAndNot = ops.AndNot
	OpShl    = ops.Shl
	OpShr    = ops.Shr
	OpEq     = ops.Eq
	OpNe     = ops.Ne
	OpLt     = ops.Lt
	OpLe     = ops.Le
	OpGt     = ops.Gt
	OpGe     = ops.Ge

	OpNegate     = ops.Negate
	OpPlus       = ops.Plus
	OpNot        = ops.Not
	OpComplement = ops.Complement
	OpConvert    = ops.Convert
	OpTypeAs     = ops.TypeAs
	OpLen        = ops.Len
	OpDeref      = ops.Deref
)

type base struct {
	typ reflect.Type
	err error
}

func (b *base) Type() reflect.Type { return b.typ }

func (b *base) Err() error { return b.err }

// operandErr returns the first nil operand or operand error.
func operandErr(es ...Expr) error {
	for i, e := range es {
		if e == nil {
			return fmt.Errorf("%w: operand %d is nil", ErrMalformed, i)
		}
		if err := e.Err(); err != nil {
			return err
		}
	}
	return nil
}

var boolType = reflect.TypeFor[bool]()

// Children returns the direct operands of e in evaluation order. Lambda
// parameters are not operands.
func Children(e Expr) []Expr {
	switch e := e.(type) {
	case *BinaryExpr:
		return []Expr{e.Left, e.Right}
	case *LogicalExpr:
		return []Expr{e.Left, e.Right}
	case *CoalesceExpr:
		return []Expr{e.Left, e.Right}
	case *ConditionalExpr:
		return []Expr{e.Test, e.IfTrue, e.IfFalse}
	case *LambdaExpr:
		return []Expr{e.Body}
	case *IndexExpr:
		return append([]Expr{e.Object}, e.Args...)
	case *InvokeExpr:
		return append([]Expr{e.Target}, e.Args...)
	case *MemberExpr:
		return []Expr{e.Object}
	case *MemberInitExpr:
		out := []Expr{e.New}
		for _, b := range e.Bindings {
			out = append(out, b.Value)
		}
		return out
	case *CallExpr:
		if e.Object == nil {
			return e.Args
		}
		return append([]Expr{e.Object}, e.Args...)
	case *NewExpr:
		return e.Args
	case *NewArrayExpr:
		return e.Elems
	case *TypeIsExpr:
		return []Expr{e.Operand}
	case *UnaryExpr:
		return []Expr{e.Operand}
	}
	return nil
}
