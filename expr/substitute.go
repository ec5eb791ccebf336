package expr

import (
	"fmt"
	"maps"
)

// Substitute returns e with every parameter in repl replaced by its
// mapping. Subtrees without replaced parameters are shared, not copied.
func Substitute(e Expr, repl map[*ParameterExpr]Expr) Expr {
	if e == nil || len(repl) == 0 {
		return e
	}
	out, _ := subst(e, repl)
	return out
}

// Apply binds every parameter of l to the matching argument as a constant
// and returns the body.
func Apply(l *LambdaExpr, args ...any) (Expr, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil lambda", ErrMalformed)
	}
	if err := l.Err(); err != nil {
		return nil, err
	}
	if len(args) != len(l.Params) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, l, len(l.Params), len(args))
	}
	repl := make(map[*ParameterExpr]Expr, len(args))
	for i, p := range l.Params {
		c := ConstOf(args[i], p.Type())
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("argument %s: %w", p.Name, err)
		}
		repl[p] = c
	}
	body := Substitute(l.Body, repl)
	return body, body.Err()
}

// subst reports whether anything changed so unchanged subtrees keep their
// identity.
func subst(e Expr, repl map[*ParameterExpr]Expr) (Expr, bool) {
	switch e := e.(type) {
	case *ParameterExpr:
		if r, ok := repl[e]; ok {
			return r, true
		}
		return e, false
	case *ConstantExpr:
		return e, false
	case *BinaryExpr:
		l, lc := subst(e.Left, repl)
		r, rc := subst(e.Right, repl)
		if !lc && !rc {
			return e, false
		}
		switch {
		case e.Method != nil:
			return BinaryMethod(e.Op, l, r, e.Method), true
		case e.Lifted:
			return Lifted(e.Op, l, r), true
		}
		return MakeBinary(e.Op, l, r), true
	case *LogicalExpr:
		l, lc := subst(e.Left, repl)
		r, rc := subst(e.Right, repl)
		if !lc && !rc {
			return e, false
		}
		return logical(e.kind, l, r), true
	case *CoalesceExpr:
		l, lc := subst(e.Left, repl)
		r, rc := subst(e.Right, repl)
		if !lc && !rc {
			return e, false
		}
		return CoalesceWith(l, r, e.Conversion), true
	case *ConditionalExpr:
		t, tc := subst(e.Test, repl)
		a, ac := subst(e.IfTrue, repl)
		b, bc := subst(e.IfFalse, repl)
		if !tc && !ac && !bc {
			return e, false
		}
		return Conditional(t, a, b), true
	case *LambdaExpr:
		// Inner parameters shadow outer replacements.
		inner, cloned := repl, false
		for _, p := range e.Params {
			if _, ok := repl[p]; ok {
				if !cloned {
					inner, cloned = maps.Clone(repl), true
				}
				delete(inner, p)
			}
		}
		body, changed := subst(e.Body, inner)
		if !changed {
			return e, false
		}
		return Lambda(body, e.Params...), true
	case *IndexExpr:
		obj, oc := subst(e.Object, repl)
		args, ac := substList(e.Args, repl)
		if !oc && !ac {
			return e, false
		}
		return Index(obj, args...), true
	case *InvokeExpr:
		target, tc := subst(e.Target, repl)
		args, ac := substList(e.Args, repl)
		if !tc && !ac {
			return e, false
		}
		return Invoke(target, args...), true
	case *MemberExpr:
		obj, oc := subst(e.Object, repl)
		if !oc {
			return e, false
		}
		return Member(obj, e.Name), true
	case *MemberInitExpr:
		if e.New == nil {
			return e, false
		}
		n, nc := subst(e.New, repl)
		changed := nc
		bindings := make([]Binding, len(e.Bindings))
		for i, b := range e.Bindings {
			v, vc := subst(b.Value, repl)
			changed = changed || vc
			bindings[i] = Assign(b.Name, v)
		}
		if !changed {
			return e, false
		}
		return MemberInit(n.(*NewExpr), bindings...), true
	case *CallExpr:
		args, ac := substList(e.Args, repl)
		if e.Func != nil {
			if !ac {
				return e, false
			}
			return CallFunc(e.Func, args...), true
		}
		obj, oc := subst(e.Object, repl)
		if !oc && !ac {
			return e, false
		}
		return Call(obj, e.Name(), args...), true
	case *NewExpr:
		args, ac := substList(e.Args, repl)
		if !ac {
			return e, false
		}
		return New(e.Ctor, args...), true
	case *NewArrayExpr:
		elems, ec := substList(e.Elems, repl)
		if !ec {
			return e, false
		}
		return NewArray(e.Elem, elems...), true
	case *TypeIsExpr:
		op, c := subst(e.Operand, repl)
		if !c {
			return e, false
		}
		return TypeIs(op, e.Target), true
	case *UnaryExpr:
		op, c := subst(e.Operand, repl)
		if !c {
			return e, false
		}
		if e.Method != nil {
			return UnaryMethod(e.Op, op, e.Method), true
		}
		return unary(e.Op, op, e.Target), true
	}
	return e, false
}

func substList(es []Expr, repl map[*ParameterExpr]Expr) ([]Expr, bool) {
	out := make([]Expr, len(es))
	changed := false
	for i, e := range es {
		var c bool
		out[i], c = subst(e, repl)
		changed = changed || c
	}
	return out, changed
}
