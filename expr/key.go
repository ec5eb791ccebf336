package expr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	typeIDs    sync.Map // reflect.Type -> uint64
	nextTypeID atomic.Uint64
)

func typeID(t reflect.Type) uint64 {
	if t == nil {
		return 0
	}
	if id, ok := typeIDs.Load(t); ok {
		return id.(uint64)
	}
	id, _ := typeIDs.LoadOrStore(t, nextTypeID.Add(1))
	return id.(uint64)
}

type keyWriter struct {
	b      strings.Builder
	params map[*ParameterExpr]int
}

func (w *keyWriter) str(s string) { w.b.WriteString(s) }

func (w *keyWriter) typ(t reflect.Type) {
	w.b.WriteByte('t')
	w.b.WriteString(strconv.FormatUint(typeID(t), 10))
}

func (w *keyWriter) expr(e Expr) {
	if e == nil {
		w.str("<nil>")
		return
	}
	e.writeKey(w)
}

func (w *keyWriter) list(es []Expr) {
	w.b.WriteByte('[')
	for i, e := range es {
		if i > 0 {
			w.b.WriteByte(',')
		}
		w.expr(e)
	}
	w.b.WriteByte(']')
}

func (w *keyWriter) id(prefix string, id uint64) {
	w.str(prefix)
	w.str(strconv.FormatUint(id, 10))
}

// Key returns the canonical structural key of e. Equal keys mean equivalent
// expressions.
func Key(e Expr) string {
	var w keyWriter
	w.expr(e)
	return w.b.String()
}

func (e *BinaryExpr) writeKey(w *keyWriter) {
	w.str("bin(")
	w.str(e.Op.String())
	if e.Lifted {
		w.str("?")
	}
	if e.Method != nil {
		w.id("#f", e.Method.ID())
	}
	w.str(",")
	w.expr(e.Left)
	w.str(",")
	w.expr(e.Right)
	w.str(")")
}

func (e *LogicalExpr) writeKey(w *keyWriter) {
	if e.kind == KindAndAlso {
		w.str("and(")
	} else {
		w.str("or(")
	}
	w.expr(e.Left)
	w.str(",")
	w.expr(e.Right)
	w.str(")")
}

func (e *CoalesceExpr) writeKey(w *keyWriter) {
	w.str("coalesce(")
	if e.Conversion != nil {
		w.id("#f", e.Conversion.ID())
		w.str(",")
	}
	w.expr(e.Left)
	w.str(",")
	w.expr(e.Right)
	w.str(")")
}

func (e *ConditionalExpr) writeKey(w *keyWriter) {
	w.str("cond(")
	w.expr(e.Test)
	w.str(",")
	w.expr(e.IfTrue)
	w.str(",")
	w.expr(e.IfFalse)
	w.str(")")
}

var uniqueConstants atomic.Uint64

func (e *ConstantExpr) writeKey(w *keyWriter) {
	w.str("c(")
	w.typ(e.typ)
	w.str(":")
	writeValueKey(w, e.Value)
	w.str(")")
}

func writeValueKey(w *keyWriter, v any) {
	if v == nil {
		w.str("nil")
		return
	}
	if x, ok := v.(Expr); ok {
		// Nested expressions get a fresh parameter scope.
		w.str("e{")
		w.str(Key(x))
		w.str("}")
		return
	}
	rv := reflect.ValueOf(v)
	w.typ(rv.Type())
	w.str("=")
	switch rv.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		w.str(fmt.Sprintf("%v", v))
	case reflect.String:
		w.str(strconv.Quote(rv.String()))
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		w.str("@" + strconv.FormatUint(uint64(rv.Pointer()), 16))
	case reflect.Slice:
		w.str(fmt.Sprintf("@%x:%d:%d", rv.Pointer(), rv.Len(), rv.Cap()))
	case reflect.Struct, reflect.Array:
		if rv.Comparable() {
			w.str(fmt.Sprintf("%#v", v))
			return
		}
		w.id("u", uniqueConstants.Add(1))
	default:
		w.id("u", uniqueConstants.Add(1))
	}
}

func (e *ParameterExpr) writeKey(w *keyWriter) {
	if i, ok := w.params[e]; ok {
		w.str("$" + strconv.Itoa(i))
		return
	}
	w.str(fmt.Sprintf("param(%s:%p)", e.Name, e))
}

func (e *LambdaExpr) writeKey(w *keyWriter) {
	if w.params == nil {
		w.params = make(map[*ParameterExpr]int)
	}
	w.str("fn(")
	for _, p := range e.Params {
		if _, seen := w.params[p]; !seen {
			w.params[p] = len(w.params)
		}
		w.expr(p)
		w.typ(p.typ)
		w.str(",")
	}
	w.str("=>")
	w.expr(e.Body)
	w.str(")")
}

func (e *IndexExpr) writeKey(w *keyWriter) {
	w.str("idx(")
	w.expr(e.Object)
	w.list(e.Args)
	w.str(")")
}

func (e *InvokeExpr) writeKey(w *keyWriter) {
	w.str("inv(")
	w.expr(e.Target)
	w.list(e.Args)
	w.str(")")
}

func (e *MemberExpr) writeKey(w *keyWriter) {
	w.str("mem(")
	w.expr(e.Object)
	w.str("." + e.Name + ")")
}

func (e *MemberInitExpr) writeKey(w *keyWriter) {
	w.str("init(")
	w.expr(e.New)
	for _, b := range e.Bindings {
		w.str("," + b.Name + "=")
		w.expr(b.Value)
	}
	w.str(")")
}

func (e *CallExpr) writeKey(w *keyWriter) {
	w.str("call(")
	if e.Func != nil {
		w.id("#f", e.Func.ID())
	} else {
		w.expr(e.Object)
		w.str("." + e.Name())
	}
	w.list(e.Args)
	w.str(")")
}

func (e *NewExpr) writeKey(w *keyWriter) {
	w.str("new(")
	switch {
	case e.Ctor == nil:
	case e.Ctor.fn.IsValid():
		w.id("#c", e.Ctor.id)
	default:
		w.str("zero")
		w.typ(e.Ctor.typ)
	}
	w.list(e.Args)
	w.str(")")
}

func (e *NewArrayExpr) writeKey(w *keyWriter) {
	w.str("arr(")
	w.typ(e.Elem)
	w.list(e.Elems)
	w.str(")")
}

func (e *TypeIsExpr) writeKey(w *keyWriter) {
	w.str("is(")
	w.expr(e.Operand)
	w.str(",")
	w.typ(e.Target)
	w.str(")")
}

func (e *UnaryExpr) writeKey(w *keyWriter) {
	w.str("un(" + e.Op.String())
	if e.Method != nil {
		w.id("#f", e.Method.ID())
	}
	if e.Target != nil {
		w.str(",")
		w.typ(e.Target)
	}
	w.str(",")
	w.expr(e.Operand)
	w.str(")")
}
