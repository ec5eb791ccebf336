package livexpr

import (
	"fmt"
	"reflect"

	"github.com/specialistvlad/livexpr/internal/fastcmp"
)

// Evaluation is the outcome of evaluating an expression: either a Fault or
// a Result. When Fault is set, Result holds the zero value of the
// expression type.
type Evaluation struct {
	Fault  error
	Result any
}

// Failed reports whether the evaluation carries a fault.
func (e Evaluation) Failed() bool { return e.Fault != nil }

func (e Evaluation) String() string {
	if e.Fault != nil {
		return fmt.Sprintf("fault: %v", e.Fault)
	}
	return fmt.Sprintf("%v", e.Result)
}

func faulted(err error) Evaluation { return Evaluation{Fault: err} }

func succeeded(v any) Evaluation { return Evaluation{Result: v} }

// sameEvaluation compares faults by identity and results with cmp.
func sameEvaluation(cmp fastcmp.Comparer, a, b Evaluation) bool {
	if !sameFault(a.Fault, b.Fault) {
		return false
	}
	return cmp.Equal(a.Result, b.Result)
}

func sameFault(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fastcmp.SameReference(a, b)
}

func zeroOf(t reflect.Type) any {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

// asBool reads a value of any bool kind.
func asBool(v any) (bool, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Bool {
		return false, fmt.Errorf("%w: %T is not a bool", ErrUnsupported, v)
	}
	return rv.Bool(), nil
}
