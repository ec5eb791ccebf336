// Package livexpr keeps the value of an expression live.
//
// # Overview
//
// A caller observes a lambda (see package expr) together with concrete
// arguments and receives a Handle whose Evaluation, a (Fault, Result) pair,
// is recomputed whenever a value the expression currently depends on
// announces a change through the capabilities of package notify.
//
// # Architecture
//
//   - Every distinct sub-expression is backed by one shared evaluation node.
//     Nodes live in per-kind partitions keyed by the canonical expression key,
//     and exist exactly while something holds a counted reference to them.
//   - A node subscribes to the nodes it reads and to the change notifications
//     of the runtime values it reads. A change re-evaluates the node on the
//     notifying goroutine and, only if the Evaluation actually changed,
//     notifies its own subscribers. Propagation is synchronous and unbatched.
//   - Nodes start deferred and are evaluated on first read. Short-circuiting
//     shapes never read, and therefore never evaluate, branches they do not
//     need.
//   - Evaluation failures are data: they become the Fault half of the
//     Evaluation and propagate to parents. Only construction and
//     initialisation failures are returned as errors from Observe.
//   - Values produced by constructors and calls can be released (io.Closer or
//     dispose.AsyncCloser) when superseded or discarded, as decided by the
//     disposal policy in Options.
//
// # Concurrency
//
// All exported methods are safe for concurrent use. Evaluations of one node
// are serialised by that node's lock; there is no ordering across nodes.
package livexpr

import (
	"errors"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/fastcmp"
	"github.com/specialistvlad/livexpr/internal/reflectx"
)

var (
	// ErrNilExpression is returned when observing a nil expression.
	ErrNilExpression = errors.New("nil expression")
	// ErrArity is returned when the argument count does not match the lambda.
	ErrArity = expr.ErrArity
	// ErrMalformed is returned for expressions built from inconsistent parts.
	ErrMalformed = expr.ErrMalformed
	// ErrUnsupported is returned for shapes or operators that cannot be
	// observed.
	ErrUnsupported = expr.ErrUnsupported
	// ErrNilReference is the fault of reading through a nil value.
	ErrNilReference = reflectx.ErrNilReference
	// ErrKeyNotFound is the fault of indexing a map by a missing key.
	ErrKeyNotFound = reflectx.ErrKeyNotFound
	// ErrIndexOutOfRange is the fault of indexing past the end.
	ErrIndexOutOfRange = reflectx.ErrIndexOutOfRange
	// ErrNotOrdered is the fault of ordering values without a default order.
	ErrNotOrdered = fastcmp.ErrNotOrdered
	// ErrInvalidArgument is returned by policy registration given nil or
	// malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
)
