package livexpr

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/reflectx"
)

// Options configures an Observer. Create it with NewOptions, adjust it, and
// pass it to New, which takes a snapshot: later changes do not affect
// existing observers.
type Options struct {
	// DisposeConstructedObjects releases every superseded constructed value.
	DisposeConstructedObjects bool
	// DisposeStaticCallResults releases every superseded result of a
	// package-level func call.
	DisposeStaticCallResults bool
	// ConstantCollectionChanges re-evaluates constants holding a
	// notify.CollectionNotifier when it changes structurally.
	ConstantCollectionChanges bool
	// ConstantMapChanges is ConstantCollectionChanges for notify.MapNotifier.
	ConstantMapChanges bool
	// MemberCollectionChanges re-evaluates member reads whose value is a
	// notify.CollectionNotifier when it changes structurally.
	MemberCollectionChanges bool
	// MemberMapChanges is MemberCollectionChanges for notify.MapNotifier.
	MemberMapChanges bool
	// PreferAsyncDisposal picks CloseAsync over Close when a value has both.
	PreferAsyncDisposal bool
	// BlockOnAsyncDisposal waits for asynchronous releases to finish.
	BlockOnAsyncDisposal bool

	// Optimizer, when set, rewrites every observed lambda body before its
	// arguments are bound.
	Optimizer func(expr.Expr) expr.Expr
	// Logger receives warnings and, with TraceEvents, debug traces.
	Logger *slog.Logger
	// TraceEvents logs every node evaluation and change notification.
	TraceEvents bool
	// MeterProvider receives node metrics. Nil means the global provider.
	MeterProvider metric.MeterProvider

	mu          sync.RWMutex
	constructed map[string]struct{}
	methods     map[memberKey]struct{}
	funcs       map[*expr.Func]struct{}
	generics    map[string]struct{}
	ignored     map[memberKey]struct{}
}

type memberKey struct {
	owner reflect.Type
	name  string
}

func keyOf(owner reflect.Type, name string) memberKey {
	for owner != nil && owner.Kind() == reflect.Pointer {
		owner = owner.Elem()
	}
	return memberKey{owner, name}
}

func ctorSignature(t reflect.Type, args []reflect.Type) string {
	var b strings.Builder
	b.WriteString(t.PkgPath() + "." + t.String())
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.PkgPath() + "." + a.String())
	}
	b.WriteByte(')')
	return b.String()
}

// NewOptions returns options with the default toggles.
func NewOptions() *Options {
	return &Options{
		DisposeConstructedObjects: true,
		ConstantCollectionChanges: true,
		ConstantMapChanges:        true,
		MemberCollectionChanges:   true,
		MemberMapChanges:          true,
		PreferAsyncDisposal:       true,
	}
}

func (o *Options) init() {
	if o.constructed == nil {
		o.constructed = make(map[string]struct{})
		o.methods = make(map[memberKey]struct{})
		o.funcs = make(map[*expr.Func]struct{})
		o.generics = make(map[string]struct{})
		o.ignored = make(map[memberKey]struct{})
	}
}

func (o *Options) update(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.init()
	fn()
}

// AddConstructedTypeDisposal releases superseded instances of t built by a
// constructor taking exactly args.
func (o *Options) AddConstructedTypeDisposal(t reflect.Type, args ...reflect.Type) error {
	if err := validTypes(t, args); err != nil {
		return err
	}
	o.update(func() { o.constructed[ctorSignature(t, args)] = struct{}{} })
	return nil
}

// RemoveConstructedTypeDisposal undoes AddConstructedTypeDisposal.
func (o *Options) RemoveConstructedTypeDisposal(t reflect.Type, args ...reflect.Type) error {
	if err := validTypes(t, args); err != nil {
		return err
	}
	o.update(func() { delete(o.constructed, ctorSignature(t, args)) })
	return nil
}

// IsConstructedTypeDisposed reports whether a rule exists for t and args.
func (o *Options) IsConstructedTypeDisposed(t reflect.Type, args ...reflect.Type) bool {
	if validTypes(t, args) != nil {
		return false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.constructed[ctorSignature(t, args)]
	return ok
}

func validTypes(t reflect.Type, args []reflect.Type) error {
	if t == nil {
		return fmt.Errorf("%w: nil constructed type", ErrInvalidArgument)
	}
	for i, a := range args {
		if a == nil {
			return fmt.Errorf("%w: nil constructor argument type %d", ErrInvalidArgument, i)
		}
	}
	return nil
}

// AddMethodDisposal releases superseded results of recv.name calls.
func (o *Options) AddMethodDisposal(recv reflect.Type, name string) error {
	if err := validMethod(recv, name); err != nil {
		return err
	}
	o.update(func() { o.methods[keyOf(recv, name)] = struct{}{} })
	return nil
}

// RemoveMethodDisposal undoes AddMethodDisposal.
func (o *Options) RemoveMethodDisposal(recv reflect.Type, name string) error {
	if err := validMethod(recv, name); err != nil {
		return err
	}
	o.update(func() { delete(o.methods, keyOf(recv, name)) })
	return nil
}

func validMethod(recv reflect.Type, name string) error {
	if recv == nil || name == "" {
		return fmt.Errorf("%w: method needs a receiver type and a name", ErrInvalidArgument)
	}
	if _, err := reflectx.LookupMethod(recv, name); err != nil {
		if _, perr := reflectx.LookupMethod(reflect.PointerTo(recv), name); perr != nil {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	return nil
}

// AddFuncDisposal releases superseded results of fn.
func (o *Options) AddFuncDisposal(fn *expr.Func) error {
	if fn == nil {
		return fmt.Errorf("%w: nil func", ErrInvalidArgument)
	}
	o.update(func() { o.funcs[fn] = struct{}{} })
	return nil
}

// RemoveFuncDisposal undoes AddFuncDisposal.
func (o *Options) RemoveFuncDisposal(fn *expr.Func) error {
	if fn == nil {
		return fmt.Errorf("%w: nil func", ErrInvalidArgument)
	}
	o.update(func() { delete(o.funcs, fn) })
	return nil
}

// AddGenericDefinitionDisposal releases superseded results of every func
// declared as an instantiation of the named generic definition.
func (o *Options) AddGenericDefinitionDisposal(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty generic definition", ErrInvalidArgument)
	}
	o.update(func() { o.generics[name] = struct{}{} })
	return nil
}

// RemoveGenericDefinitionDisposal undoes AddGenericDefinitionDisposal.
func (o *Options) RemoveGenericDefinitionDisposal(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty generic definition", ErrInvalidArgument)
	}
	o.update(func() { delete(o.generics, name) })
	return nil
}

// AddPropertyDisposal releases superseded values read through the getter
// owner.name. It is a method rule for the getter.
func (o *Options) AddPropertyDisposal(owner reflect.Type, name string) error {
	if err := validProperty(owner, name); err != nil {
		return err
	}
	o.update(func() { o.methods[keyOf(owner, name)] = struct{}{} })
	return nil
}

// RemovePropertyDisposal undoes AddPropertyDisposal.
func (o *Options) RemovePropertyDisposal(owner reflect.Type, name string) error {
	if err := validProperty(owner, name); err != nil {
		return err
	}
	o.update(func() { delete(o.methods, keyOf(owner, name)) })
	return nil
}

func validProperty(owner reflect.Type, name string) error {
	if owner == nil || name == "" {
		return fmt.Errorf("%w: property needs an owner type and a name", ErrInvalidArgument)
	}
	m, err := reflectx.LookupMember(owner, name)
	if err != nil {
		m, err = reflectx.LookupMember(reflect.PointerTo(owner), name)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if m.Kind != reflectx.Property {
		return fmt.Errorf("%w: %s.%s is a field, not a property", ErrInvalidArgument, owner, name)
	}
	return nil
}

// IgnorePropertyChanges stops member reads of owner.name from subscribing
// to its change notifications.
func (o *Options) IgnorePropertyChanges(owner reflect.Type, name string) error {
	if owner == nil || name == "" {
		return fmt.Errorf("%w: ignored property needs an owner type and a name", ErrInvalidArgument)
	}
	o.update(func() { o.ignored[keyOf(owner, name)] = struct{}{} })
	return nil
}

// UnignorePropertyChanges undoes IgnorePropertyChanges.
func (o *Options) UnignorePropertyChanges(owner reflect.Type, name string) error {
	if owner == nil || name == "" {
		return fmt.Errorf("%w: ignored property needs an owner type and a name", ErrInvalidArgument)
	}
	o.update(func() { delete(o.ignored, keyOf(owner, name)) })
	return nil
}

// IsPropertyIgnored reports whether change notifications of owner.name are
// ignored.
func (o *Options) IsPropertyIgnored(owner reflect.Type, name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.ignored[keyOf(owner, name)]
	return ok
}

// ShouldDisposeConstructed reports whether superseded instances of t built
// from args are released.
func (o *Options) ShouldDisposeConstructed(t reflect.Type, args []reflect.Type) bool {
	return o.DisposeConstructedObjects || o.IsConstructedTypeDisposed(t, args...)
}

// ShouldDisposeFunc reports whether superseded results of fn are released.
func (o *Options) ShouldDisposeFunc(fn *expr.Func) bool {
	if fn == nil {
		return false
	}
	if o.DisposeStaticCallResults || fn.Owned() {
		return true
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if _, ok := o.funcs[fn]; ok {
		return true
	}
	if g := fn.GenericName(); g != "" {
		_, ok := o.generics[g]
		return ok
	}
	return false
}

// ShouldDisposeMethod reports whether superseded results of recv.name are
// released.
func (o *Options) ShouldDisposeMethod(recv reflect.Type, name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.methods[keyOf(recv, name)]
	return ok
}

// ShouldDisposeProperty reports whether superseded values of the getter
// owner.name are released.
func (o *Options) ShouldDisposeProperty(owner reflect.Type, name string) bool {
	return o.ShouldDisposeMethod(owner, name)
}

// Clone returns an independent copy.
func (o *Options) Clone() *Options {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c := &Options{
		DisposeConstructedObjects: o.DisposeConstructedObjects,
		DisposeStaticCallResults:  o.DisposeStaticCallResults,
		ConstantCollectionChanges: o.ConstantCollectionChanges,
		ConstantMapChanges:        o.ConstantMapChanges,
		MemberCollectionChanges:   o.MemberCollectionChanges,
		MemberMapChanges:          o.MemberMapChanges,
		PreferAsyncDisposal:       o.PreferAsyncDisposal,
		BlockOnAsyncDisposal:      o.BlockOnAsyncDisposal,
		Optimizer:                 o.Optimizer,
		Logger:                    o.Logger,
		TraceEvents:               o.TraceEvents,
		MeterProvider:             o.MeterProvider,
	}
	c.init()
	maps.Copy(c.constructed, o.constructed)
	maps.Copy(c.methods, o.methods)
	maps.Copy(c.funcs, o.funcs)
	maps.Copy(c.generics, o.generics)
	maps.Copy(c.ignored, o.ignored)
	return c
}
