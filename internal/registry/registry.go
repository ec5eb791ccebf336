package registry

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/specialistvlad/livexpr/expr"
)

// Registry holds the named types and funcs of a single application.
type Registry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
	funcs map[string]*expr.Func
}

var builtins = map[string]reflect.Type{
	"any":         reflect.TypeFor[any](),
	"bool":        reflect.TypeFor[bool](),
	"byte":        reflect.TypeFor[byte](),
	"error":       reflect.TypeFor[error](),
	"float32":     reflect.TypeFor[float32](),
	"float64":     reflect.TypeFor[float64](),
	"int":         reflect.TypeFor[int](),
	"int8":        reflect.TypeFor[int8](),
	"int16":       reflect.TypeFor[int16](),
	"int32":       reflect.TypeFor[int32](),
	"int64":       reflect.TypeFor[int64](),
	"rune":        reflect.TypeFor[rune](),
	"string":      reflect.TypeFor[string](),
	"uint":        reflect.TypeFor[uint](),
	"uint8":       reflect.TypeFor[uint8](),
	"uint16":      reflect.TypeFor[uint16](),
	"uint32":      reflect.TypeFor[uint32](),
	"uint64":      reflect.TypeFor[uint64](),
	"interface{}": reflect.TypeFor[any](),
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		types: make(map[string]reflect.Type),
		funcs: make(map[string]*expr.Func),
	}
}

// RegisterType makes t available under its Go name (such as "shop.Cart")
// and, when given, under each alias. Pointer and slice forms are derived by
// prefixing "*" or "[]" and need no registration.
func (r *Registry) RegisterType(t reflect.Type, aliases ...string) {
	if t == nil {
		panic("registry: nil type")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := append([]string{t.String()}, aliases...)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if prev, exists := r.types[name]; exists && prev != t {
			panic(fmt.Sprintf("type with name '%s' already registered", name))
		}
		slog.Debug("Registering type.", "name", name, "type", t.String())
		r.types[name] = t
	}
}

// RegisterFunc makes fn available under its name.
func (r *Registry) RegisterFunc(fn *expr.Func) {
	if fn == nil {
		panic("registry: nil func")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[fn.Name()]; exists {
		panic(fmt.Sprintf("func with name '%s' already registered", fn.Name()))
	}
	slog.Debug("Registering func.", "name", fn.Name())
	r.funcs[fn.Name()] = fn
}

// Type resolves a type name. Leading "*" and "[]" are applied to the type
// that follows them.
func (r *Registry) Type(name string) (reflect.Type, bool) {
	name = strings.TrimSpace(name)
	switch {
	case strings.HasPrefix(name, "*"):
		t, ok := r.Type(name[1:])
		if !ok {
			return nil, false
		}
		return reflect.PointerTo(t), true
	case strings.HasPrefix(name, "[]"):
		t, ok := r.Type(name[2:])
		if !ok {
			return nil, false
		}
		return reflect.SliceOf(t), true
	}
	if t, ok := builtins[name]; ok {
		return t, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Func resolves a func name.
func (r *Registry) Func(name string) (*expr.Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}
