package livexpr

import (
	"reflect"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/registry"
)

// Catalog names the types and funcs a policy file may refer to. Builtin
// types such as "int" and "string" are always known, and "*T" or "[]T" can
// be written for any known T.
type Catalog struct {
	reg *registry.Registry
}

// Module is implemented by packages that contribute names to a Catalog.
type Module interface {
	Register(c *Catalog)
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{reg: registry.New()}
}

// Use registers every module in order.
func (c *Catalog) Use(modules ...Module) *Catalog {
	for _, m := range modules {
		m.Register(c)
	}
	return c
}

// RegisterType adds t under its Go name and the given aliases. It panics if
// a name is already taken by another type.
func (c *Catalog) RegisterType(t reflect.Type, aliases ...string) *Catalog {
	c.reg.RegisterType(t, aliases...)
	return c
}

// RegisterFunc adds fn under its name. It panics on a duplicate name.
func (c *Catalog) RegisterFunc(fn *expr.Func) *Catalog {
	c.reg.RegisterFunc(fn)
	return c
}

// Type resolves a type name as a policy file would.
func (c *Catalog) Type(name string) (reflect.Type, bool) { return c.reg.Type(name) }
