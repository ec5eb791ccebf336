package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-multierror"

	"github.com/specialistvlad/livexpr/expr"
	"github.com/specialistvlad/livexpr/internal/config"
	"github.com/specialistvlad/livexpr/internal/ctxlog"
)

var (
	// ErrUnknownType is returned for a type name nothing registered.
	ErrUnknownType = errors.New("unknown type")
	// ErrUnknownFunc is returned for a func name nothing registered.
	ErrUnknownFunc = errors.New("unknown func")
)

// Policy is a model whose names have all been resolved.
type Policy struct {
	Defaults    config.Defaults
	Constructed []Constructed
	Methods     []Member
	Funcs       []*expr.Func
	Generics    []string
	Properties  []Member
	Ignored     []Member
}

// Constructed identifies a constructor by result type and parameter types.
type Constructed struct {
	Type reflect.Type
	Args []reflect.Type
}

// Member identifies a method or property.
type Member struct {
	Owner reflect.Type
	Name  string
}

// Resolve turns every name in m into the registered type or func. All
// unresolvable names are reported together.
func (r *Registry) Resolve(ctx context.Context, m *config.Model) (*Policy, error) {
	logger := ctxlog.FromContext(ctx)
	var result *multierror.Error
	p := &Policy{Defaults: m.Defaults}

	typeOf := func(name, source string) reflect.Type {
		t, ok := r.Type(name)
		if !ok {
			result = multierror.Append(result, fmt.Errorf("%s: %w %q", source, ErrUnknownType, name))
		}
		return t
	}
	members := func(rules []*config.MemberRule) []Member {
		out := make([]Member, 0, len(rules))
		for _, rule := range rules {
			if t := typeOf(rule.Owner, rule.Source); t != nil {
				out = append(out, Member{Owner: t, Name: rule.Name})
			}
		}
		return out
	}

	for _, rule := range m.Constructed {
		t := typeOf(rule.Type, rule.Source)
		args := make([]reflect.Type, 0, len(rule.Args))
		ok := t != nil
		for _, a := range rule.Args {
			at := typeOf(a, rule.Source)
			ok = ok && at != nil
			args = append(args, at)
		}
		if ok {
			p.Constructed = append(p.Constructed, Constructed{Type: t, Args: args})
		}
	}
	p.Methods = members(m.Methods)
	p.Properties = members(m.Properties)
	p.Ignored = members(m.Ignored)
	for _, rule := range m.Funcs {
		fn, ok := r.Func(rule.Name)
		if !ok {
			result = multierror.Append(result, fmt.Errorf("%s: %w %q", rule.Source, ErrUnknownFunc, rule.Name))
			continue
		}
		p.Funcs = append(p.Funcs, fn)
	}
	for _, rule := range m.Generics {
		p.Generics = append(p.Generics, rule.Name)
	}

	if err := result.ErrorOrNil(); err != nil {
		logger.Debug("Policy resolution failed.", "errors", len(result.Errors))
		return nil, err
	}
	return p, nil
}
