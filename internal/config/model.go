package config

import (
	"errors"
	"fmt"
)

// ErrUnknownDefault is returned when a defaults entry names no known toggle.
var ErrUnknownDefault = errors.New("unknown default")

// Model is the unified representation of one or more policy files.
type Model struct {
	Defaults    Defaults
	Constructed []*ConstructedRule
	Methods     []*MemberRule
	Funcs       []*NameRule
	Generics    []*NameRule
	Properties  []*MemberRule
	Ignored     []*MemberRule
}

// Defaults holds the toggles a file sets. Nil means "not set here".
type Defaults struct {
	DisposeConstructedObjects *bool
	DisposeStaticCallResults  *bool
	ConstantCollectionChanges *bool
	ConstantMapChanges        *bool
	MemberCollectionChanges   *bool
	MemberMapChanges          *bool
	PreferAsyncDisposal       *bool
	BlockOnAsyncDisposal      *bool
}

// DefaultNames lists the file-level names of the toggles, in declaration
// order.
var DefaultNames = []string{
	"dispose_constructed_objects",
	"dispose_static_call_results",
	"constant_collection_changes",
	"constant_map_changes",
	"member_collection_changes",
	"member_map_changes",
	"prefer_async_disposal",
	"block_on_async_disposal",
}

func (d *Defaults) field(name string) **bool {
	switch name {
	case "dispose_constructed_objects":
		return &d.DisposeConstructedObjects
	case "dispose_static_call_results":
		return &d.DisposeStaticCallResults
	case "constant_collection_changes":
		return &d.ConstantCollectionChanges
	case "constant_map_changes":
		return &d.ConstantMapChanges
	case "member_collection_changes":
		return &d.MemberCollectionChanges
	case "member_map_changes":
		return &d.MemberMapChanges
	case "prefer_async_disposal":
		return &d.PreferAsyncDisposal
	case "block_on_async_disposal":
		return &d.BlockOnAsyncDisposal
	}
	return nil
}

// Set assigns the toggle with the given file-level name.
func (d *Defaults) Set(name string, v bool) error {
	f := d.field(name)
	if f == nil {
		return fmt.Errorf("%w: %q", ErrUnknownDefault, name)
	}
	*f = &v
	return nil
}

// Get returns the toggle with the given file-level name, nil when unset.
func (d *Defaults) Get(name string) *bool {
	if f := d.field(name); f != nil {
		return *f
	}
	return nil
}

// ConstructedRule registers disposal of a type built by the constructor
// taking exactly Args.
type ConstructedRule struct {
	Type   string
	Args   []string
	Source string
}

// MemberRule names a method or property of Owner.
type MemberRule struct {
	Owner  string
	Name   string
	Source string
}

// NameRule names a registered func or a generic definition.
type NameRule struct {
	Name   string
	Source string
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// Merge appends the rules of other to m. Toggles set in other override
// those of m.
func (m *Model) Merge(other *Model) {
	if other == nil {
		return
	}
	for _, name := range DefaultNames {
		if v := other.Defaults.Get(name); v != nil {
			_ = m.Defaults.Set(name, *v)
		}
	}
	m.Constructed = append(m.Constructed, other.Constructed...)
	m.Methods = append(m.Methods, other.Methods...)
	m.Funcs = append(m.Funcs, other.Funcs...)
	m.Generics = append(m.Generics, other.Generics...)
	m.Properties = append(m.Properties, other.Properties...)
	m.Ignored = append(m.Ignored, other.Ignored...)
}

// Rules returns the number of registration rules.
func (m *Model) Rules() int {
	return len(m.Constructed) + len(m.Methods) + len(m.Funcs) + len(m.Generics) + len(m.Properties) + len(m.Ignored)
}
