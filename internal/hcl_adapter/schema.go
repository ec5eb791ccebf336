package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Defaults    []*DefaultsBlock    `hcl:"defaults,block"`
	Constructed []*ConstructedBlock `hcl:"dispose_constructed,block"`
	Methods     []*MemberBlock      `hcl:"dispose_method,block"`
	Funcs       []*NameBlock        `hcl:"dispose_func,block"`
	Generics    []*NameBlock        `hcl:"dispose_generic,block"`
	Properties  []*MemberBlock      `hcl:"dispose_property,block"`
	Ignored     []*MemberBlock      `hcl:"ignore_property_changes,block"`
}

// DefaultsBlock carries toggle assignments. Its attributes are read
// individually so that unset toggles stay unset.
type DefaultsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// ConstructedBlock maps to `dispose_constructed "<type>" { args = [...] }`.
type ConstructedBlock struct {
	Type string   `hcl:"type,label"`
	Args []string `hcl:"args,optional"`
}

// MemberBlock maps to `<kind> "<owner>" "<name>" {}`.
type MemberBlock struct {
	Owner string `hcl:"owner,label"`
	Name  string `hcl:"name,label"`
}

// NameBlock maps to `<kind> "<name>" {}`.
type NameBlock struct {
	Name string `hcl:"name,label"`
}
