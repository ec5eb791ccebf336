// Package hcl_adapter loads disposal policy files written in HCL.
package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/specialistvlad/livexpr/internal/config"
	"github.com/specialistvlad/livexpr/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new HCL policy loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every file and merges the declared rules into one model, in
// file order.
func (l *Loader) Load(ctx context.Context, files ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "file_count", len(files))

	model := config.NewModel()
	parser := hclparse.NewParser()

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		part, err := l.translate(ctx, file, &root)
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", file, err)
		}
		model.Merge(part)
	}

	logger.Debug("HCL loading complete.", "rules", model.Rules())
	return model, nil
}

func (l *Loader) translate(ctx context.Context, file string, root *fileRoot) (*config.Model, error) {
	m := config.NewModel()
	for _, d := range root.Defaults {
		if err := translateDefaults(ctx, d, &m.Defaults); err != nil {
			return nil, err
		}
	}
	for _, c := range root.Constructed {
		m.Constructed = append(m.Constructed, &config.ConstructedRule{Type: c.Type, Args: c.Args, Source: file})
	}
	members := func(blocks []*MemberBlock) []*config.MemberRule {
		out := make([]*config.MemberRule, 0, len(blocks))
		for _, b := range blocks {
			out = append(out, &config.MemberRule{Owner: b.Owner, Name: b.Name, Source: file})
		}
		return out
	}
	names := func(blocks []*NameBlock) []*config.NameRule {
		out := make([]*config.NameRule, 0, len(blocks))
		for _, b := range blocks {
			out = append(out, &config.NameRule{Name: b.Name, Source: file})
		}
		return out
	}
	m.Methods = members(root.Methods)
	m.Properties = members(root.Properties)
	m.Ignored = members(root.Ignored)
	m.Funcs = names(root.Funcs)
	m.Generics = names(root.Generics)
	return m, nil
}
