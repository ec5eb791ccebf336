package livexpr

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/specialistvlad/livexpr/internal/config"
	"github.com/specialistvlad/livexpr/internal/ctxlog"
	"github.com/specialistvlad/livexpr/internal/fsutil"
	"github.com/specialistvlad/livexpr/internal/hcl_adapter"
	"github.com/specialistvlad/livexpr/internal/registry"
	"github.com/specialistvlad/livexpr/internal/yaml_adapter"
)

// LoadOptions reads the policy files found under paths (files or
// directories of .hcl, .yaml and .yml files) and applies them on top of
// NewOptions. Names resolve against catalog, which may be nil when the
// files only set defaults. Every unknown name and rejected rule is reported
// in one error.
func LoadOptions(ctx context.Context, catalog *Catalog, paths ...string) (*Options, error) {
	logger := ctxlog.FromContext(ctx)
	if catalog == nil {
		catalog = NewCatalog()
	}

	files, err := fsutil.FindFilesByExtension(paths, ".hcl", ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered policy files.", "count", len(files))

	var hclFiles, yamlFiles []string
	for _, f := range files {
		if strings.HasSuffix(f, ".hcl") {
			hclFiles = append(hclFiles, f)
		} else {
			yamlFiles = append(yamlFiles, f)
		}
	}

	model := config.NewModel()
	for _, step := range []struct {
		loader config.Loader
		files  []string
	}{
		{hcl_adapter.NewLoader(), hclFiles},
		{yaml_adapter.NewLoader(), yamlFiles},
	} {
		if len(step.files) == 0 {
			continue
		}
		part, err := step.loader.Load(ctx, step.files...)
		if err != nil {
			return nil, err
		}
		model.Merge(part)
	}

	policy, err := catalog.reg.Resolve(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("policy validation failed: %w", err)
	}
	opts := NewOptions()
	if err := applyPolicy(opts, policy); err != nil {
		return nil, fmt.Errorf("policy validation failed: %w", err)
	}
	logger.Info("Policy loaded.", "files", len(files), "rules", model.Rules())
	return opts, nil
}

func applyPolicy(o *Options, p *registry.Policy) error {
	toggles := map[string]*bool{
		"dispose_constructed_objects": &o.DisposeConstructedObjects,
		"dispose_static_call_results": &o.DisposeStaticCallResults,
		"constant_collection_changes": &o.ConstantCollectionChanges,
		"constant_map_changes":        &o.ConstantMapChanges,
		"member_collection_changes":   &o.MemberCollectionChanges,
		"member_map_changes":          &o.MemberMapChanges,
		"prefer_async_disposal":       &o.PreferAsyncDisposal,
		"block_on_async_disposal":     &o.BlockOnAsyncDisposal,
	}
	for _, name := range config.DefaultNames {
		if v := p.Defaults.Get(name); v != nil {
			*toggles[name] = *v
		}
	}

	var result *multierror.Error
	add := func(err error) {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, c := range p.Constructed {
		add(o.AddConstructedTypeDisposal(c.Type, c.Args...))
	}
	for _, m := range p.Methods {
		add(o.AddMethodDisposal(m.Owner, m.Name))
	}
	for _, fn := range p.Funcs {
		add(o.AddFuncDisposal(fn))
	}
	for _, g := range p.Generics {
		add(o.AddGenericDefinitionDisposal(g))
	}
	for _, m := range p.Properties {
		add(o.AddPropertyDisposal(m.Owner, m.Name))
	}
	for _, m := range p.Ignored {
		add(o.IgnorePropertyChanges(m.Owner, m.Name))
	}
	return result.ErrorOrNil()
}
