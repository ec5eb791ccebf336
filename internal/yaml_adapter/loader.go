// Package yaml_adapter loads disposal policy files written in YAML.
package yaml_adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/livexpr/internal/config"
	"github.com/specialistvlad/livexpr/internal/ctxlog"
)

// document mirrors the HCL block layout:
//
//	defaults:
//	  dispose_constructed_objects: false
//	dispose_constructed:
//	  - type: "*app.Conn"
//	    args: [string]
//	dispose_method:
//	  - {owner: "*app.Pool", name: Get}
type document struct {
	Defaults    map[string]bool `yaml:"defaults"`
	Constructed []struct {
		Type string   `yaml:"type"`
		Args []string `yaml:"args"`
	} `yaml:"dispose_constructed"`
	Methods    []member `yaml:"dispose_method"`
	Funcs      []string `yaml:"dispose_func"`
	Generics   []string `yaml:"dispose_generic"`
	Properties []member `yaml:"dispose_property"`
	Ignored    []member `yaml:"ignore_property_changes"`
}

type member struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

// Loader is the YAML-specific implementation of the config.Loader interface.
type Loader struct{}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new YAML policy loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load decodes every file and merges the declared rules into one model, in
// file order. A file may hold several documents; unknown keys are errors.
func (l *Loader) Load(ctx context.Context, files ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "file_count", len(files))

	model := config.NewModel()
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML file %s: %w", file, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		for {
			var doc document
			if err := dec.Decode(&doc); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
			}
			part, err := translate(file, &doc)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
			model.Merge(part)
		}
	}

	logger.Debug("YAML loading complete.", "rules", model.Rules())
	return model, nil
}

func translate(file string, doc *document) (*config.Model, error) {
	m := config.NewModel()
	for name, v := range doc.Defaults {
		if err := m.Defaults.Set(name, v); err != nil {
			return nil, err
		}
	}
	for _, c := range doc.Constructed {
		m.Constructed = append(m.Constructed, &config.ConstructedRule{Type: c.Type, Args: c.Args, Source: file})
	}
	members := func(in []member) []*config.MemberRule {
		out := make([]*config.MemberRule, 0, len(in))
		for _, b := range in {
			out = append(out, &config.MemberRule{Owner: b.Owner, Name: b.Name, Source: file})
		}
		return out
	}
	names := func(in []string) []*config.NameRule {
		out := make([]*config.NameRule, 0, len(in))
		for _, n := range in {
			out = append(out, &config.NameRule{Name: n, Source: file})
		}
		return out
	}
	m.Methods = members(doc.Methods)
	m.Properties = members(doc.Properties)
	m.Ignored = members(doc.Ignored)
	m.Funcs = names(doc.Funcs)
	m.Generics = names(doc.Generics)
	return m, nil
}
