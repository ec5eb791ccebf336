package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/specialistvlad/livexpr/internal/config"
	"github.com/specialistvlad/livexpr/internal/ctxlog"
)

// isExprDefined checks if an HCL expression was actually present in the source
// code. The decoder may hand out zero-width placeholder expressions, so a nil
// check alone is insufficient.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	defined := r.End.Byte > r.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", r.String(),
		"is_defined", defined,
	)
	return defined
}

// translateDefaults reads every attribute of a defaults block as a bool and
// assigns it to d.
func translateDefaults(ctx context.Context, block *DefaultsBlock, d *config.Defaults) error {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return diags
	}
	for name, attr := range attrs {
		if !isExprDefined(ctx, attr.Expr, name) {
			continue
		}
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return fmt.Errorf("invalid value for default '%s': %w", name, diags)
		}
		b, err := ctyBool(val)
		if err != nil {
			return fmt.Errorf("default '%s' at %s: %w", name, attr.Range.String(), err)
		}
		if err := d.Set(name, b); err != nil {
			return fmt.Errorf("%s: %w", attr.NameRange.String(), err)
		}
	}
	return nil
}

// ctyBool accepts a bool or anything convertible to one, such as "true".
func ctyBool(val cty.Value) (bool, error) {
	if val.IsNull() || !val.IsKnown() {
		return false, fmt.Errorf("value must be a known bool")
	}
	conv, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, err
	}
	var b bool
	if err := gocty.FromCtyValue(conv, &b); err != nil {
		return false, err
	}
	return b, nil
}
