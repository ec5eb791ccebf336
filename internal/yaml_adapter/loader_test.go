package yaml_adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/livexpr/internal/config"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writeFile(t, `
defaults:
  dispose_static_call_results: true
dispose_constructed:
  - type: "*shop.Conn"
    args: [string]
dispose_method:
  - {owner: shop.Pool, name: Get}
---
defaults:
  dispose_static_call_results: false
dispose_func: [open, dial]
dispose_generic: [Pool.Acquire]
ignore_property_changes:
  - {owner: shop.Cart, name: Updated}
`)

	// --- Act ---
	model, err := NewLoader().Load(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	require.NotNil(t, model.Defaults.DisposeStaticCallResults)
	assert.False(t, *model.Defaults.DisposeStaticCallResults, "the later document wins")

	want := &config.Model{
		Defaults:    model.Defaults,
		Constructed: []*config.ConstructedRule{{Type: "*shop.Conn", Args: []string{"string"}, Source: path}},
		Methods:     []*config.MemberRule{{Owner: "shop.Pool", Name: "Get", Source: path}},
		Funcs:       []*config.NameRule{{Name: "open", Source: path}, {Name: "dial", Source: path}},
		Generics:    []*config.NameRule{{Name: "Pool.Acquire", Source: path}},
		Ignored:     []*config.MemberRule{{Owner: "shop.Cart", Name: "Updated", Source: path}},
	}
	if diff := cmp.Diff(want, model, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_Load_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown key", func(t *testing.T) {
		_, err := NewLoader().Load(context.Background(), writeFile(t, "dispose_everything: [x]\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode YAML file")
	})
	t.Run("unknown default", func(t *testing.T) {
		_, err := NewLoader().Load(context.Background(), writeFile(t, "defaults:\n  sometimes: true\n"))
		require.ErrorIs(t, err, config.ErrUnknownDefault)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read YAML file")
	})
	t.Run("empty file", func(t *testing.T) {
		model, err := NewLoader().Load(context.Background(), writeFile(t, ""))
		require.NoError(t, err)
		assert.Zero(t, model.Rules())
	})
}
