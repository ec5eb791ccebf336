package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_SetAndGet(t *testing.T) {
	t.Parallel()

	var d Defaults
	for _, name := range DefaultNames {
		assert.Nil(t, d.Get(name), "%s starts unset", name)
		require.NoError(t, d.Set(name, true))
		require.NotNil(t, d.Get(name))
		assert.True(t, *d.Get(name))
	}

	err := d.Set("dispose_everything", true)
	require.ErrorIs(t, err, ErrUnknownDefault)
	assert.Contains(t, err.Error(), "dispose_everything")
	assert.Nil(t, d.Get("dispose_everything"))
}

func TestModel_Merge(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	base := NewModel()
	require.NoError(t, base.Defaults.Set("dispose_constructed_objects", true))
	require.NoError(t, base.Defaults.Set("constant_map_changes", true))
	base.Methods = []*MemberRule{{Owner: "Pool", Name: "Get", Source: "a.hcl"}}

	other := NewModel()
	require.NoError(t, other.Defaults.Set("dispose_constructed_objects", false))
	other.Methods = []*MemberRule{{Owner: "Pool", Name: "Put", Source: "b.yaml"}}
	other.Funcs = []*NameRule{{Name: "open", Source: "b.yaml"}}

	// --- Act ---
	base.Merge(other)
	base.Merge(nil)

	// --- Assert ---
	assert.False(t, *base.Defaults.DisposeConstructedObjects, "later files override toggles")
	assert.True(t, *base.Defaults.ConstantMapChanges, "toggles unset later are kept")
	assert.Nil(t, base.Defaults.MemberMapChanges)

	wantMethods := []*MemberRule{
		{Owner: "Pool", Name: "Get", Source: "a.hcl"},
		{Owner: "Pool", Name: "Put", Source: "b.yaml"},
	}
	if diff := cmp.Diff(wantMethods, base.Methods); diff != "" {
		t.Errorf("Merge() methods mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, base.Rules())
}
