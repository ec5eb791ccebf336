package livexpr

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/livexpr/expr"
)

func TestNewOptions_Defaults(t *testing.T) {
	t.Parallel()

	o := NewOptions()
	assert.True(t, o.DisposeConstructedObjects)
	assert.False(t, o.DisposeStaticCallResults)
	assert.True(t, o.ConstantCollectionChanges)
	assert.True(t, o.ConstantMapChanges)
	assert.True(t, o.MemberCollectionChanges)
	assert.True(t, o.MemberMapChanges)
	assert.True(t, o.PreferAsyncDisposal)
	assert.False(t, o.BlockOnAsyncDisposal)
	assert.False(t, o.TraceEvents)
}

func TestOptions_RejectsInvalidArguments(t *testing.T) {
	t.Parallel()

	o := NewOptions()
	personType := reflectTypeOfPerson()
	settingsType := reflect.TypeFor[settings]()

	cases := map[string]error{
		"nil constructed type":      o.AddConstructedTypeDisposal(nil),
		"nil constructor argument":  o.AddConstructedTypeDisposal(personType, nil),
		"method without name":       o.AddMethodDisposal(personType, ""),
		"unknown method":            o.AddMethodDisposal(personType, "Missing"),
		"nil func":                  o.AddFuncDisposal(nil),
		"empty generic definition":  o.AddGenericDefinitionDisposal(""),
		"property that is a field":  o.AddPropertyDisposal(settingsType, "Label"),
		"unknown property":          o.AddPropertyDisposal(personType, "Missing"),
		"ignored property nil type": o.IgnorePropertyChanges(nil, "Name"),
		"remove nil func":           o.RemoveFuncDisposal(nil),
	}
	for name, err := range cases {
		assert.ErrorIs(t, err, ErrInvalidArgument, name)
	}
}

func TestOptions_Rules(t *testing.T) {
	t.Parallel()

	o := NewOptions()
	personType := reflectTypeOfPerson()
	resourceType := reflect.TypeFor[*resource]()
	intType := reflect.TypeFor[int]()

	t.Run("constructed type matches exact signature", func(t *testing.T) {
		require.NoError(t, o.AddConstructedTypeDisposal(resourceType, intType))
		assert.True(t, o.IsConstructedTypeDisposed(resourceType, intType))
		assert.False(t, o.IsConstructedTypeDisposed(resourceType))

		require.NoError(t, o.RemoveConstructedTypeDisposal(resourceType, intType))
		assert.False(t, o.IsConstructedTypeDisposed(resourceType, intType))
	})

	t.Run("method rule ignores pointer indirection", func(t *testing.T) {
		require.NoError(t, o.AddMethodDisposal(personType, "Friends"))
		assert.True(t, o.ShouldDisposeMethod(personType, "Friends"))
		assert.True(t, o.ShouldDisposeMethod(personType.Elem(), "Friends"))

		require.NoError(t, o.RemoveMethodDisposal(personType, "Friends"))
		assert.False(t, o.ShouldDisposeMethod(personType, "Friends"))
	})

	t.Run("property rule is a getter rule", func(t *testing.T) {
		require.NoError(t, o.AddPropertyDisposal(personType, "Name"))
		assert.True(t, o.ShouldDisposeProperty(personType, "Name"))
		assert.True(t, o.ShouldDisposeMethod(personType, "Name"))

		require.NoError(t, o.RemovePropertyDisposal(personType, "Name"))
		assert.False(t, o.ShouldDisposeProperty(personType, "Name"))
	})

	t.Run("ignored property", func(t *testing.T) {
		require.NoError(t, o.IgnorePropertyChanges(personType, "Age"))
		assert.True(t, o.IsPropertyIgnored(personType, "Age"))
		require.NoError(t, o.UnignorePropertyChanges(personType, "Age"))
		assert.False(t, o.IsPropertyIgnored(personType, "Age"))
	})
}

func TestOptions_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	open := expr.NewFunc("open", newResource)
	o := NewOptions()
	o.DisposeConstructedObjects = false
	require.NoError(t, o.AddFuncDisposal(open))

	// --- Act ---
	c := o.Clone()
	require.NoError(t, c.RemoveFuncDisposal(open))
	c.DisposeConstructedObjects = true
	require.NoError(t, o.IgnorePropertyChanges(reflectTypeOfPerson(), "Name"))

	// --- Assert ---
	assert.True(t, o.ShouldDisposeFunc(open))
	assert.False(t, c.ShouldDisposeFunc(open))
	assert.False(t, o.DisposeConstructedObjects)
	assert.False(t, c.IsPropertyIgnored(reflectTypeOfPerson(), "Name"))
}

func TestNew_SnapshotsOptions(t *testing.T) {
	t.Parallel()

	opts := NewOptions()
	obs := New(opts)
	opts.DisposeConstructedObjects = false

	p := newPerson("John", 1)
	h, err := obs.Observe(resourceByAge(), p)
	require.NoError(t, err)
	first := h.Result().(*resource)
	p.SetAge(2)
	require.NoError(t, h.Close())

	assert.EqualValues(t, 1, first.closed.Load(), "the observer keeps the toggle it was created with")
}
