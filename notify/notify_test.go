package notify

import (
	"slices"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Source
	name string
}

func (p *person) SetName(v string) { Set(&p.Source, p, &p.name, v, "Name") }

func TestSource_RaisesOnlyOnChange(t *testing.T) {
	p := &person{}
	var got []string
	cancel := p.OnPropertyChanged(func(sender any, property string) {
		assert.Same(t, p, sender)
		got = append(got, property)
	})

	p.SetName("John")
	p.SetName("John")
	p.SetName("Jo")
	assert.Equal(t, []string{"Name", "Name"}, got)

	cancel()
	cancel()
	p.SetName("Ann")
	assert.Len(t, got, 2)
	assert.Zero(t, p.PropertySubscribers())
}

func TestSource_ConcurrentSubscribe(t *testing.T) {
	var s Source
	var wg sync.WaitGroup
	cancels := make([]func(), 100)
	for i := range cancels {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cancels[i] = s.OnPropertyChanged(func(any, string) {})
		}(i)
	}
	wg.Wait()
	require.Equal(t, 100, s.PropertySubscribers())
	for _, c := range cancels {
		wg.Add(1)
		go func(c func()) {
			defer wg.Done()
			c()
		}(c)
	}
	wg.Wait()
	assert.Zero(t, s.PropertySubscribers())
}

func TestList_Events(t *testing.T) {
	l := NewList(1, 2, 3)
	var changes []CollectionChange
	var props []string
	l.OnCollectionChanged(func(ch CollectionChange) { changes = append(changes, ch) })
	l.OnPropertyChanged(func(_ any, p string) { props = append(props, p) })

	l.Add(4)
	require.NoError(t, l.Insert(0, 0))
	require.NoError(t, l.Set(1, 10))
	require.NoError(t, l.Move(0, 4))
	require.NoError(t, l.RemoveAt(0))
	assert.Error(t, l.RemoveAt(9))

	assert.Equal(t, []int{2, 3, 4, 0}, l.Items())
	want := []CollectionChange{
		{Action: Add, NewIndex: 3, NewItems: []any{4}, OldIndex: -1},
		{Action: Add, NewIndex: 0, NewItems: []any{0}, OldIndex: -1},
		{Action: Replace, NewIndex: 1, NewItems: []any{10}, OldIndex: 1, OldItems: []any{1}},
		{Action: Move, NewIndex: 4, NewItems: []any{0}, OldIndex: 0, OldItems: []any{0}},
		{Action: Remove, NewIndex: -1, OldIndex: 0, OldItems: []any{10}},
	}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Errorf("collection changes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{
		"Len", ItemsProperty,
		"Len", ItemsProperty,
		ItemsProperty,
		ItemsProperty,
		"Len", ItemsProperty,
	}, props)
}

func TestMap_Events(t *testing.T) {
	m := NewMap(map[string]int{"a": 1})
	var actions []Action
	m.OnMapChanged(func(ch MapChange) { actions = append(actions, ch.Action) })

	m.Set("a", 2)
	m.Set("b", 3)
	assert.True(t, m.Delete("a"))
	assert.False(t, m.Delete("zz"))
	m.Clear()

	assert.Equal(t, []Action{Replace, Add, Remove, Reset}, actions)
	_, err := m.At("b")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFindLastIndex(t *testing.T) {
	even := func(v int) bool { return v%2 == 0 }
	tests := []struct {
		name  string
		items []int
		want  int
	}{
		{"empty", nil, -1},
		{"absent", []int{1, 3, 5}, -1},
		{"only first", []int{2, 1, 3}, 0},
		{"only last", []int{1, 3, 4}, 2},
		{"several", []int{2, 4, 1, 6, 7}, 3},
		{"single match", []int{8}, 0},
		{"all match", []int{2, 4, 6, 8}, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FindLastIndex(slices.Values(tc.items), even))
		})
	}
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "move", Move.String())
}
