// Package notify defines the change-notification capabilities a value may
// implement so that live expressions can follow it, together with small
// reference implementations of each capability.
//
// # Capabilities
//
// A value may implement any subset of:
//   - **PropertyNotifier:** fires with the name of a property whose value changed
//   - **CollectionNotifier:** fires with a structural change of an ordered collection
//   - **MapNotifier:** fires with a structural change of a keyed collection
//
// Every subscription returns a cancel function. Cancelling is idempotent and
// safe to call from within a handler.
//
// # Delivery
//
// Handlers run synchronously on the goroutine that raised the change. The
// implementations in this package snapshot their handler set under a lock
// and invoke handlers outside of it, so a handler may subscribe, cancel, or
// raise further changes without deadlocking.
package notify

import "errors"

var (
	// ErrKeyNotFound is returned by keyed lookups for keys that are absent.
	ErrKeyNotFound = errors.New("key not found")
	// ErrIndexOutOfRange is returned by positional access past either end.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ItemsProperty is the property name raised when the element at some position
// or key changes without a structural event being available.
const ItemsProperty = "Items"

// PropertyHandler receives the sender and the name of the changed property.
// An empty name means every property may have changed.
type PropertyHandler func(sender any, property string)

// PropertyNotifier is implemented by values that announce property changes.
type PropertyNotifier interface {
	OnPropertyChanged(h PropertyHandler) (cancel func())
}

// Action describes the kind of a structural collection or map change.
type Action int

const (
	// Add means items were inserted.
	Add Action = iota
	// Remove means items were removed.
	Remove
	// Replace means items were overwritten in place.
	Replace
	// Move means items changed position (collections only).
	Move
	// Reset means the contents changed drastically; nothing else is known.
	Reset
)

func (a Action) String() string {
	switch a {
	case Add:
		return "add"
	case Remove:
		return "remove"
	case Replace:
		return "replace"
	case Move:
		return "move"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// CollectionChange describes a structural change of an ordered collection.
// Indices are -1 when unknown.
type CollectionChange struct {
	Action   Action
	NewIndex int
	NewItems []any
	OldIndex int
	OldItems []any
}

// CollectionNotifier is implemented by ordered collections that announce
// structural changes.
type CollectionNotifier interface {
	OnCollectionChanged(h func(CollectionChange)) (cancel func())
}

// KeyValue is one affected entry of a MapChange.
type KeyValue struct {
	Key   any
	Value any
}

// MapChange describes a structural change of a keyed collection.
type MapChange struct {
	Action   Action
	NewItems []KeyValue
	OldItems []KeyValue
}

// MapNotifier is implemented by keyed collections that announce structural
// changes.
type MapNotifier interface {
	OnMapChanged(h func(MapChange)) (cancel func())
}
