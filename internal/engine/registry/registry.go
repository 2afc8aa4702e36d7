// Package registry stores GPU-side objects in growable arrays addressed by
// dense integer handles.
//
// Handles are array indices and stay valid for the life of the registry;
// slots are never reused. Lookups by name are linear, so callers should
// resolve a name once and keep the handle.
package registry

import (
	"errors"
	"fmt"
	"math"
)

// Handle addresses an object in a Registry.
type Handle uint32

// Invalid is the reserved handle that never addresses an object.
const Invalid Handle = math.MaxUint32

// ErrInvalidHandle is returned when a handle does not address an object.
var ErrInvalidHandle = errors.New("invalid handle")

// Valid reports whether h is not the Invalid sentinel. It does not check range.
func (h Handle) Valid() bool {
	return h != Invalid
}

func (h Handle) String() string {
	if h == Invalid {
		return "invalid"
	}
	return fmt.Sprintf("#%d", uint32(h))
}

// Registry is a growable collection of *T with handle and name lookup.
type Registry[T any] struct {
	items []*T
	name  func(*T) string
}

// New creates a registry. name extracts the lookup name of an item.
func New[T any](name func(*T) string) *Registry[T] {
	return &Registry[T]{name: name}
}

// Add registers item and returns its handle.
func (r *Registry[T]) Add(item *T) Handle {
	r.items = append(r.items, item)
	return Handle(len(r.items) - 1)
}

// Get returns the item for h, or nil when h is out of range.
func (r *Registry[T]) Get(h Handle) *T {
	if h == Invalid || int(h) >= len(r.items) {
		return nil
	}
	return r.items[h]
}

// Lookup is Get returning ErrInvalidHandle instead of nil.
func (r *Registry[T]) Lookup(h Handle) (*T, error) {
	item := r.Get(h)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return item, nil
}

// Find returns the handle of the first item called name, or Invalid.
func (r *Registry[T]) Find(name string) Handle {
	for i, item := range r.items {
		if r.name(item) == name {
			return Handle(i)
		}
	}
	return Invalid
}

// Len returns the number of registered items.
func (r *Registry[T]) Len() int {
	return len(r.items)
}

// Each calls fn for every item in handle order.
func (r *Registry[T]) Each(fn func(Handle, *T)) {
	for i, item := range r.items {
		fn(Handle(i), item)
	}
}
