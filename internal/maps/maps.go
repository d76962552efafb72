// Package maps provides the concurrent maps shared by the session registry
// and the process-name cache.
package maps

import (
	"fmt"
	"sync/atomic"
)

// DefaultImplementation backs NewConcurrentMap until SetImplementation
// picks another.
const DefaultImplementation = "xsync"

// mapImplementation controls the concurrent map NewConcurrentMap returns.
var mapImplementation atomic.Value // string

// SetImplementation selects the map returned by later NewConcurrentMap
// calls. Valid options: "xsync", "cornelk". Empty selects the default.
// Maps created earlier keep their implementation.
func SetImplementation(name string) error {
	if err := ValidImplementation(name); err != nil {
		return err
	}
	if name == "" {
		name = DefaultImplementation
	}
	mapImplementation.Store(name)
	return nil
}

// ValidImplementation reports whether name can be passed to SetImplementation.
func ValidImplementation(name string) error {
	switch name {
	case "", "xsync", "cornelk":
		return nil
	}
	return fmt.Errorf("unknown map implementation %q", name)
}

// Implementation returns the selected implementation name.
func Implementation() string {
	if name, ok := mapImplementation.Load().(string); ok {
		return name
	}
	return DefaultImplementation
}

// Integer is a constraint that permits any integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Key permits integer and string keys, the intersection of what both
// backing libraries can hash.
type Key interface {
	Integer | ~string
}

// ConcurrentMap defines a generic, thread-safe map.
// This abstraction allows swapping the underlying implementation without
// changing the callers.
type ConcurrentMap[K Key, V any] interface {
	Load(key K) (V, bool)
	Store(key K, value V)
	Delete(key K)
	LoadAndDelete(key K) (V, bool)
	// LoadOrStore returns the existing value, or stores the factory result.
	// loaded reports whether the value was already present.
	LoadOrStore(key K, valueFactory func() V) (actual V, loaded bool)
	Update(key K, updateFunc func(value V, exists bool) (newValue V, keep bool))
	Range(f func(key K, value V) bool)
	Len() int
}

// NewConcurrentMap is a factory that returns the selected concurrent map
// implementation.
func NewConcurrentMap[K Key, V any]() ConcurrentMap[K, V] {
	switch Implementation() {
	case "cornelk":
		return NewCornelkMap[K, V]()
	default:
		return NewXSyncMap[K, V]()
	}
}
