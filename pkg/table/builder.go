package table

import (
	"reflect"

	"github.com/aretw0/tendril/pkg/domain"
)

// Comparer reports whether two values are equivalent for caching purposes.
type Comparer[T any] func(a, b T) bool

// DefaultComparer compares values with reflect.DeepEqual.
func DefaultComparer[T any]() Comparer[T] {
	return func(a, b T) bool {
		return reflect.DeepEqual(a, b)
	}
}

// Builder assembles a Table slot by slot.
type Builder[T any] struct {
	slots []Slot[T]
	cmp   Comparer[T]
}

// NewBuilder creates a builder. A nil comparer falls back to DefaultComparer.
func NewBuilder[T any](cmp Comparer[T], capacity int) *Builder[T] {
	if cmp == nil {
		cmp = DefaultComparer[T]()
	}
	return &Builder[T]{slots: make([]Slot[T], 0, capacity), cmp: cmp}
}

// AddFromPrevious copies a previous slot forward without recomputation.
// state must be Cached or Removed.
func (b *Builder[T]) AddFromPrevious(prev Slot[T], state domain.EntryState) {
	next := Slot[T]{
		items:   append([]T(nil), prev.Live()...),
		removed: state == domain.Removed,
	}
	next.states = make([]domain.EntryState, len(next.items))
	for i := range next.states {
		next.states[i] = state
	}
	b.slots = append(b.slots, next)
}

// AddComputed records freshly computed values for a slot, pairing them by position against
// the live items of prev. Equal values reuse the previous object and are Cached, different
// values are Modified, extra values are Added and missing ones are Removed.
func (b *Builder[T]) AddComputed(prev Slot[T], values []T) {
	old := prev.Live()
	next := Slot[T]{
		items:  make([]T, 0, max(len(values), len(old))),
		states: make([]domain.EntryState, 0, max(len(values), len(old))),
	}
	for i, v := range values {
		switch {
		case i >= len(old):
			next.items = append(next.items, v)
			next.states = append(next.states, domain.Added)
		case b.cmp(old[i], v):
			next.items = append(next.items, old[i])
			next.states = append(next.states, domain.Cached)
		default:
			next.items = append(next.items, v)
			next.states = append(next.states, domain.Modified)
		}
	}
	for i := len(values); i < len(old); i++ {
		next.items = append(next.items, old[i])
		next.states = append(next.states, domain.Removed)
	}
	b.slots = append(b.slots, next)
}

// AddFaulted records a slot whose callback failed. Previously produced items are
// tombstoned and the slot is recomputed on the next pass.
func (b *Builder[T]) AddFaulted(prev Slot[T]) {
	old := prev.Live()
	next := Slot[T]{items: old, faulted: true, states: make([]domain.EntryState, len(old))}
	for i := range next.states {
		next.states[i] = domain.Removed
	}
	b.slots = append(b.slots, next)
}

// AddEntries records a slot whose items all share one state.
func (b *Builder[T]) AddEntries(values []T, state domain.EntryState) {
	next := Slot[T]{
		items:   append([]T(nil), values...),
		states:  make([]domain.EntryState, len(values)),
		removed: state == domain.Removed,
	}
	for i := range next.states {
		next.states[i] = state
	}
	b.slots = append(b.slots, next)
}

// Equal exposes the builder's comparer.
func (b *Builder[T]) Equal(x, y T) bool {
	return b.cmp(x, y)
}

// ToImmutable finalizes the table. The builder must not be used afterwards.
func (b *Builder[T]) ToImmutable() *Table[T] {
	t := newTable(b.slots)
	b.slots = nil
	return t
}
