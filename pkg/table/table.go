package table

import (
	"iter"

	"github.com/aretw0/tendril/pkg/domain"
)

// StateTable is the non-generic view of a Table, used where tables of different value types
// are stored side by side.
type StateTable interface {
	// Len returns the number of entries, including Removed tombstones.
	Len() int
	// Summary describes the table without exposing its values.
	Summary() Summary
	// CompactState returns the table with expired bookkeeping removed.
	CompactState() StateTable
}

// Summary is a value-free description of a table.
type Summary struct {
	Entries int                       `json:"entries"`
	Slots   int                       `json:"slots"`
	Faulted int                       `json:"faulted"`
	Counts  map[domain.EntryState]int `json:"counts"`
}

// Slot holds the items produced for one upstream entry.
type Slot[T any] struct {
	items   []T
	states  []domain.EntryState
	faulted bool
	removed bool
}

// Len returns the number of items in the slot, including Removed ones.
func (s Slot[T]) Len() int { return len(s.items) }

// Item returns the i-th item and its state.
func (s Slot[T]) Item(i int) (T, domain.EntryState) { return s.items[i], s.states[i] }

// Faulted reports whether the producing callback failed for this slot.
func (s Slot[T]) Faulted() bool { return s.faulted }

// Removed reports whether the upstream entry of this slot was removed.
func (s Slot[T]) Removed() bool { return s.removed }

// Live returns the items that are not Removed.
func (s Slot[T]) Live() []T {
	out := make([]T, 0, len(s.items))
	for i, v := range s.items {
		if s.states[i] != domain.Removed {
			out = append(out, v)
		}
	}
	return out
}

// Table is the ordered, immutable output of one node for one pass.
type Table[T any] struct {
	slots []Slot[T]
	size  int
}

// Empty returns a table with no entries.
func Empty[T any]() *Table[T] {
	return &Table[T]{}
}

func newTable[T any](slots []Slot[T]) *Table[T] {
	size := 0
	for _, s := range slots {
		size += len(s.items)
	}
	return &Table[T]{slots: slots, size: size}
}

// Len returns the number of entries, including Removed tombstones.
func (t *Table[T]) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// IsEmpty reports whether the table has no slots at all.
func (t *Table[T]) IsEmpty() bool {
	return t == nil || len(t.slots) == 0
}

// SlotCount returns the number of slots.
func (t *Table[T]) SlotCount() int {
	if t == nil {
		return 0
	}
	return len(t.slots)
}

// Slot returns the i-th slot, or false if i is out of range.
func (t *Table[T]) Slot(i int) (Slot[T], bool) {
	if t == nil || i < 0 || i >= len(t.slots) {
		return Slot[T]{}, false
	}
	return t.slots[i], true
}

// All yields every entry in table order.
func (t *Table[T]) All() iter.Seq[domain.Entry[T]] {
	return func(yield func(domain.Entry[T]) bool) {
		if t == nil {
			return
		}
		for _, s := range t.slots {
			for i, v := range s.items {
				if !yield(domain.Entry[T]{Value: v, State: s.states[i]}) {
					return
				}
			}
		}
	}
}

// Entries returns every entry in table order.
func (t *Table[T]) Entries() []domain.Entry[T] {
	out := make([]domain.Entry[T], 0, t.Len())
	for e := range t.All() {
		out = append(out, e)
	}
	return out
}

// Values returns the values of every entry that is not Removed.
func (t *Table[T]) Values() []T {
	out := make([]T, 0, t.Len())
	for e := range t.All() {
		if e.State != domain.Removed {
			out = append(out, e.Value)
		}
	}
	return out
}

// States returns the state of every entry in table order.
func (t *Table[T]) States() []domain.EntryState {
	out := make([]domain.EntryState, 0, t.Len())
	for e := range t.All() {
		out = append(out, e.State)
	}
	return out
}

// Counts returns the number of entries per state.
func (t *Table[T]) Counts() map[domain.EntryState]int {
	counts := make(map[domain.EntryState]int, len(domain.AllStates))
	for e := range t.All() {
		counts[e.State]++
	}
	return counts
}

// Unchanged reports whether every entry is Cached and no slot is faulted or removed.
func (t *Table[T]) Unchanged() bool {
	if t == nil {
		return true
	}
	for _, s := range t.slots {
		if s.faulted || s.removed {
			return false
		}
		for _, st := range s.states {
			if st != domain.Cached {
				return false
			}
		}
	}
	return true
}

// HasFaults reports whether any slot's callback failed in the pass that produced the table.
func (t *Table[T]) HasFaults() bool {
	if t == nil {
		return false
	}
	for _, s := range t.slots {
		if s.faulted {
			return true
		}
	}
	return false
}

// Summary implements StateTable.
func (t *Table[T]) Summary() Summary {
	sum := Summary{Entries: t.Len(), Slots: t.SlotCount(), Counts: t.Counts()}
	if t != nil {
		for _, s := range t.slots {
			if s.faulted {
				sum.Faulted++
			}
		}
	}
	return sum
}

// Compact drops removed slots and Removed items. Surviving items keep their state, so a
// compacted table still reports what happened in the pass that produced it.
func (t *Table[T]) Compact() *Table[T] {
	if t == nil {
		return Empty[T]()
	}
	slots := make([]Slot[T], 0, len(t.slots))
	for _, s := range t.slots {
		if s.removed {
			continue
		}
		next := Slot[T]{faulted: s.faulted}
		for i, v := range s.items {
			if s.states[i] == domain.Removed {
				continue
			}
			next.items = append(next.items, v)
			next.states = append(next.states, s.states[i])
		}
		slots = append(slots, next)
	}
	return newTable(slots)
}

// CompactState implements StateTable.
func (t *Table[T]) CompactState() StateTable {
	return t.Compact()
}

// AsCached returns a compacted copy with every surviving item marked Cached.
// It is used to carry a table forward into a pass that did not touch it.
func (t *Table[T]) AsCached() *Table[T] {
	c := t.Compact()
	for i := range c.slots {
		states := make([]domain.EntryState, len(c.slots[i].states))
		for j := range states {
			states[j] = domain.Cached
		}
		c.slots[i].states = states
	}
	return c
}

// FromEntries builds a table with one slot per entry, as produced by host-classified inputs.
func FromEntries[T any](entries []domain.Entry[T]) *Table[T] {
	slots := make([]Slot[T], 0, len(entries))
	for _, e := range entries {
		slots = append(slots, Slot[T]{
			items:   []T{e.Value},
			states:  []domain.EntryState{e.State},
			removed: e.State == domain.Removed,
		})
	}
	return newTable(slots)
}
