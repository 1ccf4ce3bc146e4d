package incremental

import (
	"context"
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/table"
)

// InputDelta supplies the state of one input node for a pass.
type InputDelta func(b *Builder) error

// InputNode is a source node whose entries are supplied by the host each pass.
type InputNode[T any] struct {
	base[T]
}

// Input declares a many-valued input node.
func Input[T any](p *Pipeline, name string, opts ...NodeOption[T]) *InputNode[T] {
	n := &InputNode[T]{base: newBase(p, name, domain.NodeKindInput, domain.Many, opts)}
	p.register(n, func(id domain.NodeID) { n.id = id })
	return n
}

// ValueInput declares an input node that holds exactly one value, such as options shared by
// every entry of another input.
func ValueInput[T any](p *Pipeline, name string, opts ...NodeOption[T]) *InputNode[T] {
	n := &InputNode[T]{base: newBase(p, name, domain.NodeKindInput, domain.One, opts)}
	p.register(n, func(id domain.NodeID) { n.id = id })
	return n
}

// Update carries the previous table forward unchanged when the host did not supply one.
func (n *InputNode[T]) Update(_ context.Context, _ *Builder, prev *table.Table[T]) (*table.Table[T], error) {
	return prev.AsCached(), nil
}

// SetState supplies host-classified entries. Every entry that is not Added must correspond,
// in order, to an entry of the previous table.
func (n *InputNode[T]) SetState(b *Builder, entries []domain.Entry[T]) error {
	prev := StateOf[T](b.prev, n.id)
	existing := 0
	for _, e := range entries {
		if e.State != domain.Added {
			existing++
		}
	}
	if existing != prev.Len() {
		return fmt.Errorf("%w: %q has %d previous entries, got %d", domain.ErrMisalignedInput, n.name, prev.Len(), existing)
	}
	return n.set(b, table.FromEntries(entries))
}

// SetValues supplies the full current list of values, classified positionally against the
// previous table.
func (n *InputNode[T]) SetValues(b *Builder, values []T) error {
	return n.set(b, table.Diff(StateOf[T](b.prev, n.id), values, n.cmp))
}

// SetKeyed supplies the full current list of values, classified by key against the previous
// table. Unlike SetValues, inserting a value does not shift the ones after it.
func (n *InputNode[T]) SetKeyed(b *Builder, values []T, key func(T) string) error {
	t, err := table.DiffKeyed(StateOf[T](b.prev, n.id), values, key, n.cmp)
	if err != nil {
		return fmt.Errorf("input %q: %w", n.name, err)
	}
	return n.set(b, t)
}

func (n *InputNode[T]) set(b *Builder, t *table.Table[T]) error {
	if n.card == domain.One {
		if live := len(t.Values()); live != 1 {
			return fmt.Errorf("%w: %q is single-valued, got %d values", domain.ErrArity, n.name, live)
		}
	}
	return b.setInput(n, t)
}

// Entries returns a delta supplying host-classified entries.
func (n *InputNode[T]) Entries(entries ...domain.Entry[T]) InputDelta {
	return func(b *Builder) error { return n.SetState(b, entries) }
}

// Values returns a delta supplying values classified by position.
func (n *InputNode[T]) Values(values ...T) InputDelta {
	return func(b *Builder) error { return n.SetValues(b, values) }
}

// Keyed returns a delta supplying values classified by key.
func (n *InputNode[T]) Keyed(key func(T) string, values ...T) InputDelta {
	return func(b *Builder) error { return n.SetKeyed(b, values, key) }
}
