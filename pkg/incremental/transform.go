package incremental

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/table"
)

// TransformNode derives zero or more values from each entry of its upstream node.
type TransformNode[In, Out any] struct {
	base[Out]
	src Node[In]
	fn  func(context.Context, In) ([]Out, error)
}

func newTransform[In, Out any](p *Pipeline, name string, card domain.Cardinality, src Node[In], fn func(context.Context, In) ([]Out, error), opts []NodeOption[Out]) *TransformNode[In, Out] {
	n := &TransformNode[In, Out]{
		base: newBase(p, name, domain.NodeKindTransform, card, opts, upstream(src)...),
		src:  src,
		fn:   fn,
	}
	p.register(n, func(id domain.NodeID) { n.id = id })
	return n
}

// Select maps every upstream value to exactly one value.
func Select[In, Out any](p *Pipeline, name string, src Node[In], fn func(context.Context, In) (Out, error), opts ...NodeOption[Out]) *TransformNode[In, Out] {
	return newTransform(p, name, cardinalityOf(src), src, func(ctx context.Context, v In) ([]Out, error) {
		out, err := fn(ctx, v)
		if err != nil {
			return nil, err
		}
		return []Out{out}, nil
	}, opts)
}

// Where keeps the upstream values for which keep returns true.
func Where[T any](p *Pipeline, name string, src Node[T], keep func(context.Context, T) (bool, error), opts ...NodeOption[T]) *TransformNode[T, T] {
	return newTransform(p, name, domain.Many, src, func(ctx context.Context, v T) ([]T, error) {
		ok, err := keep(ctx, v)
		if err != nil || !ok {
			return nil, err
		}
		return []T{v}, nil
	}, opts)
}

// SelectMany maps every upstream value to any number of values.
func SelectMany[In, Out any](p *Pipeline, name string, src Node[In], fn func(context.Context, In) ([]Out, error), opts ...NodeOption[Out]) *TransformNode[In, Out] {
	return newTransform(p, name, domain.Many, src, fn, opts)
}

// Update recomputes the entries whose upstream entry was Added or Modified, or whose previous
// computation failed, and carries the rest forward.
func (n *TransformNode[In, Out]) Update(ctx context.Context, b *Builder, prev *table.Table[Out]) (*table.Table[Out], error) {
	up, err := Latest(ctx, b, n.src)
	if err != nil {
		return nil, err
	}

	tb := n.newTable(up.Len())
	cursor := slotCursor[Out]{prev: prev}
	pos := 0 // index among the live upstream entries
	for entry := range up.All() {
		old, hadPrev := cursor.take(entry.State)
		switch {
		case entry.State == domain.Removed:
			tb.AddFromPrevious(old, domain.Removed)
			continue
		case entry.State == domain.Cached && hadPrev && !old.Faulted():
			tb.AddFromPrevious(old, domain.Cached)
		default:
			values, ok, err := call(ctx, b, n, pos, func(ctx context.Context) ([]Out, error) {
				return n.fn(ctx, entry.Value)
			})
			if err != nil {
				return nil, err
			}
			if !ok {
				tb.AddFaulted(old)
			} else {
				tb.AddComputed(old, values)
			}
		}
		pos++
	}
	return tb.ToImmutable(), nil
}

func cardinalityOf(n AnyNode) domain.Cardinality {
	if isNilNode(n) {
		return domain.Many
	}
	return n.Cardinality()
}

// upstream converts a possibly nil typed node into the AnyNode list used for validation.
func upstream(nodes ...AnyNode) []AnyNode {
	out := make([]AnyNode, len(nodes))
	for i, n := range nodes {
		if isNilNode(n) {
			continue
		}
		out[i] = n
	}
	return out
}
