package incremental

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/table"
)

// CollectNode folds every live upstream value into a single entry.
type CollectNode[T any] struct {
	base[[]T]
	src Node[T]
}

// Collect declares a single-valued node holding all live values of src in table order.
func Collect[T any](p *Pipeline, name string, src Node[T], opts ...NodeOption[[]T]) *CollectNode[T] {
	n := &CollectNode[T]{
		base: newBase(p, name, domain.NodeKindCombine, domain.One, opts, upstream(src)...),
		src:  src,
	}
	p.register(n, func(id domain.NodeID) { n.id = id })
	return n
}

// Update rebuilds the collected value whenever any upstream entry changed.
func (n *CollectNode[T]) Update(ctx context.Context, b *Builder, prev *table.Table[[]T]) (*table.Table[[]T], error) {
	up, err := Latest(ctx, b, n.src)
	if err != nil {
		return nil, err
	}
	tb := n.newTable(1)
	old, hadPrev := prev.Slot(0)
	if hadPrev && up.Unchanged() {
		tb.AddFromPrevious(old, domain.Cached)
	} else {
		tb.AddComputed(old, [][]T{up.Values()})
	}
	return tb.ToImmutable(), nil
}

// Pair is an entry of a many-valued node combined with the single value of another node.
type Pair[L, R any] struct {
	Left  L
	Right R
}

// CombineNode pairs every entry of its left upstream with the single value of its right
// upstream.
type CombineNode[L, R any] struct {
	base[Pair[L, R]]
	left  Node[L]
	right Node[R]
}

// Combine declares a node pairing each entry of left with the value of right. The right node
// must be single-valued (ValueInput, Collect or a Select over one of those).
func Combine[L, R any](p *Pipeline, name string, left Node[L], right Node[R], opts ...NodeOption[Pair[L, R]]) *CombineNode[L, R] {
	n := &CombineNode[L, R]{
		base:  newBase(p, name, domain.NodeKindCombine, cardinalityOf(left), opts, upstream(left, right)...),
		left:  left,
		right: right,
	}
	if !isNilNode(right) && right.Cardinality() != domain.One {
		p.fail(fmt.Errorf("%w: right side %q of %q is not single-valued", domain.ErrArity, right.Name(), name))
	}
	p.register(n, func(id domain.NodeID) { n.id = id })
	return n
}

// Update pulls both sides concurrently. A change on the right side recomputes every pair;
// otherwise only pairs whose left entry changed are rebuilt.
func (n *CombineNode[L, R]) Update(ctx context.Context, b *Builder, prev *table.Table[Pair[L, R]]) (*table.Table[Pair[L, R]], error) {
	var (
		left  *table.Table[L]
		right *table.Table[R]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		left, err = Latest(gctx, b, n.left)
		return err
	})
	g.Go(func() (err error) {
		right, err = Latest(gctx, b, n.right)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rv := right.Values()
	// A failed right-side callback leaves no value; its diagnostic is already recorded and
	// every pair is faulted until the right side recovers.
	rightFaulted := len(rv) == 0 && right.HasFaults()
	if len(rv) != 1 && !rightFaulted {
		return nil, fmt.Errorf("%w: %q expected one value from %q, got %d", domain.ErrArity, n.name, n.right.Name(), len(rv))
	}
	rightChanged := !right.Unchanged()

	tb := n.newTable(left.Len())
	cursor := slotCursor[Pair[L, R]]{prev: prev}
	for entry := range left.All() {
		old, hadPrev := cursor.take(entry.State)
		switch {
		case entry.State == domain.Removed:
			tb.AddFromPrevious(old, domain.Removed)
		case rightFaulted:
			tb.AddFaulted(old)
		case entry.State == domain.Cached && hadPrev && !rightChanged && !old.Faulted():
			tb.AddFromPrevious(old, domain.Cached)
		default:
			tb.AddComputed(old, []Pair[L, R]{{Left: entry.Value, Right: rv[0]}})
		}
	}
	return tb.ToImmutable(), nil
}
