package incremental

import (
	"context"
	"reflect"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/table"
)

// AnyNode is the type-erased view of a node, used for validation and introspection.
type AnyNode interface {
	ID() domain.NodeID
	Name() string
	Kind() domain.NodeKind
	Cardinality() domain.Cardinality
	Upstream() []AnyNode
}

// Node produces a table of T values each pass.
//
// Update must not cache results on the node itself: nodes are shared across passes and the
// only memoization is the one done by the Builder.
type Node[T any] interface {
	AnyNode
	Update(ctx context.Context, b *Builder, prev *table.Table[T]) (*table.Table[T], error)
}

// NodeOption configures a node producing T values.
type NodeOption[T any] func(*nodeConfig[T])

type nodeConfig[T any] struct {
	cmp table.Comparer[T]
}

// WithComparer overrides the equality used to decide whether a recomputed value is Cached.
func WithComparer[T any](cmp table.Comparer[T]) NodeOption[T] {
	return func(c *nodeConfig[T]) {
		c.cmp = cmp
	}
}

// base carries the identity shared by every node implementation.
type base[T any] struct {
	id       domain.NodeID
	name     string
	kind     domain.NodeKind
	card     domain.Cardinality
	pipeline *Pipeline
	upstream []AnyNode
	cmp      table.Comparer[T]
}

func newBase[T any](p *Pipeline, name string, kind domain.NodeKind, card domain.Cardinality, opts []NodeOption[T], upstream ...AnyNode) base[T] {
	cfg := nodeConfig[T]{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.cmp == nil {
		cfg.cmp = table.DefaultComparer[T]()
	}
	return base[T]{
		name:     name,
		kind:     kind,
		card:     card,
		pipeline: p,
		upstream: upstream,
		cmp:      cfg.cmp,
	}
}

func (n *base[T]) ID() domain.NodeID               { return n.id }
func (n *base[T]) Name() string                    { return n.name }
func (n *base[T]) Kind() domain.NodeKind           { return n.kind }
func (n *base[T]) Cardinality() domain.Cardinality { return n.card }
func (n *base[T]) Upstream() []AnyNode             { return n.upstream }
func (n *base[T]) owner() *Pipeline                { return n.pipeline }

func (n *base[T]) newTable(capacity int) *table.Builder[T] {
	return table.NewBuilder(n.cmp, capacity)
}

type owned interface {
	owner() *Pipeline
}

// slotCursor consumes the next slot of prev for every upstream entry that existed in the
// previous pass. Added entries have no previous slot.
type slotCursor[T any] struct {
	prev *table.Table[T]
	next int
}

func (c *slotCursor[T]) take(state domain.EntryState) (table.Slot[T], bool) {
	if state == domain.Added {
		return table.Slot[T]{}, false
	}
	s, ok := c.prev.Slot(c.next)
	c.next++
	return s, ok
}

func isNilNode(n AnyNode) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
