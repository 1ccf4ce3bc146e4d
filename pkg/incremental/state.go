package incremental

import (
	"slices"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/table"
)

// DriverStateTable maps every node of a pipeline to the table it produced in the last
// completed pass. It is immutable; each pass publishes a new one.
type DriverStateTable struct {
	tables map[domain.NodeID]table.StateTable
}

// EmptyState is the state before the first pass.
var EmptyState = &DriverStateTable{}

// StateOf returns the table of node id, or an empty table if the node has none.
func StateOf[T any](s *DriverStateTable, id domain.NodeID) *table.Table[T] {
	if t, ok := s.Lookup(id); ok {
		if typed, ok := t.(*table.Table[T]); ok {
			return typed
		}
	}
	return table.Empty[T]()
}

// TableOf returns the table of node n.
func TableOf[T any](s *DriverStateTable, n Node[T]) *table.Table[T] {
	return StateOf[T](s, n.ID())
}

// Lookup returns the type-erased table of node id.
func (s *DriverStateTable) Lookup(id domain.NodeID) (table.StateTable, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.tables[id]
	return t, ok
}

// Len returns the number of nodes with a table.
func (s *DriverStateTable) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tables)
}

// NodeIDs returns the IDs of every node with a table, in ascending order.
func (s *DriverStateTable) NodeIDs() []domain.NodeID {
	if s == nil {
		return nil
	}
	ids := make([]domain.NodeID, 0, len(s.tables))
	for id := range s.tables {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Summaries describes every table without exposing values.
func (s *DriverStateTable) Summaries() map[domain.NodeID]table.Summary {
	out := make(map[domain.NodeID]table.Summary, s.Len())
	for _, id := range s.NodeIDs() {
		out[id] = s.tables[id].Summary()
	}
	return out
}
