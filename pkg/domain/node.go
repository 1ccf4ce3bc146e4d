package domain

import "strconv"

// NodeID identifies one node of a pipeline for the lifetime of that pipeline.
// IDs are assigned once at construction and never reused for a different node.
type NodeID uint64

func (id NodeID) String() string {
	return "n" + strconv.FormatUint(uint64(id), 10)
}

// NodeKind classifies a node by its role in the graph.
type NodeKind string

const (
	// NodeKindInput is a source node whose table is supplied by the host.
	NodeKindInput NodeKind = "input"
	// NodeKindTransform computes values from a single upstream node (map, filter, one-to-many).
	NodeKindTransform NodeKind = "transform"
	// NodeKindCombine folds several upstream entries into fewer outputs (collect, combine).
	NodeKindCombine NodeKind = "combine"
	// NodeKindOutput is a terminal, side-effecting sink.
	NodeKindOutput NodeKind = "output"
)

// Cardinality describes how many live entries a node produces per pass.
type Cardinality int

const (
	// Many nodes produce any number of entries.
	Many Cardinality = iota
	// One nodes produce exactly one entry per pass.
	One
)

func (c Cardinality) String() string {
	if c == One {
		return "one"
	}
	return "many"
}
