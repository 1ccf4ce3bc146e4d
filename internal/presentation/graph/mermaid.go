package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/incremental"
	"github.com/aretw0/tendril/pkg/table"
)

// GraphOverlay contains the outcome of a pass to visualize on the graph.
type GraphOverlay struct {
	Summaries map[domain.NodeID]table.Summary
}

// OverlayOf builds an overlay from a published state. A nil state yields a nil overlay.
func OverlayOf(s *incremental.DriverStateTable) *GraphOverlay {
	if s == nil || s.Len() == 0 {
		return nil
	}
	return &GraphOverlay{Summaries: s.Summaries()}
}

// GenerateMermaid produces a Mermaid flowchart of the pipeline DAG.
// It applies semantic styling:
// - Input: [/Parallelogram/]
// - Combine: {{Hexagon}}
// - Output: [[Subroutine]]
// - Transform: [Rectangle]
// Edges into a node that requires a single value are dotted.
// With an overlay, nodes are annotated with their entry counts and classed as changed,
// cached or faulted.
func GenerateMermaid(nodes []incremental.AnyNode, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range nodes {
		safeID := node.ID().String()

		opener, closer := "[", "]"
		switch node.Kind() {
		case domain.NodeKindInput:
			opener, closer = "[/", "/]"
		case domain.NodeKindCombine:
			opener, closer = "{{", "}}"
		case domain.NodeKindOutput:
			opener, closer = "[[", "]]"
		}

		label := escape(node.Name())
		if node.Cardinality() == domain.One && node.Kind() != domain.NodeKindOutput {
			label += " (one)"
		}
		if overlay != nil {
			if sum, ok := overlay.Summaries[node.ID()]; ok {
				label += fmt.Sprintf(" <br/> %d entries", sum.Entries)
			}
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		for i, up := range node.Upstream() {
			arrow := "-->"
			if i > 0 && up.Cardinality() == domain.One {
				arrow = "-.->"
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", up.ID().String(), arrow, safeID)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef changed fill:#ffeb3b,stroke:#fbc02d,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef cached fill:#e1f5fe,stroke:#01579b,stroke-width:1px,color:#000;\n")
		sb.WriteString("    classDef faulted fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		for _, node := range nodes {
			sum, ok := overlay.Summaries[node.ID()]
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", node.ID().String(), classOf(sum))
		}
	}

	return sb.String()
}

func classOf(sum table.Summary) string {
	switch {
	case sum.Faulted > 0:
		return "faulted"
	case sum.Counts[domain.Added]+sum.Counts[domain.Modified]+sum.Counts[domain.Removed] > 0:
		return "changed"
	default:
		return "cached"
	}
}

// escape replaces double quotes so names cannot break the Mermaid label.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
