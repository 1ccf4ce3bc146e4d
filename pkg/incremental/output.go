package incremental

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/table"
)

// Output is the type-erased view of an output node, used by the pass to drive evaluation.
type Output interface {
	AnyNode
	// Evaluate pulls the output through the builder.
	Evaluate(ctx context.Context, b *Builder) error
	// AppendOutputs externalizes the artifacts of every live entry into ec.
	AppendOutputs(ec *ExecutionContext, b *Builder)
}

// Artifact is what an output callback produced for one upstream entry.
type Artifact struct {
	Texts       []domain.GeneratedText
	Diagnostics []domain.Diagnostic

	// entryRelative lists the diagnostics positioned at the producing entry. Their position
	// is recomputed whenever the artifact is externalized.
	entryRelative []int
}

// ProductionContext is handed to output callbacks to collect their artifacts.
type ProductionContext struct {
	ctx      context.Context
	node     AnyNode
	position int
	artifact Artifact
}

// Context returns the pass context. Long-running callbacks should honour its cancellation.
func (pc *ProductionContext) Context() context.Context { return pc.ctx }

// AddText records a generated text. Hint names must be relative slash-separated paths.
func (pc *ProductionContext) AddText(hint, text string) error {
	if err := domain.ValidateHintName(hint); err != nil {
		return err
	}
	pc.artifact.Texts = append(pc.artifact.Texts, domain.GeneratedText{HintName: hint, Text: text})
	return nil
}

// ReportDiagnostic records a diagnostic. Diagnostics without attribution are attributed to the
// output node and the entry being processed.
func (pc *ProductionContext) ReportDiagnostic(d domain.Diagnostic) {
	if d.NodeID == 0 {
		d.NodeID = pc.node.ID()
		d.NodeName = pc.node.Name()
		d.Position = pc.position
		pc.artifact.entryRelative = append(pc.artifact.entryRelative, len(pc.artifact.Diagnostics))
	}
	if d.Severity == "" {
		d.Severity = domain.SeverityInfo
	}
	pc.artifact.Diagnostics = append(pc.artifact.Diagnostics, d)
}

// OutputNode runs a side-effect-free action over every entry of its upstream node and keeps
// the resulting artifacts.
type OutputNode[T any] struct {
	base[Artifact]
	src    Node[T]
	action func(*ProductionContext, T) error
}

// RegisterOutput declares an output node over src.
func RegisterOutput[T any](p *Pipeline, name string, src Node[T], action func(*ProductionContext, T) error) *OutputNode[T] {
	n := &OutputNode[T]{
		base:   newBase[Artifact](p, name, domain.NodeKindOutput, cardinalityOf(src), nil, upstream(src)...),
		src:    src,
		action: action,
	}
	p.register(n, func(id domain.NodeID) { n.id = id })
	return n
}

// Update invokes the action for Added and Modified entries. Artifacts of Cached entries are
// carried forward and those of Removed entries are dropped.
func (n *OutputNode[T]) Update(ctx context.Context, b *Builder, prev *table.Table[Artifact]) (*table.Table[Artifact], error) {
	up, err := Latest(ctx, b, n.src)
	if err != nil {
		return nil, err
	}

	tb := n.newTable(up.Len())
	cursor := slotCursor[Artifact]{prev: prev}
	pos := 0
	for entry := range up.All() {
		old, hadPrev := cursor.take(entry.State)
		switch {
		case entry.State == domain.Removed:
			tb.AddFromPrevious(old, domain.Removed)
			continue
		case entry.State == domain.Cached && hadPrev && !old.Faulted():
			tb.AddFromPrevious(old, domain.Cached)
		default:
			art, ok, err := call(ctx, b, n, pos, func(ctx context.Context) (Artifact, error) {
				pc := &ProductionContext{ctx: ctx, node: n, position: pos}
				if err := n.action(pc, entry.Value); err != nil {
					return Artifact{}, err
				}
				return pc.artifact, nil
			})
			if err != nil {
				return nil, err
			}
			if !ok {
				tb.AddFaulted(old)
			} else {
				tb.AddEntries([]Artifact{art}, domain.Added)
			}
		}
		pos++
	}
	return tb.ToImmutable(), nil
}

// Evaluate implements Output.
func (n *OutputNode[T]) Evaluate(ctx context.Context, b *Builder) error {
	if _, err := Latest(ctx, b, n); err != nil {
		return fmt.Errorf("output %q: %w", n.name, err)
	}
	return nil
}

// AppendOutputs implements Output. Entries are visited in table order, and diagnostics
// positioned at their entry are given the entry's current index.
func (n *OutputNode[T]) AppendOutputs(ec *ExecutionContext, b *Builder) {
	st, ok := b.lookup(n.id)
	if !ok {
		return
	}
	t := st.(*table.Table[Artifact])
	live := 0
	for i := range t.SlotCount() {
		slot, _ := t.Slot(i)
		if slot.Removed() {
			continue
		}
		for j := range slot.Len() {
			art, state := slot.Item(j)
			if state == domain.Removed {
				continue
			}
			for _, text := range art.Texts {
				ec.AddText(n, text)
			}
			for k, d := range art.Diagnostics {
				if slices.Contains(art.entryRelative, k) {
					d.Position = live
				}
				ec.AddDiagnostic(d)
			}
		}
		live++
	}
}
