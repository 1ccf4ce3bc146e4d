/*
Package incremental is the core of Tendril: a driver that re-evaluates a fixed graph of
transformation steps across repeated passes and recomputes only what changed.

# Concept

A Pipeline is declared once. Input nodes receive host-classified entries, transform nodes
(Select, Where, SelectMany, Collect, Combine) derive values from their upstream nodes, and
output nodes turn values into artifacts: generated texts and diagnostics.

Each pass starts from the previous DriverStateTable. The pass Builder pulls every output node,
which pulls its upstream nodes through the builder, so that every node is updated at most once
per pass. A node only invokes its callback for upstream entries that are Added or Modified;
Cached entries are carried forward and Removed entries become tombstones for one pass.

	p := incremental.NewPipeline("numbers")
	in := incremental.Input[int](p, "in")
	doubled := incremental.Select(p, "double", in, func(ctx context.Context, v int) (int, error) {
		return v * 2, nil
	})
	incremental.RegisterOutput(p, "print", doubled, func(pc *incremental.ProductionContext, v int) error {
		return pc.AddText(fmt.Sprintf("%d.txt", v), strconv.Itoa(v))
	})

	res, err := incremental.RunPass(ctx, p, incremental.EmptyState, in.Values(1, 2, 3))
	// res.State is the DriverStateTable for the next pass.

# Concurrency

Output nodes are evaluated concurrently. A node pulled by several consumers at the same time
is computed once; the others wait for the result. Cancelling the context aborts the whole pass
and no state is published.
*/
package incremental
