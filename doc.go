/*
Package tendril is an incremental computation driver: it re-evaluates a fixed pipeline of
transformation steps across repeated passes and recomputes only what changed.

The pipeline is declared once with package incremental. Every pass receives the input entries
that changed, reuses what was computed before for everything else, and produces generated
texts and diagnostics.

# Key Features

  - Fine-grained caching: callbacks only run for Added and Modified entries.
  - Deterministic results: outputs are appended in registration order, entries in table order.
  - Failure isolation: a failing callback faults its entry only and is retried on the next pass.
  - Pluggable surroundings: Prometheus metrics, Redis artifact sinks and locks, Loam document feeds.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/tendril"
		"github.com/aretw0/tendril/pkg/incremental"
	)

	func main() {
		p := incremental.NewPipeline("greetings")
		names := incremental.Input[string](p, "names")
		incremental.RegisterOutput(p, "greet", names, func(pc *incremental.ProductionContext, name string) error {
			return pc.AddText(name+".txt", "Hello, "+name)
		})

		drv, err := tendril.New(p)
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		res, err := drv.RunPass(ctx, names.Values("ada", "grace"))
		if err != nil {
			log.Fatal(err)
		}
		for _, t := range res.Texts {
			fmt.Println(t.HintName)
		}

		// Nothing changed: no callback runs, the same texts come back.
		res, err = drv.RunPass(ctx)
		if err != nil {
			log.Fatal(err)
		}
	}
*/
package tendril
