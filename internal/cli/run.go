package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/tendril/internal/presentation/graph"
)

// ErrDiagnostics is returned by RunOnce in strict mode when a pass reported errors.
var ErrDiagnostics = errors.New("pass reported error diagnostics")

// RunOnce runs a single pass. In strict mode, error diagnostics fail the command.
func (a *App) RunOnce(ctx context.Context, strict bool) error {
	res, err := a.Pass(ctx)
	if err != nil {
		return err
	}
	if strict && res.HasErrors() {
		return ErrDiagnostics
	}
	return nil
}

// Graph writes the Mermaid diagram of the pipeline. With a pass, nodes carry its outcome.
func (a *App) Graph(ctx context.Context, w io.Writer, withPass bool) error {
	var overlay *graph.GraphOverlay
	if withPass {
		docs, err := a.Feed.Load(ctx)
		if err != nil {
			return fmt.Errorf("load documents: %w", err)
		}
		res, err := a.Driver.RunPass(ctx, a.Pipeline.Feed(docs))
		if err != nil {
			return err
		}
		overlay = graph.OverlayOf(res.State)
	}
	_, err := io.WriteString(w, graph.GenerateMermaid(a.Pipeline.Nodes(), overlay))
	return err
}
