package middleware

import "github.com/aretw0/tendril/pkg/ports"

// Middleware allows wrapping an ArtifactSink to add behavior.
type Middleware func(ports.ArtifactSink) ports.ArtifactSink

// Chain applies mws to sink so that the first middleware is the outermost one.
func Chain(sink ports.ArtifactSink, mws ...Middleware) ports.ArtifactSink {
	for i := len(mws) - 1; i >= 0; i-- {
		sink = mws[i](sink)
	}
	return sink
}
