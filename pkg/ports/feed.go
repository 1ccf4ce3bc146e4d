package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// InputFeed defines how the host retrieves the raw documents fed to input nodes.
// This allows the storage layer (Loam, Memory) to be decoupled from pipelines.
type InputFeed interface {
	// Load returns the current snapshot of documents in a stable order.
	Load(ctx context.Context) ([]domain.Document, error)
}

// Watchable defines an interface for feeds that can notify about backend changes.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying documents change.
	// It abstracts away the specific event details, signaling only that a new pass is due.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
