package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// ArtifactSink receives the outcome of every completed pass.
type ArtifactSink interface {
	// Publish replaces the artifacts stored for report.Session.
	Publish(ctx context.Context, report *domain.PassReport) error

	// Latest returns the last report published for a session.
	// Returns domain.ErrSessionNotFound if nothing was published.
	Latest(ctx context.Context, session string) (*domain.PassReport, error)

	// Delete removes everything stored for a session.
	Delete(ctx context.Context, session string) error
}
