package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// Sink implements ports.ArtifactSink in memory.
// Safe for concurrent use.
type Sink struct {
	data map[string]*domain.PassReport
	mu   sync.RWMutex
}

// NewSink creates a new in-memory sink.
func NewSink() *Sink {
	return &Sink{
		data: make(map[string]*domain.PassReport),
	}
}

// Publish stores a copy of the report, replacing the previous one for the session.
func (s *Sink) Publish(ctx context.Context, report *domain.PassReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[report.Session] = clone(report)
	return nil
}

// Latest returns a copy of the last report of the session.
func (s *Sink) Latest(ctx context.Context, session string) (*domain.PassReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[session]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return clone(r), nil
}

// Delete removes the session's report.
func (s *Sink) Delete(ctx context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, session)
	return nil
}

// Sessions lists the sessions with a published report.
func (s *Sink) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func clone(r *domain.PassReport) *domain.PassReport {
	c := *r
	c.Texts = slices.Clone(r.Texts)
	c.Diagnostics = slices.Clone(r.Diagnostics)
	return &c
}
