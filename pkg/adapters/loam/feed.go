package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/loam"

	"github.com/aretw0/tendril/pkg/domain"
)

// WatchPattern selects the documents the feed reacts to by default.
const WatchPattern = "**/*.{md,json,yaml,yml}"

// Feed adapts a Loam repository to the ports.InputFeed interface.
type Feed struct {
	Repo *loam.TypedRepository[DocumentMetadata]

	// Patterns select the files whose changes are signaled by Watch.
	Patterns []string
}

// New creates a new Loam feed. Without patterns, Watch uses WatchPattern.
func New(repo *loam.TypedRepository[DocumentMetadata], patterns ...string) *Feed {
	return &Feed{
		Repo:     repo,
		Patterns: patterns,
	}
}

// Open initializes a read-only Loam repository at dir and wraps it in a feed.
func Open(dir string, patterns ...string) (*Feed, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numbers consistent across Markdown, YAML and JSON documents.
	// Read-only mode keeps Loam from creating its dev sandbox; the feed never writes.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[DocumentMetadata](repo), patterns...), nil
}

// Load lists every document of the repository ordered by ID.
// IDs come from the "id" front matter key when present, otherwise from the file path, and
// are normalized without extension.
func (f *Feed) Load(ctx context.Context) ([]domain.Document, error) {
	docs, err := f.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID

		out = append(out, domain.Document{
			ID:       id,
			Metadata: doc.Data.toMap(),
			Content:  strings.TrimSpace(doc.Content),
		})
	}
	slices.SortFunc(out, func(a, b domain.Document) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Get reads a single document by ID.
func (f *Feed) Get(ctx context.Context, id string) (domain.Document, error) {
	doc, err := f.Repo.Get(ctx, id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	rawID := doc.Data.ID
	if rawID == "" {
		rawID = doc.ID
	}
	return domain.Document{
		ID:       trimExtension(rawID),
		Metadata: doc.Data.toMap(),
		Content:  strings.TrimSpace(doc.Content),
	}, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable. Bursts of file events collapse into a single pending signal.
func (f *Feed) Watch(ctx context.Context) (<-chan struct{}, error) {
	patterns := f.Patterns
	if len(patterns) == 0 {
		patterns = []string{WatchPattern}
	}

	ch := make(chan struct{}, 1)
	var wg sync.WaitGroup
	for _, pattern := range patterns {
		events, err := f.Repo.Watch(ctx, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to start loam watcher for %q: %w", pattern, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-events:
					if !ok {
						return
					}
					// Loam debounces on its own; we only avoid queueing more than one pass.
					select {
					case ch <- struct{}{}:
					default:
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(ch)
	}()
	return ch, nil
}
