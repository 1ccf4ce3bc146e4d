package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// Feed implements ports.InputFeed and ports.Watchable over an in-memory set of documents.
// Safe for concurrent use.
type Feed struct {
	mu       sync.RWMutex
	docs     map[string]domain.Document
	watchers []chan struct{}
}

// NewFeed creates a feed holding the given documents.
func NewFeed(docs ...domain.Document) *Feed {
	f := &Feed{docs: make(map[string]domain.Document, len(docs))}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

// Load returns the documents ordered by ID.
func (f *Feed) Load(ctx context.Context) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]domain.Document, 0, len(f.docs))
	for _, id := range slices.Sorted(maps.Keys(f.docs)) {
		out = append(out, f.docs[id])
	}
	return out, nil
}

// Put adds or replaces a document and notifies watchers.
func (f *Feed) Put(doc domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document missing ID")
	}
	f.mu.Lock()
	f.docs[doc.ID] = doc
	f.mu.Unlock()
	f.notify()
	return nil
}

// Remove deletes a document and notifies watchers.
func (f *Feed) Remove(id string) {
	f.mu.Lock()
	delete(f.docs, id)
	f.mu.Unlock()
	f.notify()
}

// Watch returns a channel signaled after every Put or Remove. The channel is closed when
// ctx is done.
func (f *Feed) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	f.mu.Lock()
	f.watchers = append(f.watchers, ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		f.watchers = slices.DeleteFunc(f.watchers, func(c chan struct{}) bool { return c == ch })
		close(ch)
	}()
	return ch, nil
}

func (f *Feed) notify() {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.watchers {
		select {
		case ch <- struct{}{}:
		default: // a signal is already pending
		}
	}
}
