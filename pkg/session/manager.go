package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/incremental"
	"github.com/aretw0/tendril/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the session semaphore and the reference count.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// record is the published outcome of a session's last pass.
type record struct {
	state *incremental.DriverStateTable
	last  *incremental.PassResult
}

// Manager orchestrates passes over many sessions of one pipeline.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	runner *incremental.Runner

	mu    sync.Mutex            // Global lock for the maps
	locks map[string]*lockEntry // Map of active locks
	data  map[string]*record

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	sink    ports.ArtifactSink // Optional artifact sink
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithSink publishes the report of every successful pass.
func WithSink(sink ports.ArtifactSink) Option {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager driving passes with runner.
func NewManager(runner *incremental.Runner, opts ...Option) *Manager {
	m := &Manager{
		runner:  runner,
		locks:   make(map[string]*lockEntry),
		data:    make(map[string]*record),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST call release(sessionID) when done with the entry.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes fn while holding the lock for the session. Waiting for the lock honours
// ctx cancellation.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	defer m.release(sessionID)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.sem }()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The pass context may already be canceled; release with a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Run evaluates one pass of the session. The session is created on its first pass. On error
// the session keeps its previous state.
func (m *Manager) Run(ctx context.Context, sessionID string, deltas ...incremental.InputDelta) (*incremental.PassResult, error) {
	var res *incremental.PassResult
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		prev := m.State(sessionID)

		var err error
		res, err = m.runner.Run(ctx, prev, deltas...)
		if err != nil {
			return err
		}

		m.mu.Lock()
		m.data[sessionID] = &record{state: res.State, last: res}
		m.mu.Unlock()

		if m.sink != nil {
			report := res.Report(sessionID, m.runner.Pipeline().Name())
			if err := m.sink.Publish(ctx, report); err != nil {
				// The pass itself succeeded; its state stays published.
				return fmt.Errorf("failed to publish artifacts: %w", err)
			}
		}
		return nil
	})
	return res, err
}

// State returns the DriverStateTable of the session, or EmptyState if it has none.
func (m *Manager) State(sessionID string) *incremental.DriverStateTable {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.data[sessionID]; ok {
		return r.state
	}
	return incremental.EmptyState
}

// Last returns the result of the session's last successful pass.
func (m *Manager) Last(sessionID string) (*incremental.PassResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return r.last, nil
}

// Close discards the session. Its artifacts are removed from the sink, if any.
func (m *Manager) Close(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		_, ok := m.data[sessionID]
		delete(m.data, sessionID)
		m.mu.Unlock()
		if !ok {
			return domain.ErrSessionNotFound
		}
		if m.sink != nil {
			return m.sink.Delete(ctx, sessionID)
		}
		return nil
	})
}

// List returns the IDs of every session with a published state.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Runner returns the pass runner used by the manager.
func (m *Manager) Runner() *incremental.Runner {
	return m.runner
}
