package incremental

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/table"
)

// Builder is the per-pass working state. It memoizes the table of every node pulled during
// the pass and publishes them as a new DriverStateTable in ToImmutable.
type Builder struct {
	pipeline *Pipeline
	prev     *DriverStateTable
	passID   string
	logger   *slog.Logger
	hooks    domain.LifecycleHooks

	flight singleflight.Group

	mu          sync.Mutex
	inputs      map[domain.NodeID]table.StateTable
	tables      map[domain.NodeID]table.StateTable
	invocations map[domain.NodeID]int
	failures    []*CallbackError
	pulled      bool
	sealed      bool
}

func newBuilder(p *Pipeline, prev *DriverStateTable, passID string, logger *slog.Logger, hooks domain.LifecycleHooks) *Builder {
	if prev == nil {
		prev = EmptyState
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{
		pipeline:    p,
		prev:        prev,
		passID:      passID,
		logger:      logger,
		hooks:       hooks,
		inputs:      make(map[domain.NodeID]table.StateTable),
		tables:      make(map[domain.NodeID]table.StateTable),
		invocations: make(map[domain.NodeID]int),
	}
}

// NewBuilder starts a pass over p from the previous state. Most callers use RunPass instead.
func NewBuilder(p *Pipeline, prev *DriverStateTable) *Builder {
	return newBuilder(p, prev, "", nil, domain.LifecycleHooks{})
}

// PassID returns the identifier of the pass this builder belongs to.
func (b *Builder) PassID() string { return b.passID }

// Previous returns the state the pass started from.
func (b *Builder) Previous() *DriverStateTable { return b.prev }

// setInput records the host-supplied table of an input node.
func (b *Builder) setInput(n AnyNode, t table.StateTable) error {
	if err := b.checkOwner(n); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return domain.ErrBuilderSealed
	}
	if b.pulled {
		return fmt.Errorf("%w: %q", domain.ErrInputAfterPull, n.Name())
	}
	b.inputs[n.ID()] = t
	return nil
}

func (b *Builder) checkOwner(n AnyNode) error {
	if o, ok := n.(owned); !ok || o.owner() != b.pipeline {
		return fmt.Errorf("%w: %q", domain.ErrForeignNode, n.Name())
	}
	return nil
}

func (b *Builder) lookup(id domain.NodeID) (table.StateTable, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[id]
	return t, ok
}

// begin marks the start of pulling. It fails once the builder is sealed.
func (b *Builder) begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return domain.ErrBuilderSealed
	}
	b.pulled = true
	return nil
}

// Latest returns the table of n for this pass, updating it at most once. Concurrent callers
// asking for the same node wait for a single evaluation.
func Latest[T any](ctx context.Context, b *Builder, n Node[T]) (*table.Table[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.checkOwner(n); err != nil {
		return nil, err
	}
	if err := b.begin(); err != nil {
		return nil, err
	}
	if t, ok := b.lookup(n.ID()); ok {
		return t.(*table.Table[T]), nil
	}

	v, err, _ := b.flight.Do(n.ID().String(), func() (any, error) {
		if t, ok := b.lookup(n.ID()); ok {
			return t, nil
		}
		start := time.Now()
		b.mu.Lock()
		supplied, isInput := b.inputs[n.ID()]
		b.mu.Unlock()

		var t *table.Table[T]
		if isInput {
			t = supplied.(*table.Table[T])
		} else {
			var err error
			t, err = n.Update(ctx, b, StateOf[T](b.prev, n.ID()))
			if err != nil {
				return nil, err
			}
		}
		b.mu.Lock()
		b.tables[n.ID()] = t
		calls := b.invocations[n.ID()]
		b.mu.Unlock()

		counts := t.Counts()
		b.logger.Debug("node updated",
			"node", n.Name(),
			"kind", n.Kind(),
			"entries", t.Len(),
			"invocations", calls,
			"duration", time.Since(start))
		if b.hooks.OnNodeUpdate != nil {
			b.hooks.OnNodeUpdate(ctx, &domain.NodeEvent{
				EventBase:   b.event(domain.EventNodeUpdate),
				NodeID:      n.ID(),
				NodeName:    n.Name(),
				Kind:        n.Kind(),
				Counts:      counts,
				Invocations: calls,
			})
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*table.Table[T]), nil
}

// call runs a user callback for the entry at pos. Errors and panics fault the entry and are
// reported as diagnostics; ok is false in that case. A non-nil error means the pass must abort.
func call[R any](ctx context.Context, b *Builder, n AnyNode, pos int, fn func(context.Context) (R, error)) (res R, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return res, false, err
	}
	b.mu.Lock()
	b.invocations[n.ID()]++
	b.mu.Unlock()

	var cbErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				cbErr = &PanicError{Value: r}
			}
		}()
		res, cbErr = fn(ctx)
	}()
	if cbErr == nil {
		return res, true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		var zero R
		return zero, false, ctxErr
	}

	failure := &CallbackError{NodeID: n.ID(), NodeName: n.Name(), Position: pos, Err: cbErr}
	b.mu.Lock()
	b.failures = append(b.failures, failure)
	b.mu.Unlock()

	b.logger.Warn("callback failed", "node", n.Name(), "position", pos, "error", cbErr)
	if b.hooks.OnCallbackFailed != nil {
		b.hooks.OnCallbackFailed(ctx, &domain.CallbackEvent{
			EventBase: b.event(domain.EventCallbackFailed),
			NodeID:    n.ID(),
			NodeName:  n.Name(),
			Position:  pos,
			Err:       cbErr,
		})
	}
	var zero R
	return zero, false, nil
}

func (b *Builder) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, PassID: b.passID}
}

// Failures returns the callback failures of the pass ordered by node and position.
func (b *Builder) Failures() []*CallbackError {
	b.mu.Lock()
	out := slices.Clone(b.failures)
	b.mu.Unlock()
	slices.SortStableFunc(out, func(x, y *CallbackError) int {
		if c := cmp.Compare(x.NodeID, y.NodeID); c != 0 {
			return c
		}
		return cmp.Compare(x.Position, y.Position)
	})
	return out
}

// Invocations returns the number of callback calls made for node id in this pass.
func (b *Builder) Invocations(id domain.NodeID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.invocations[id]
}

// TotalInvocations returns the number of callback calls made in this pass.
func (b *Builder) TotalInvocations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, c := range b.invocations {
		total += c
	}
	return total
}

// Updated returns the number of nodes whose table was produced in this pass.
func (b *Builder) Updated() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tables)
}

// ToImmutable compacts every table produced in this pass and returns the resulting state.
// Tables of nodes that were not pulled are carried over unchanged. The builder is sealed.
func (b *Builder) ToImmutable() (*DriverStateTable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return nil, domain.ErrBuilderSealed
	}
	b.sealed = true

	tables := make(map[domain.NodeID]table.StateTable, len(b.tables)+b.prev.Len())
	for id, t := range b.prev.tables {
		tables[id] = t
	}
	for id, t := range b.inputs {
		tables[id] = t.CompactState()
	}
	for id, t := range b.tables {
		tables[id] = t.CompactState()
	}
	return &DriverStateTable{tables: tables}, nil
}
