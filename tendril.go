package tendril

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/incremental"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/session"
)

// Version is the release of the driver.
const Version = "0.3.0"

// DefaultSession names the session owned by a Driver.
const DefaultSession = "default"

// Driver is the high-level entry point for the Tendril library.
// It owns the DriverStateTable of one pipeline and serializes its passes.
type Driver struct {
	pipeline    *incremental.Pipeline
	manager     *session.Manager
	session     string
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	metrics     *observability.Metrics
	concurrency int
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	sink        ports.ArtifactSink
}

// Option defines a functional option for configuring the Driver.
type Option func(*Driver)

// WithLifecycleHooks registers observability hooks. It can be given more than once.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Driver) {
		d.hooks = d.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the driver.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithMetrics records every pass into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithConcurrency bounds the number of outputs evaluated at the same time.
func WithConcurrency(n int) Option {
	return func(d *Driver) {
		d.concurrency = n
	}
}

// WithLocker serializes passes across processes sharing the same session name.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(d *Driver) {
		d.locker = locker
		d.lockTTL = ttl
	}
}

// WithSink publishes the artifacts of every successful pass.
func WithSink(sink ports.ArtifactSink) Option {
	return func(d *Driver) {
		d.sink = sink
	}
}

// WithSession names the session (default: "default"). The name keys distributed locks and
// sink entries.
func WithSession(name string) Option {
	return func(d *Driver) {
		d.session = name
	}
}

// New validates p and creates a driver for it.
func New(p *incremental.Pipeline, opts ...Option) (*Driver, error) {
	if err := p.Build(); err != nil {
		return nil, err
	}

	d := &Driver{pipeline: p, session: DefaultSession}
	for _, opt := range opts {
		opt(d)
	}

	// Ensure logger is initialized (so we don't pass nil down the stack)
	if d.logger == nil {
		d.logger = logging.NewNop()
	}
	d.logger = d.logger.With("pipeline", p.Name(), "session", d.session)

	hooks := d.hooks
	if d.metrics != nil {
		hooks = d.metrics.Hooks().Merge(hooks)
	}
	runner := incremental.NewRunner(p,
		incremental.WithLogger(d.logger),
		incremental.WithHooks(hooks),
		incremental.WithConcurrency(d.concurrency),
	)

	managerOpts := []session.Option{session.WithLogger(d.logger)}
	if d.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(d.locker, d.lockTTL))
	}
	if d.sink != nil {
		managerOpts = append(managerOpts, session.WithSink(d.sink))
	}
	d.manager = session.NewManager(runner, managerOpts...)
	return d, nil
}

// RunPass evaluates one pass with the given input deltas. Passes are serialized: a call waits
// for the running pass, or returns ctx.Err() if ctx ends first. On error the driver keeps its
// previous state.
func (d *Driver) RunPass(ctx context.Context, deltas ...incremental.InputDelta) (*incremental.PassResult, error) {
	res, err := d.manager.Run(ctx, d.session, deltas...)
	if err != nil {
		if res != nil {
			return res, err
		}
		return nil, fmt.Errorf("pass of %q: %w", d.pipeline.Name(), err)
	}
	return res, nil
}

// State returns the DriverStateTable published by the last successful pass.
func (d *Driver) State() *incremental.DriverStateTable {
	return d.manager.State(d.session)
}

// Last returns the result of the last successful pass, or nil before the first one.
func (d *Driver) Last() *incremental.PassResult {
	res, err := d.manager.Last(d.session)
	if err != nil {
		return nil
	}
	return res
}

// Reset discards the state; the next pass recomputes everything.
func (d *Driver) Reset(ctx context.Context) error {
	err := d.manager.Close(ctx, d.session)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}

// Pipeline returns the pipeline driven by d.
func (d *Driver) Pipeline() *incremental.Pipeline {
	return d.pipeline
}
