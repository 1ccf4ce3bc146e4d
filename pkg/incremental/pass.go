package incremental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
)

// PassResult is the outcome of a completed pass.
type PassResult struct {
	PassID      string
	State       *DriverStateTable
	Texts       []domain.GeneratedText
	Diagnostics []domain.Diagnostic
	Stats       domain.PassStats
}

// HasErrors reports whether any diagnostic has error severity.
func (r *PassResult) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == domain.SeverityError {
			return true
		}
	}
	return false
}

// Report converts the result into the form published to artifact sinks.
func (r *PassResult) Report(session, pipeline string) *domain.PassReport {
	return &domain.PassReport{
		PassID:      r.PassID,
		Session:     session,
		Pipeline:    pipeline,
		FinishedAt:  time.Now().UTC(),
		Texts:       r.Texts,
		Diagnostics: r.Diagnostics,
		Stats:       r.Stats,
	}
}

// Runner evaluates passes of one pipeline with fixed options.
type Runner struct {
	pipeline    *Pipeline
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	concurrency int
	passID      func() string
}

// PassOption configures a Runner.
type PassOption func(*Runner)

// WithLogger sets the logger used for pass and node events.
func WithLogger(logger *slog.Logger) PassOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHooks adds lifecycle hooks. It can be given more than once.
func WithHooks(hooks domain.LifecycleHooks) PassOption {
	return func(r *Runner) {
		r.hooks = r.hooks.Merge(hooks)
	}
}

// WithConcurrency bounds the number of outputs evaluated at the same time. Zero or less means
// no bound.
func WithConcurrency(n int) PassOption {
	return func(r *Runner) {
		r.concurrency = n
	}
}

// WithPassID overrides the generator of pass identifiers.
func WithPassID(gen func() string) PassOption {
	return func(r *Runner) {
		if gen != nil {
			r.passID = gen
		}
	}
}

// NewRunner creates a runner for p.
func NewRunner(p *Pipeline, opts ...PassOption) *Runner {
	r := &Runner{
		pipeline: p,
		logger:   logging.NewNop(),
		passID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pipeline returns the pipeline driven by the runner.
func (r *Runner) Pipeline() *Pipeline { return r.pipeline }

// RunPass evaluates one pass of p with default options.
func RunPass(ctx context.Context, p *Pipeline, prev *DriverStateTable, deltas ...InputDelta) (*PassResult, error) {
	return NewRunner(p).Run(ctx, prev, deltas...)
}

// Run evaluates one pass starting from prev. Inputs without a delta keep their previous
// entries. On error, including cancellation, no state is returned and prev remains valid.
func (r *Runner) Run(ctx context.Context, prev *DriverStateTable, deltas ...InputDelta) (res *PassResult, err error) {
	if err := r.pipeline.Build(); err != nil {
		return nil, err
	}

	passID := r.passID()
	logger := r.logger.With("pass_id", passID, "pipeline", r.pipeline.Name())
	start := time.Now()
	evBase := domain.EventBase{Timestamp: start, PassID: passID}

	if r.hooks.OnPassStart != nil {
		ev := &domain.PassEvent{EventBase: evBase}
		ev.Type = domain.EventPassStart
		r.hooks.OnPassStart(ctx, ev)
	}
	logger.Debug("pass started", "deltas", len(deltas))
	defer func() {
		canceled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		if r.hooks.OnPassEnd != nil {
			ev := &domain.PassEvent{EventBase: evBase, Duration: time.Since(start), Err: err, Canceled: canceled}
			ev.Type = domain.EventPassEnd
			ev.Timestamp = time.Now()
			r.hooks.OnPassEnd(ctx, ev)
		}
		switch {
		case canceled:
			logger.Info("pass canceled", "error", err)
		case err != nil:
			logger.Error("pass failed", "error", err)
		default:
			logger.Info("pass completed",
				"duration", res.Stats.Duration,
				"texts", res.Stats.Texts,
				"diagnostics", res.Stats.Diagnostics,
				"invocations", res.Stats.Invocations)
		}
	}()

	b := newBuilder(r.pipeline, prev, passID, logger, r.hooks)
	for _, delta := range deltas {
		if err := delta(b); err != nil {
			return nil, fmt.Errorf("apply input: %w", err)
		}
	}

	outputs := r.pipeline.Outputs()
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for _, out := range outputs {
		g.Go(func() error {
			return out.Evaluate(gctx, b)
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ec := NewExecutionContext()
	if r.hooks.OnArtifactClash != nil {
		ec.OnClash = func(d domain.Diagnostic) { r.hooks.OnArtifactClash(ctx, &d) }
	}
	for _, out := range outputs {
		out.AppendOutputs(ec, b)
	}
	failures := b.Failures()
	for _, f := range failures {
		ec.AddDiagnostic(f.Diagnostic())
	}

	state, err := b.ToImmutable()
	if err != nil {
		return nil, err
	}
	texts, diags := ec.Texts(), ec.Diagnostics()
	return &PassResult{
		PassID:      passID,
		State:       state,
		Texts:       texts,
		Diagnostics: diags,
		Stats: domain.PassStats{
			Duration:    time.Since(start),
			Nodes:       b.Updated(),
			Invocations: b.TotalInvocations(),
			Failures:    len(failures),
			Texts:       len(texts),
			Diagnostics: len(diags),
		},
	}, nil
}
