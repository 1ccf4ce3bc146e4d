package tendril_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/incremental"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/ports"
)

func counter() (*incremental.Pipeline, *incremental.InputNode[int]) {
	p := incremental.NewPipeline("counter")
	in := incremental.Input[int](p, "in")
	incremental.RegisterOutput(p, "out", in, func(pc *incremental.ProductionContext, v int) error {
		return pc.AddText(strconv.Itoa(v)+".txt", strconv.Itoa(v))
	})
	return p, in
}

func TestNew_InvalidPipeline(t *testing.T) {
	p := incremental.NewPipeline("empty")
	incremental.Input[int](p, "in")
	_, err := tendril.New(p)
	assert.ErrorIs(t, err, domain.ErrNoOutputs)
}

func TestDriver_StateLifecycle(t *testing.T) {
	p, in := counter()
	drv, err := tendril.New(p)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Same(t, incremental.EmptyState, drv.State())
	assert.Nil(t, drv.Last())

	res, err := drv.RunPass(ctx, in.Values(1, 2))
	require.NoError(t, err)
	assert.Same(t, res.State, drv.State())
	assert.Same(t, res, drv.Last())

	require.NoError(t, drv.Reset(ctx))
	assert.Same(t, incremental.EmptyState, drv.State())
	require.NoError(t, drv.Reset(ctx), "reset is idempotent")

	// After a reset the input is new again, so everything is Added.
	res, err = drv.RunPass(ctx, in.Values(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []domain.EntryState{domain.Added, domain.Added}, incremental.TableOf(res.State, in).States())
}

func TestDriver_CanceledPassKeepsState(t *testing.T) {
	p, in := counter()
	drv, err := tendril.New(p)
	require.NoError(t, err)

	first, err := drv.RunPass(context.Background(), in.Values(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = drv.RunPass(ctx, in.Values(2))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Same(t, first.State, drv.State())
}

func TestDriver_MetricsHooksAndSink(t *testing.T) {
	p, in := counter()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	sink := memory.NewSink()
	var ended int
	drv, err := tendril.New(p,
		tendril.WithMetrics(metrics),
		tendril.WithSink(sink),
		tendril.WithSession("docs"),
		tendril.WithConcurrency(2),
		tendril.WithLifecycleHooks(domain.LifecycleHooks{
			OnPassEnd: func(context.Context, *domain.PassEvent) { ended++ },
		}),
	)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = drv.RunPass(ctx, in.Values(1, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, 1, ended)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Passes.WithLabelValues("ok")))

	report, err := sink.Latest(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "counter", report.Pipeline)
	assert.Len(t, report.Texts, 3)
}

type slowLocker struct{ delay time.Duration }

func (l slowLocker) Lock(ctx context.Context, _ string, _ time.Duration) (ports.UnlockFunc, error) {
	select {
	case <-time.After(l.delay):
		return func(context.Context) error { return nil }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestDriver_LockerTimeout(t *testing.T) {
	p, in := counter()
	drv, err := tendril.New(p, tendril.WithLocker(slowLocker{delay: time.Second}, time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = drv.RunPass(ctx, in.Values(1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
