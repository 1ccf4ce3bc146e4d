package incremental_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/incremental"
)

type doubler struct {
	p     *incremental.Pipeline
	in    *incremental.InputNode[int]
	sel   *incremental.TransformNode[int, int]
	out   *incremental.OutputNode[int]
	calls atomic.Int32
	fail  map[int]error
}

// newDoubler builds in -> double -> "<v>.txt" outputs.
func newDoubler() *doubler {
	d := &doubler{p: incremental.NewPipeline("doubler"), fail: map[int]error{}}
	d.in = incremental.Input[int](d.p, "in")
	d.sel = incremental.Select(d.p, "double", d.in, func(_ context.Context, v int) (int, error) {
		d.calls.Add(1)
		if err, ok := d.fail[v]; ok {
			return 0, err
		}
		return v * 2, nil
	})
	d.out = incremental.RegisterOutput(d.p, "write", d.sel, func(pc *incremental.ProductionContext, v int) error {
		return pc.AddText(fmt.Sprintf("%d.txt", v), strconv.Itoa(v))
	})
	return d
}

func hints(res *incremental.PassResult) []string {
	out := make([]string, 0, len(res.Texts))
	for _, t := range res.Texts {
		out = append(out, t.HintName)
	}
	return out
}

func TestRunPass_FirstPass(t *testing.T) {
	d := newDoubler()
	res, err := incremental.RunPass(context.Background(), d.p, incremental.EmptyState, d.in.Values(1, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, []string{"2.txt", "4.txt", "6.txt"}, hints(res))
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, int32(3), d.calls.Load())
	assert.NotEmpty(t, res.PassID)
	assert.Equal(t, 3, res.Stats.Nodes)

	sel := incremental.TableOf(res.State, d.sel)
	assert.Equal(t, []int{2, 4, 6}, sel.Values())
	assert.Equal(t, []domain.EntryState{domain.Added, domain.Added, domain.Added}, sel.States())
}

func TestRunPass_PositionalDiff(t *testing.T) {
	d := newDoubler()
	ctx := context.Background()
	first, err := incremental.RunPass(ctx, d.p, incremental.EmptyState, d.in.Values(1, 2, 3))
	require.NoError(t, err)

	d.calls.Store(0)
	second, err := incremental.RunPass(ctx, d.p, first.State, d.in.Values(1, 2, 4))
	require.NoError(t, err)

	in := incremental.TableOf(second.State, d.in)
	assert.Equal(t, []domain.EntryState{domain.Cached, domain.Cached, domain.Modified}, in.States())

	sel := incremental.TableOf(second.State, d.sel)
	assert.Equal(t, []int{2, 4, 8}, sel.Values())
	assert.Equal(t, []domain.EntryState{domain.Cached, domain.Cached, domain.Modified}, sel.States())
	assert.Equal(t, int32(1), d.calls.Load(), "only the modified entry is recomputed")
	assert.Equal(t, []string{"2.txt", "4.txt", "8.txt"}, hints(second))
}

func TestRunPass_Idempotent(t *testing.T) {
	d := newDoubler()
	ctx := context.Background()
	first, err := incremental.RunPass(ctx, d.p, incremental.EmptyState, d.in.Values(1, 2, 3))
	require.NoError(t, err)

	d.calls.Store(0)
	second, err := incremental.RunPass(ctx, d.p, first.State)
	require.NoError(t, err)

	assert.Zero(t, d.calls.Load())
	assert.Zero(t, second.Stats.Invocations)
	assert.Equal(t, first.Texts, second.Texts)
	for _, id := range second.State.NodeIDs() {
		sum := second.State.Summaries()[id]
		assert.Equal(t, sum.Entries, sum.Counts[domain.Cached], "node %s", id)
	}

	// Supplying identical values is equivalent to supplying none.
	third, err := incremental.RunPass(ctx, d.p, second.State, d.in.Values(1, 2, 3))
	require.NoError(t, err)
	assert.Zero(t, d.calls.Load())
	assert.Equal(t, first.Texts, third.Texts)
}

func TestRunPass_RemovalPropagatesThenDisappears(t *testing.T) {
	d := newDoubler()
	ctx := context.Background()

	var mu sync.Mutex
	removed := map[string]int{}
	runner := incremental.NewRunner(d.p, incremental.WithHooks(domain.LifecycleHooks{
		OnNodeUpdate: func(_ context.Context, e *domain.NodeEvent) {
			mu.Lock()
			defer mu.Unlock()
			removed[e.NodeName] = e.Counts[domain.Removed]
		},
	}))

	first, err := runner.Run(ctx, incremental.EmptyState, d.in.Values(1, 2, 3))
	require.NoError(t, err)

	second, err := runner.Run(ctx, first.State, d.in.Values(1, 2))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"in": 1, "double": 1, "write": 1}, removed)
	assert.Equal(t, []string{"2.txt", "4.txt"}, hints(second))
	assert.Equal(t, 2, incremental.TableOf(second.State, d.sel).Len(), "tombstones are compacted away")

	third, err := runner.Run(ctx, second.State)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"in": 0, "double": 0, "write": 0}, removed)
	assert.Equal(t, []string{"2.txt", "4.txt"}, hints(third))
}

func TestRunPass_SingleEvaluationPerNode(t *testing.T) {
	p := incremental.NewPipeline("shared")
	in := incremental.Input[int](p, "in")
	var calls atomic.Int32
	shared := incremental.Select(p, "shared", in, func(_ context.Context, v int) (string, error) {
		calls.Add(1)
		return strconv.Itoa(v), nil
	})
	for i := range 4 {
		incremental.RegisterOutput(p, fmt.Sprintf("out%d", i), shared, func(pc *incremental.ProductionContext, s string) error {
			return pc.AddText(fmt.Sprintf("%d/%s.txt", i, s), s)
		})
	}

	var mu sync.Mutex
	updates := map[string]int{}
	runner := incremental.NewRunner(p, incremental.WithHooks(domain.LifecycleHooks{
		OnNodeUpdate: func(_ context.Context, e *domain.NodeEvent) {
			mu.Lock()
			defer mu.Unlock()
			updates[e.NodeName]++
		},
	}))

	res, err := runner.Run(context.Background(), incremental.EmptyState, in.Values(1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, int32(5), calls.Load())
	assert.Len(t, res.Texts, 20)
	for name, n := range updates {
		assert.Equal(t, 1, n, "node %s updated more than once", name)
	}
	assert.Len(t, updates, 6)
}

func TestRunPass_CallbackFailureIsolation(t *testing.T) {
	d := newDoubler()
	d.fail[2] = errors.New("boom")
	ctx := context.Background()

	first, err := incremental.RunPass(ctx, d.p, incremental.EmptyState, d.in.Values(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"2.txt", "6.txt"}, hints(first))
	require.Len(t, first.Diagnostics, 1)
	diag := first.Diagnostics[0]
	assert.Equal(t, domain.SeverityError, diag.Severity)
	assert.Equal(t, domain.CodeCallbackFailure, diag.Code)
	assert.Equal(t, "double", diag.NodeName)
	assert.Equal(t, 1, diag.Position)
	assert.True(t, first.HasErrors())

	// The failed entry is retried even though its input is unchanged.
	d.calls.Store(0)
	second, err := incremental.RunPass(ctx, d.p, first.State)
	require.NoError(t, err)
	assert.Equal(t, int32(1), d.calls.Load())
	assert.Len(t, second.Diagnostics, 1)

	delete(d.fail, 2)
	third, err := incremental.RunPass(ctx, d.p, second.State)
	require.NoError(t, err)
	assert.Empty(t, third.Diagnostics)
	assert.Equal(t, []string{"2.txt", "4.txt", "6.txt"}, hints(third))
	assert.Equal(t,
		[]domain.EntryState{domain.Cached, domain.Added, domain.Cached},
		incremental.TableOf(third.State, d.sel).States())
}

func TestRunPass_PanicIsRecovered(t *testing.T) {
	p := incremental.NewPipeline("panics")
	in := incremental.Input[string](p, "in")
	incremental.RegisterOutput(p, "out", in, func(pc *incremental.ProductionContext, s string) error {
		if s == "bad" {
			panic("unexpected value")
		}
		return pc.AddText(s+".txt", s)
	})

	var failures []*domain.CallbackEvent
	runner := incremental.NewRunner(p, incremental.WithHooks(domain.LifecycleHooks{
		OnCallbackFailed: func(_ context.Context, e *domain.CallbackEvent) {
			failures = append(failures, e)
		},
	}), incremental.WithConcurrency(1))

	res, err := runner.Run(context.Background(), incremental.EmptyState, in.Values("a", "bad", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "c.txt"}, hints(res))
	require.Len(t, failures, 1)

	var pe *incremental.PanicError
	require.ErrorAs(t, failures[0].Err, &pe)
	assert.Equal(t, "unexpected value", pe.Value)
	assert.Contains(t, res.Diagnostics[0].Message, "callback panicked")
}

func TestRunPass_Cancellation(t *testing.T) {
	d := newDoubler()
	ctx, cancel := context.WithCancel(context.Background())
	first, err := incremental.RunPass(ctx, d.p, incremental.EmptyState, d.in.Values(1, 2, 3))
	require.NoError(t, err)

	cancel()
	res, err := incremental.RunPass(ctx, d.p, first.State, d.in.Values(4, 5, 6))
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)

	// The previous state is still usable.
	again, err := incremental.RunPass(context.Background(), d.p, first.State)
	require.NoError(t, err)
	assert.Equal(t, first.Texts, again.Texts)
}

func TestRunPass_CancelledByCallback(t *testing.T) {
	p := incremental.NewPipeline("cancel")
	in := incremental.Input[int](p, "in")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	incremental.RegisterOutput(p, "out", in, func(pc *incremental.ProductionContext, v int) error {
		if v == 2 {
			cancel()
			return pc.Context().Err()
		}
		return pc.AddText(strconv.Itoa(v), "")
	})

	_, err := incremental.NewRunner(p, incremental.WithConcurrency(1)).Run(ctx, incremental.EmptyState, in.Values(1, 2, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunPass_DuplicateHint(t *testing.T) {
	p := incremental.NewPipeline("clash")
	in := incremental.Input[string](p, "in")
	incremental.RegisterOutput(p, "first", in, func(pc *incremental.ProductionContext, s string) error {
		return pc.AddText("same.txt", "first:"+s)
	})
	incremental.RegisterOutput(p, "second", in, func(pc *incremental.ProductionContext, s string) error {
		return pc.AddText("Same.txt", "second:"+s)
	})

	var clashes atomic.Int32
	runner := incremental.NewRunner(p, incremental.WithHooks(domain.LifecycleHooks{
		OnArtifactClash: func(context.Context, *domain.Diagnostic) { clashes.Add(1) },
	}))
	res, err := runner.Run(context.Background(), incremental.EmptyState, in.Values("x"))
	require.NoError(t, err)

	require.Len(t, res.Texts, 1)
	assert.Equal(t, "first:x", res.Texts[0].Text)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, domain.CodeDuplicateHint, res.Diagnostics[0].Code)
	assert.Equal(t, domain.SeverityWarning, res.Diagnostics[0].Severity)
	assert.Contains(t, res.Diagnostics[0].Message, `"first"`)
	assert.Equal(t, int32(1), clashes.Load())
}

func TestRunPass_InvalidHintFaultsEntry(t *testing.T) {
	p := incremental.NewPipeline("hints")
	in := incremental.Input[string](p, "in")
	incremental.RegisterOutput(p, "out", in, func(pc *incremental.ProductionContext, s string) error {
		return pc.AddText(s, s)
	})

	res, err := incremental.RunPass(context.Background(), p, incremental.EmptyState, in.Values("ok.txt", "../escape.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.txt"}, hints(res))
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].Message, domain.ErrInvalidHint.Error())
}

func TestRunPass_ReportedDiagnostics(t *testing.T) {
	p := incremental.NewPipeline("diags")
	in := incremental.Input[string](p, "in")
	incremental.RegisterOutput(p, "lint", in, func(pc *incremental.ProductionContext, s string) error {
		if s == "" {
			pc.ReportDiagnostic(domain.Warningf("DOC001", "empty value"))
		}
		return nil
	})

	ctx := context.Background()
	first, err := incremental.RunPass(ctx, p, incremental.EmptyState, in.Values("a", ""))
	require.NoError(t, err)
	require.Len(t, first.Diagnostics, 1)
	assert.Equal(t, "lint", first.Diagnostics[0].NodeName)
	assert.Equal(t, 1, first.Diagnostics[0].Position)

	// Cached artifacts keep their diagnostics.
	second, err := incremental.RunPass(ctx, p, first.State)
	require.NoError(t, err)
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
}

func TestKeyedInput_InsertDoesNotShift(t *testing.T) {
	d := newDoubler()
	ctx := context.Background()
	key := strconv.Itoa

	first, err := incremental.RunPass(ctx, d.p, incremental.EmptyState, d.in.Keyed(key, 1, 2, 3))
	require.NoError(t, err)

	d.calls.Store(0)
	second, err := incremental.RunPass(ctx, d.p, first.State, d.in.Keyed(key, 0, 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, int32(1), d.calls.Load())
	assert.Equal(t,
		[]domain.EntryState{domain.Added, domain.Cached, domain.Cached, domain.Cached},
		incremental.TableOf(second.State, d.in).States())
	assert.Equal(t, []string{"0.txt", "2.txt", "4.txt", "6.txt"}, hints(second))
}

func TestInput_SetState(t *testing.T) {
	d := newDoubler()
	ctx := context.Background()
	first, err := incremental.RunPass(ctx, d.p, incremental.EmptyState, d.in.Entries(
		domain.NewEntry(1, domain.Added),
		domain.NewEntry(2, domain.Added),
	))
	require.NoError(t, err)

	_, err = incremental.RunPass(ctx, d.p, first.State, d.in.Entries(domain.NewEntry(1, domain.Cached)))
	assert.ErrorIs(t, err, domain.ErrMisalignedInput)

	d.calls.Store(0)
	second, err := incremental.RunPass(ctx, d.p, first.State, d.in.Entries(
		domain.NewEntry(1, domain.Cached),
		domain.NewEntry(5, domain.Modified),
	))
	require.NoError(t, err)
	assert.Equal(t, int32(1), d.calls.Load())
	assert.Equal(t, []string{"2.txt", "10.txt"}, hints(second))
}

func TestBuilder_InputAfterPull(t *testing.T) {
	d := newDoubler()
	ctx := context.Background()
	b := incremental.NewBuilder(d.p, incremental.EmptyState)

	_, err := incremental.Latest(ctx, b, d.sel)
	require.NoError(t, err)
	assert.ErrorIs(t, d.in.SetValues(b, []int{1}), domain.ErrInputAfterPull)

	_, err = b.ToImmutable()
	require.NoError(t, err)
	_, err = incremental.Latest(ctx, b, d.sel)
	assert.ErrorIs(t, err, domain.ErrBuilderSealed)
	_, err = b.ToImmutable()
	assert.ErrorIs(t, err, domain.ErrBuilderSealed)
}

func TestBuilder_ForeignNode(t *testing.T) {
	d := newDoubler()
	other := newDoubler()
	b := incremental.NewBuilder(d.p, incremental.EmptyState)
	_, err := incremental.Latest(context.Background(), b, other.sel)
	assert.ErrorIs(t, err, domain.ErrForeignNode)
	assert.ErrorIs(t, other.in.SetValues(b, []int{1}), domain.ErrForeignNode)
}

func TestCollect(t *testing.T) {
	p := incremental.NewPipeline("collect")
	in := incremental.Input[string](p, "in")
	all := incremental.Collect(p, "all", in)
	var calls atomic.Int32
	incremental.RegisterOutput(p, "index", all, func(pc *incremental.ProductionContext, names []string) error {
		calls.Add(1)
		return pc.AddText("index.txt", fmt.Sprint(names))
	})

	ctx := context.Background()
	first, err := incremental.RunPass(ctx, p, incremental.EmptyState, in.Values("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "[a b]", first.Texts[0].Text)

	second, err := incremental.RunPass(ctx, p, first.State)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first.Texts, second.Texts)

	third, err := incremental.RunPass(ctx, p, second.State, in.Values("a"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "[a]", third.Texts[0].Text)
	assert.Equal(t, []domain.EntryState{domain.Modified}, incremental.TableOf(third.State, all).States())
}

func TestCombine(t *testing.T) {
	p := incremental.NewPipeline("combine")
	docs := incremental.Input[string](p, "docs")
	prefix := incremental.ValueInput[string](p, "prefix")
	pairs := incremental.Combine(p, "pairs", docs, prefix)
	var calls atomic.Int32
	incremental.RegisterOutput(p, "render", pairs, func(pc *incremental.ProductionContext, v incremental.Pair[string, string]) error {
		calls.Add(1)
		return pc.AddText(v.Left+".txt", v.Right+v.Left)
	})

	ctx := context.Background()
	first, err := incremental.RunPass(ctx, p, incremental.EmptyState, docs.Values("a", "b"), prefix.Values(">"))
	require.NoError(t, err)
	assert.Equal(t, ">a", first.Texts[0].Text)
	assert.Equal(t, int32(2), calls.Load())

	calls.Store(0)
	second, err := incremental.RunPass(ctx, p, first.State, docs.Values("a", "c"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "only the modified document is rendered")
	assert.Equal(t, []string{"a.txt", "c.txt"}, hints(second))

	calls.Store(0)
	third, err := incremental.RunPass(ctx, p, second.State, prefix.Values("#"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "a new prefix re-renders everything")
	assert.Equal(t, "#c", third.Texts[1].Text)

	_, err = incremental.RunPass(ctx, p, third.State, prefix.Values("a", "b"))
	assert.ErrorIs(t, err, domain.ErrArity)
}

func TestWhereAndSelectMany(t *testing.T) {
	p := incremental.NewPipeline("lines")
	in := incremental.Input[string](p, "in")
	nonEmpty := incremental.Where(p, "non-empty", in, func(_ context.Context, s string) (bool, error) {
		return s != "", nil
	})
	chars := incremental.SelectMany(p, "chars", nonEmpty, func(_ context.Context, s string) ([]string, error) {
		out := make([]string, 0, len(s))
		for _, r := range s {
			out = append(out, string(r))
		}
		return out, nil
	})
	incremental.RegisterOutput(p, "out", chars, func(pc *incremental.ProductionContext, c string) error {
		pc.ReportDiagnostic(domain.Diagnostic{Message: c})
		return nil
	})

	ctx := context.Background()
	first, err := incremental.RunPass(ctx, p, incremental.EmptyState, in.Values("ab", "", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, incremental.TableOf(first.State, chars).Values())

	second, err := incremental.RunPass(ctx, p, first.State, in.Values("abd", "x", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d", "x", "c"}, incremental.TableOf(second.State, chars).Values())
	assert.Equal(t,
		[]domain.EntryState{domain.Cached, domain.Cached, domain.Added, domain.Added, domain.Cached},
		incremental.TableOf(second.State, chars).States())
	assert.Len(t, second.Diagnostics, 5)
}

func TestPipeline_Build(t *testing.T) {
	t.Run("no outputs", func(t *testing.T) {
		p := incremental.NewPipeline("empty")
		incremental.Input[int](p, "in")
		assert.ErrorIs(t, p.Build(), domain.ErrNoOutputs)
	})

	t.Run("aggregates structural errors", func(t *testing.T) {
		p := incremental.NewPipeline("broken")
		other := incremental.NewPipeline("other")
		in := incremental.Input[int](p, "in")
		incremental.Input[int](p, "in")
		foreign := incremental.Input[int](other, "foreign")
		many := incremental.Input[int](p, "many")
		incremental.Select(p, "uses-foreign", foreign, func(_ context.Context, v int) (int, error) { return v, nil })
		pairs := incremental.Combine(p, "pairs", in, many)
		incremental.RegisterOutput(p, "out", pairs, func(*incremental.ProductionContext, incremental.Pair[int, int]) error { return nil })

		err := p.Build()
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDuplicateNode)
		assert.ErrorIs(t, err, domain.ErrForeignNode)
		assert.ErrorIs(t, err, domain.ErrArity)
		assert.Len(t, incremental.BuildErrors(err), 3)

		_, err = incremental.RunPass(context.Background(), p, incremental.EmptyState)
		assert.Error(t, err)
	})

	t.Run("lookup", func(t *testing.T) {
		d := newDoubler()
		require.NoError(t, d.p.Build())
		n, ok := d.p.Lookup("double")
		require.True(t, ok)
		assert.Equal(t, d.sel.ID(), n.ID())
		byID, ok := d.p.Node(d.out.ID())
		require.True(t, ok)
		assert.Equal(t, "write", byID.Name())
		assert.Len(t, d.p.Nodes(), 3)
		assert.Len(t, d.p.Outputs(), 1)
	})
}

type mixed struct {
	p    *incremental.Pipeline
	in   *incremental.InputNode[int]
	mode *incremental.InputNode[string]
}

// newMixed builds a pipeline exercising every node kind. in is scaled, filtered and split
// into digits; the digits feed "digit-notes" and a collected "index", while the filtered values
// are combined with the parsed mode for "items". scale fails on 13 and parse fails on "bad".
func newMixed() *mixed {
	m := &mixed{p: incremental.NewPipeline("mixed")}
	m.in = incremental.Input[int](m.p, "in")
	m.mode = incremental.ValueInput[string](m.p, "mode")
	parse := incremental.Select(m.p, "parse", m.mode, func(_ context.Context, s string) (string, error) {
		if s == "bad" {
			return "", errors.New("unknown mode")
		}
		return s, nil
	})
	scale := incremental.Select(m.p, "scale", m.in, func(_ context.Context, v int) (int, error) {
		if v == 13 {
			return 0, errors.New("unlucky")
		}
		return v * 3, nil
	})
	keep := incremental.Where(m.p, "keep", scale, func(_ context.Context, v int) (bool, error) {
		return v%2 == 1 || v > 20, nil
	})
	digits := incremental.SelectMany(m.p, "digits", keep, func(_ context.Context, v int) ([]int, error) {
		var out []int
		for _, r := range strconv.Itoa(v) {
			out = append(out, int(r-'0'))
		}
		return out, nil
	})
	all := incremental.Collect(m.p, "all", digits)
	pairs := incremental.Combine(m.p, "pairs", keep, parse)

	incremental.RegisterOutput(m.p, "items", pairs, func(pc *incremental.ProductionContext, v incremental.Pair[int, string]) error {
		if v.Left%4 == 0 {
			pc.ReportDiagnostic(domain.Diagnostic{Severity: domain.SeverityWarning, Message: fmt.Sprintf("%d is a multiple of four", v.Left)})
		}
		return pc.AddText(fmt.Sprintf("%s/%d.txt", v.Right, v.Left), strconv.Itoa(v.Left))
	})
	incremental.RegisterOutput(m.p, "digit-notes", digits, func(pc *incremental.ProductionContext, d int) error {
		if d == 0 || d == 7 {
			pc.ReportDiagnostic(domain.Diagnostic{Message: fmt.Sprintf("digit %d", d)})
		}
		return nil
	})
	incremental.RegisterOutput(m.p, "index", all, func(pc *incremental.ProductionContext, ds []int) error {
		return pc.AddText("index.txt", fmt.Sprint(ds))
	})
	return m
}

func (m *mixed) deltas(keyed bool, values []int, mode string) []incremental.InputDelta {
	in := m.in.Values(values...)
	if keyed {
		in = m.in.Keyed(strconv.Itoa, values...)
	}
	return []incremental.InputDelta{in, m.mode.Values(mode)}
}

func TestRunPass_MatchesFromScratch(t *testing.T) {
	type step struct {
		values []int
		mode   string
	}
	steps := []step{
		{[]int{2, 3}, "md"},
		{[]int{1, 2, 3}, "md"},
		{[]int{3, 1, 4}, "md"},
		{[]int{1, 4, 3}, "md"},
		{[]int{1, 13, 4, 3, 9}, "md"},
		{[]int{9, 1, 13, 3}, "bad"},
		{[]int{9, 1, 13, 3}, "bad"},
		{[]int{9, 5, 1, 7}, "html"},
		{[]int{7, 5, 8, 1, 9, 12}, "html"},
		{[]int{12}, "html"},
		{nil, "md"},
		{[]int{4, 3, 2, 1}, "md"},
	}

	for _, keyed := range []bool{false, true} {
		t.Run(fmt.Sprintf("keyed=%t", keyed), func(t *testing.T) {
			m := newMixed()
			ctx := context.Background()
			state := incremental.EmptyState
			for i, s := range steps {
				res, err := incremental.RunPass(ctx, m.p, state, m.deltas(keyed, s.values, s.mode)...)
				require.NoError(t, err, "step %d", i)
				state = res.State

				scratch, err := incremental.RunPass(ctx, m.p, incremental.EmptyState, m.deltas(keyed, s.values, s.mode)...)
				require.NoError(t, err, "step %d from scratch", i)
				assert.Equal(t, scratch.Texts, res.Texts, "texts at step %d", i)
				assert.Equal(t, scratch.Diagnostics, res.Diagnostics, "diagnostics at step %d", i)
			}
		})
	}
}

func TestKeyedInput_CollectFollowsInputOrder(t *testing.T) {
	p := incremental.NewPipeline("order")
	in := incremental.Input[int](p, "in")
	all := incremental.Collect(p, "all", in)
	incremental.RegisterOutput(p, "out", all, func(pc *incremental.ProductionContext, vs []int) error {
		return pc.AddText("all.txt", fmt.Sprint(vs))
	})

	ctx := context.Background()
	first, err := incremental.RunPass(ctx, p, incremental.EmptyState, in.Keyed(strconv.Itoa, 2, 3))
	require.NoError(t, err)
	second, err := incremental.RunPass(ctx, p, first.State, in.Keyed(strconv.Itoa, 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, "[1 2 3]", second.Texts[0].Text)
}

func TestRunPass_DiagnosticPositionsAfterReorder(t *testing.T) {
	p := incremental.NewPipeline("positions")
	in := incremental.Input[int](p, "in")
	var calls atomic.Int32
	incremental.RegisterOutput(p, "check", in, func(pc *incremental.ProductionContext, v int) error {
		calls.Add(1)
		if v != 1 {
			pc.ReportDiagnostic(domain.Diagnostic{Message: fmt.Sprintf("v=%d", v)})
		}
		return nil
	})

	ctx := context.Background()
	first, err := incremental.RunPass(ctx, p, incremental.EmptyState, in.Keyed(strconv.Itoa, 3, 1, 4))
	require.NoError(t, err)
	require.Len(t, first.Diagnostics, 2)
	assert.Equal(t, 2, first.Diagnostics[1].Position)

	calls.Store(0)
	second, err := incremental.RunPass(ctx, p, first.State, in.Keyed(strconv.Itoa, 1, 4, 3))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "only the moved entry is reprocessed")
	require.Len(t, second.Diagnostics, 2)
	assert.Equal(t, "v=4", second.Diagnostics[0].Message)
	assert.Equal(t, 1, second.Diagnostics[0].Position, "carried diagnostics take the entry's current index")
	assert.Equal(t, "v=3", second.Diagnostics[1].Message)
	assert.Equal(t, 2, second.Diagnostics[1].Position)
}

func TestCombine_RightSideFailure(t *testing.T) {
	p := incremental.NewPipeline("combine-fault")
	docs := incremental.Input[string](p, "docs")
	opt := incremental.ValueInput[string](p, "opt")
	parsed := incremental.Select(p, "parse", opt, func(_ context.Context, s string) (string, error) {
		if s == "bad" {
			return "", errors.New("cannot parse option")
		}
		return s, nil
	})
	pairs := incremental.Combine(p, "pairs", docs, parsed)
	incremental.RegisterOutput(p, "out", pairs, func(pc *incremental.ProductionContext, v incremental.Pair[string, string]) error {
		return pc.AddText(v.Left+".txt", v.Right)
	})

	ctx := context.Background()
	first, err := incremental.RunPass(ctx, p, incremental.EmptyState, docs.Values("a"), opt.Values("ok"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, hints(first))

	second, err := incremental.RunPass(ctx, p, first.State, opt.Values("bad"))
	require.NoError(t, err, "a failing callback does not abort the pass")
	assert.Empty(t, second.Texts)
	require.Len(t, second.Diagnostics, 1)
	assert.Equal(t, domain.CodeCallbackFailure, second.Diagnostics[0].Code)
	assert.Equal(t, "parse", second.Diagnostics[0].NodeName)

	third, err := incremental.RunPass(ctx, p, second.State, docs.Values("a", "b"))
	require.NoError(t, err, "the fault is retried while the option is unchanged")
	assert.Empty(t, third.Texts)
	assert.Len(t, third.Diagnostics, 1)

	fourth, err := incremental.RunPass(ctx, p, third.State, opt.Values("fixed"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, hints(fourth))
	assert.Empty(t, fourth.Diagnostics)
	assert.Equal(t, "fixed", fourth.Texts[1].Text)
}
