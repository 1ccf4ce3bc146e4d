package docindex_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tendril/internal/pipelines/docindex"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/incremental"
)

func hints(texts []domain.GeneratedText) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = t.HintName
	}
	return out
}

func text(t *testing.T, res *incremental.PassResult, hint string) string {
	t.Helper()
	r := res.Report("test", docindex.Name)
	s, ok := r.Text(hint)
	require.True(t, ok, "missing %s in %v", hint, hints(res.Texts))
	return s
}

func corpus() []domain.Document {
	return []domain.Document{
		{
			ID:       "alpha",
			Metadata: map[string]any{"tags": []any{"Go", "dag"}, "summary": "First steps"},
			Content:  "# Alpha\n\nSome text.\n\n## Setup\n\n### Details\n\n## Usage\n",
		},
		{
			ID:       "notes/beta",
			Metadata: map[string]any{"tags": "dag"},
			Content:  "No heading here.\n\n## Only a section\n",
		},
		{
			ID:       "gamma",
			Metadata: map[string]any{"title": "Gamma", "draft": true},
			Content:  "# Ignored\n",
		},
	}
}

type invocations struct {
	mu     sync.Mutex
	byNode map[string]int
}

func (c *invocations) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeUpdate: func(_ context.Context, e *domain.NodeEvent) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.byNode[e.NodeName] += e.Invocations
		},
	}
}

func (c *invocations) reset() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.byNode
	c.byNode = map[string]int{}
	return out
}

func TestParse(t *testing.T) {
	ctx := context.Background()

	pg, err := docindex.Parse(ctx, corpus()[0])
	require.NoError(t, err)
	assert.Equal(t, "Alpha", pg.Title)
	assert.Equal(t, "First steps", pg.Summary)
	assert.Equal(t, []string{"dag", "go"}, pg.Tags)
	assert.False(t, pg.Untitled)
	assert.Equal(t, []docindex.Heading{
		{Level: 1, Text: "Alpha"},
		{Level: 2, Text: "Setup"},
		{Level: 3, Text: "Details"},
		{Level: 2, Text: "Usage"},
	}, pg.Headings)

	pg, err = docindex.Parse(ctx, corpus()[1])
	require.NoError(t, err)
	assert.True(t, pg.Untitled)
	assert.Equal(t, "notes/beta", pg.Title)

	pg, err = docindex.Parse(ctx, corpus()[2])
	require.NoError(t, err)
	assert.Equal(t, "Gamma", pg.Title, "front matter title wins over the heading")
	assert.True(t, pg.Draft)

	_, err = docindex.Parse(ctx, domain.Document{Content: "# x"})
	assert.Error(t, err)
}

func TestPipeline_FirstPass(t *testing.T) {
	p := docindex.New()
	res, err := incremental.RunPass(context.Background(), p.Pipeline, nil, p.Feed(corpus()))
	require.NoError(t, err)

	assert.Equal(t, []string{"pages/alpha.md", "pages/notes/beta.md", "index.md"}, hints(res.Texts))

	alpha := text(t, res, "pages/alpha.md")
	assert.Contains(t, alpha, "# Alpha\n\nFirst steps\n")
	assert.Contains(t, alpha, "- Setup\n  - Details\n- Usage\n")
	assert.Contains(t, alpha, "- [notes/beta](notes/beta.md)")

	beta := text(t, res, "pages/notes/beta.md")
	assert.Contains(t, beta, "- [Alpha](../alpha.md)")

	index := text(t, res, docindex.IndexHint)
	assert.Contains(t, index, "Documents: 2")
	assert.Contains(t, index, "- [Alpha](pages/alpha.md): First steps\n  - Setup\n  - Usage\n")
	assert.NotContains(t, index, "Gamma")

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, docindex.CodeUntitled, res.Diagnostics[0].Code)
	assert.Equal(t, domain.SeverityWarning, res.Diagnostics[0].Severity)
	assert.Equal(t, docindex.CodeDraft, res.Diagnostics[1].Code)
	assert.Equal(t, domain.SeverityInfo, res.Diagnostics[1].Severity)
}

func TestPipeline_EditRecomputesOnlyTheEditedDocument(t *testing.T) {
	p := docindex.New()
	counts := &invocations{byNode: map[string]int{}}
	runner := incremental.NewRunner(p.Pipeline, incremental.WithHooks(counts.hooks()))
	ctx := context.Background()

	first, err := runner.Run(ctx, nil, p.Feed(corpus()))
	require.NoError(t, err)
	assert.Equal(t, 3, counts.reset()["pages"])

	// Unchanged input: nothing is recomputed and the artifacts are identical.
	again, err := runner.Run(ctx, first.State, p.Feed(corpus()))
	require.NoError(t, err)
	for node, n := range counts.reset() {
		assert.Zero(t, n, node)
	}
	assert.Equal(t, first.Texts, again.Texts)

	docs := corpus()
	docs[2].Content = "# Still ignored\n\nMore words."
	edited, err := runner.Run(ctx, again.State, p.Feed(docs))
	require.NoError(t, err)
	got := counts.reset()
	assert.Equal(t, 1, got["pages"])
	assert.Equal(t, 1, got["published"])
	assert.Zero(t, got["sections"], "a draft has no published sections")
	assert.Zero(t, got["page-summaries"], "the catalog did not change")
	assert.Equal(t, first.Texts, edited.Texts)
}

func TestPipeline_RemovalDropsArtifacts(t *testing.T) {
	p := docindex.New()
	ctx := context.Background()

	first, err := incremental.RunPass(ctx, p.Pipeline, nil, p.Feed(corpus()))
	require.NoError(t, err)

	second, err := incremental.RunPass(ctx, p.Pipeline, first.State, p.Feed(corpus()[:1]))
	require.NoError(t, err)
	assert.Equal(t, []string{"pages/alpha.md", "index.md"}, hints(second.Texts))
	assert.Contains(t, text(t, second, docindex.IndexHint), "Documents: 1")
	assert.NotContains(t, text(t, second, "pages/alpha.md"), "Related")
	assert.Empty(t, second.Diagnostics)
}
