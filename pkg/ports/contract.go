package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tendril/pkg/domain"
)

// RunArtifactSinkContract runs a suite of tests to verify that an ArtifactSink implementation
// adheres to the defined interface contract.
func RunArtifactSinkContract(t *testing.T, sink ArtifactSink) {
	ctx := context.Background()
	session := "contract-test-session-" + time.Now().Format("20060102150405")

	report := func(pass string, texts ...string) *domain.PassReport {
		r := &domain.PassReport{
			PassID:     pass,
			Session:    session,
			Pipeline:   "contract",
			FinishedAt: time.Now().UTC().Truncate(time.Second),
			Stats:      domain.PassStats{Texts: len(texts)},
		}
		for _, hint := range texts {
			r.Texts = append(r.Texts, domain.GeneratedText{HintName: hint, Text: "text of " + hint})
		}
		return r
	}

	t.Run("Publish and Latest", func(t *testing.T) {
		first := report("pass-1", "a.md", "b.md")
		first.Diagnostics = []domain.Diagnostic{domain.Warningf("DOC001", "missing title")}
		require.NoError(t, sink.Publish(ctx, first), "Publish should not return error")

		loaded, err := sink.Latest(ctx, session)
		require.NoError(t, err, "Latest should not return error")
		assert.Equal(t, "pass-1", loaded.PassID)
		assert.Len(t, loaded.Texts, 2)
		text, ok := loaded.Text("b.md")
		assert.True(t, ok)
		assert.Equal(t, "text of b.md", text)
		require.Len(t, loaded.Diagnostics, 1)
		assert.Equal(t, "DOC001", loaded.Diagnostics[0].Code)
	})

	t.Run("Publish replaces", func(t *testing.T) {
		require.NoError(t, sink.Publish(ctx, report("pass-2", "a.md")))

		loaded, err := sink.Latest(ctx, session)
		require.NoError(t, err)
		assert.Equal(t, "pass-2", loaded.PassID)
		_, ok := loaded.Text("b.md")
		assert.False(t, ok, "texts of the previous pass must not survive")
	})

	t.Run("Latest Non-Existent", func(t *testing.T) {
		_, err := sink.Latest(ctx, "non-existent-"+session)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, sink.Delete(ctx, session), "Delete should not return error")

		_, err := sink.Latest(ctx, session)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Latest after Delete should return ErrSessionNotFound")
	})
}
