package middleware

import (
	"context"
	"regexp"
	"slices"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type piiMiddleware struct {
	next     ports.ArtifactSink
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks every match of the patterns in generated
// texts and diagnostic messages before they reach the sink. Masking is one-way: Latest returns
// the redacted report.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.ArtifactSink) ports.ArtifactSink {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Publish(ctx context.Context, report *domain.PassReport) error {
	// Copy so the caller's report keeps its original content.
	masked := *report
	masked.Texts = slices.Clone(report.Texts)
	masked.Diagnostics = slices.Clone(report.Diagnostics)

	for i := range masked.Texts {
		masked.Texts[i].Text = m.mask(masked.Texts[i].Text)
	}
	for i := range masked.Diagnostics {
		masked.Diagnostics[i].Message = m.mask(masked.Diagnostics[i].Message)
	}
	return m.next.Publish(ctx, &masked)
}

func (m *piiMiddleware) Latest(ctx context.Context, session string) (*domain.PassReport, error) {
	return m.next.Latest(ctx, session)
}

func (m *piiMiddleware) Delete(ctx context.Context, session string) error {
	return m.next.Delete(ctx, session)
}

func (m *piiMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}
