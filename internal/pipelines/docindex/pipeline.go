package docindex

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/incremental"
)

// Name is the pipeline name.
const Name = "docindex"

// Diagnostic codes reported by the lint output.
const (
	CodeUntitled = "DOC001"
	CodeDraft    = "DOC002"
)

// IndexHint is the hint name of the generated index.
const IndexHint = "index.md"

// Pipeline is the declared document index graph.
type Pipeline struct {
	*incremental.Pipeline

	Documents *incremental.InputNode[domain.Document]
	Pages     *incremental.TransformNode[domain.Document, Page]
	Published *incremental.TransformNode[Page, Page]
	Sections  *incremental.TransformNode[Page, Section]
	Catalog   *incremental.CollectNode[Page]
}

// New declares the pipeline.
func New() *Pipeline {
	p := &Pipeline{Pipeline: incremental.NewPipeline(Name)}

	p.Documents = incremental.Input[domain.Document](p.Pipeline, "documents")
	p.Pages = incremental.Select(p.Pipeline, "pages", p.Documents, Parse)
	p.Published = incremental.Where(p.Pipeline, "published", p.Pages, func(_ context.Context, pg Page) (bool, error) {
		return !pg.Draft, nil
	})
	p.Sections = incremental.SelectMany(p.Pipeline, "sections", p.Published, Sections)
	toc := incremental.Collect(p.Pipeline, "toc", p.Sections)
	p.Catalog = incremental.Collect(p.Pipeline, "catalog", p.Published)

	related := incremental.Combine(p.Pipeline, "related", p.Published, p.Catalog)
	index := incremental.Combine(p.Pipeline, "index", p.Catalog, toc)

	incremental.RegisterOutput(p.Pipeline, "page-summaries", related, emitPage)
	incremental.RegisterOutput(p.Pipeline, "index-page", index, emitIndex)
	incremental.RegisterOutput(p.Pipeline, "lint", p.Pages, lint)
	return p
}

// Feed returns the input delta replacing the documents with docs. Documents are matched by
// ID, so editing one document leaves the others cached.
func (p *Pipeline) Feed(docs []domain.Document) incremental.InputDelta {
	return p.Documents.Keyed(domain.Document.Key, docs...)
}

// PageHint is the hint name of the summary of the page with the given id.
func PageHint(id string) string {
	return "pages/" + id + ".md"
}

func emitPage(pc *incremental.ProductionContext, in incremental.Pair[Page, []Page]) error {
	pg := in.Left
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", pg.Title)
	if pg.Summary != "" {
		fmt.Fprintf(&sb, "%s\n\n", pg.Summary)
	}
	fmt.Fprintf(&sb, "_%d words_\n", pg.Words)
	if len(pg.Tags) > 0 {
		fmt.Fprintf(&sb, "\nTags: %s\n", strings.Join(pg.Tags, ", "))
	}

	if sections, _ := Sections(pc.Context(), pg); len(sections) > 0 {
		sb.WriteString("\n## Sections\n\n")
		for _, s := range sections {
			fmt.Fprintf(&sb, "%s- %s\n", strings.Repeat("  ", s.Level-2), s.Text)
		}
	}

	if rel := relatedTo(pg, in.Right); len(rel) > 0 {
		sb.WriteString("\n## Related\n\n")
		for _, r := range rel {
			fmt.Fprintf(&sb, "- [%s](%s)\n", r.Title, relativeLink(pg.ID, r.ID))
		}
	}
	return pc.AddText(PageHint(pg.ID), sb.String())
}

func emitIndex(pc *incremental.ProductionContext, in incremental.Pair[[]Page, []Section]) error {
	bySection := make(map[string][]Section)
	for _, s := range in.Right {
		bySection[s.PageID] = append(bySection[s.PageID], s)
	}

	pages := slices.Clone(in.Left)
	slices.SortStableFunc(pages, func(a, b Page) int {
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Index\n\nDocuments: %d\n\n", len(pages))
	for _, pg := range pages {
		line := fmt.Sprintf("- [%s](%s)", pg.Title, PageHint(pg.ID))
		if pg.Summary != "" {
			line += ": " + pg.Summary
		}
		sb.WriteString(line + "\n")
		for _, s := range bySection[pg.ID] {
			if s.Level == 2 {
				fmt.Fprintf(&sb, "  - %s\n", s.Text)
			}
		}
	}
	return pc.AddText(IndexHint, sb.String())
}

func lint(pc *incremental.ProductionContext, pg Page) error {
	if pg.Untitled {
		pc.ReportDiagnostic(domain.Diagnostic{
			Severity: domain.SeverityWarning,
			Code:     CodeUntitled,
			Message:  fmt.Sprintf("document %q has no title", pg.ID),
		})
	}
	if pg.Draft {
		pc.ReportDiagnostic(domain.Diagnostic{
			Code:    CodeDraft,
			Message: fmt.Sprintf("document %q is a draft and was not published", pg.ID),
		})
	}
	return nil
}

// relatedTo lists the other pages sharing at least one tag with pg, by shared tag count.
func relatedTo(pg Page, catalog []Page) []Page {
	type scored struct {
		page   Page
		shared int
	}
	var out []scored
	for _, other := range catalog {
		if other.ID == pg.ID {
			continue
		}
		n := 0
		for _, t := range other.Tags {
			if _, found := slices.BinarySearch(pg.Tags, t); found {
				n++
			}
		}
		if n > 0 {
			out = append(out, scored{other, n})
		}
	}
	slices.SortStableFunc(out, func(a, b scored) int { return b.shared - a.shared })

	pages := make([]Page, len(out))
	for i, s := range out {
		pages[i] = s.page
	}
	return pages
}

// relativeLink links the summary of from to the summary of to.
func relativeLink(from, to string) string {
	depth := strings.Count(from, "/")
	return strings.Repeat("../", depth) + to + ".md"
}
