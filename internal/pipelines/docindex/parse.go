package docindex

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/aretw0/tendril/pkg/domain"
)

// Page is the parsed form of one document.
type Page struct {
	ID       string
	Title    string
	Summary  string
	Tags     []string
	Draft    bool
	Words    int
	Headings []Heading

	// Untitled is set when neither the front matter nor a top-level heading names the page.
	Untitled bool
}

// Heading is one markdown heading of a page.
type Heading struct {
	Level int
	Text  string
}

// Section is a heading attributed to its page.
type Section struct {
	PageID    string
	PageTitle string
	Heading
}

var markdown = goldmark.New()

// Parse extracts the page of doc. Metadata wins over the content: a "title" key overrides the
// first level-one heading.
func Parse(_ context.Context, doc domain.Document) (Page, error) {
	if doc.ID == "" {
		return Page{}, fmt.Errorf("document without id")
	}
	src := []byte(doc.Content)
	page := Page{
		ID:    doc.ID,
		Words: len(strings.Fields(doc.Content)),
	}

	root := markdown.Parser().Parse(text.NewReader(src))
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		page.Headings = append(page.Headings, Heading{Level: h.Level, Text: nodeText(h, src)})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return Page{}, fmt.Errorf("parse %q: %w", doc.ID, err)
	}

	page.Title = stringOf(doc.Metadata, "title")
	if page.Title == "" {
		for _, h := range page.Headings {
			if h.Level == 1 {
				page.Title = h.Text
				break
			}
		}
	}
	if page.Title == "" {
		page.Untitled = true
		page.Title = doc.ID
	}
	page.Summary = stringOf(doc.Metadata, "summary")
	page.Tags = tagsOf(doc.Metadata)
	page.Draft, _ = doc.Metadata["draft"].(bool)
	return page, nil
}

// Sections lists the headings below the page title.
func Sections(_ context.Context, p Page) ([]Section, error) {
	var out []Section
	for _, h := range p.Headings {
		if h.Level == 1 {
			continue
		}
		out = append(out, Section{PageID: p.ID, PageTitle: p.Title, Heading: h})
	}
	return out, nil
}

func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(nodeText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

func stringOf(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// tagsOf accepts the shapes front matter decoders produce: []string, []any or a comma list.
func tagsOf(m map[string]any) []string {
	var tags []string
	switch v := m["tags"].(type) {
	case []string:
		tags = slices.Clone(v)
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	case string:
		tags = strings.Split(v, ",")
	}
	for i := range tags {
		tags[i] = strings.ToLower(strings.TrimSpace(tags[i]))
	}
	tags = slices.DeleteFunc(tags, func(s string) bool { return s == "" })
	slices.Sort(tags)
	return slices.Compact(tags)
}
