package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/incremental"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ReportMarkdown summarizes a pass as markdown.
func ReportMarkdown(res *incremental.PassResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Pass `%s`\n\n", shortID(res.PassID))
	fmt.Fprintf(&sb, "%d nodes, %d callback invocations, %d failures in %s\n\n",
		res.Stats.Nodes, res.Stats.Invocations, res.Stats.Failures, res.Stats.Duration.Round(time.Microsecond))

	if len(res.Texts) > 0 {
		sb.WriteString("| Artifact | Size |\n|---|---:|\n")
		for _, t := range res.Texts {
			fmt.Fprintf(&sb, "| %s | %d |\n", t.HintName, len(t.Text))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("_No artifacts._\n\n")
	}

	if len(res.Diagnostics) > 0 {
		sb.WriteString("### Diagnostics\n\n")
		for _, d := range res.Diagnostics {
			fmt.Fprintf(&sb, "- %s %s\n", icon(d.Severity), d.String())
		}
	}
	return sb.String()
}

// PrintReport writes the summary of res to w, rendered with glamour when w is a terminal.
func PrintReport(w io.Writer, res *incremental.PassResult) error {
	md := ReportMarkdown(res)
	if IsTerminal(w) {
		out, err := NewRenderer()(md)
		if err != nil {
			return err
		}
		md = out
	}
	_, err := io.WriteString(w, md)
	return err
}

func icon(s domain.Severity) string {
	switch s {
	case domain.SeverityError:
		return "✖"
	case domain.SeverityWarning:
		return "⚠"
	default:
		return "ℹ"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
