package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for Tendril.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _____              _      _ _ ", "#34d399"},
		{"|_   _|__ _ __   __| |_ __(_) |", "#2dd4bf"},
		{"  | |/ _ \\ '_ \\ / _` | '__| | |", "#22d3ee"},
		{"  | |  __/ | | | (_| | |  | | |", "#38bdf8"},
		{"  |_|\\___|_| |_|\\__,_|_|  |_|_|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
