package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jupierce/coverage-navtree/pkg/gcovr"
	"github.com/jupierce/coverage-navtree/pkg/tree"
)

var (
	dirStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	linkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	coverageStyle = map[string]lipgloss.Style{
		gcovr.ClassHigh:    lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		gcovr.ClassMedium:  lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")),
		gcovr.ClassLow:     lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")),
		gcovr.ClassUnknown: lipgloss.NewStyle().Foreground(lipgloss.Color("#a9b1d6")),
	}
)

// newRenderer picks the color profile for w: "auto" follows the terminal,
// "always" forces true color, "never" disables styling.
func newRenderer(w io.Writer, mode string) (*lipgloss.Renderer, error) {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case "auto":
	case "always":
		r.SetColorProfile(termenv.TrueColor)
	case "never":
		r.SetColorProfile(termenv.Ascii)
	default:
		return nil, fmt.Errorf("invalid --color %q (valid: auto, always, never)", mode)
	}
	return r, nil
}

// styledLabel returns a node label colored by its coverage class.
func styledLabel(r *lipgloss.Renderer) func(*tree.Node) string {
	return func(n *tree.Node) string {
		var b strings.Builder
		if n.IsDir() {
			b.WriteString(dirStyle.Renderer(r).Render(n.Name + tree.Separator))
		} else {
			b.WriteString(n.Name)
		}
		if n.HasCoverage() {
			style, ok := coverageStyle[n.CoverageClass]
			if !ok {
				style = coverageStyle[gcovr.ClassUnknown]
			}
			b.WriteString(" " + style.Renderer(r).Render("["+n.CoverageText()+"]"))
		}
		if n.Link != "" {
			b.WriteString(" " + linkStyle.Renderer(r).Render("-> "+n.Link))
		}
		return b.String()
	}
}
