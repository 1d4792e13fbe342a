package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the terminal styles used by the text writers.
type Styles struct {
	renderer *lipgloss.Renderer
	Header   lipgloss.Style
	Dim      lipgloss.Style
	Warn     lipgloss.Style
}

// NewStyles creates styles for w. Color is dropped when w is not a terminal.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		renderer: r,
		Header:   r.NewStyle().Bold(true),
		Dim:      r.NewStyle().Foreground(lipgloss.Color("#6e7681")),
		Warn:     r.NewStyle().Foreground(lipgloss.Color("#f97316")),
	}
}

// Cluster renders s in the cluster color (a hex string from the index palette).
func (s Styles) Cluster(color, text string) string {
	if color == "" {
		return text
	}
	return s.renderer.NewStyle().Foreground(lipgloss.Color(color)).Render(text)
}
