package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer turns model answers into styled terminal output.
// A nil renderer degrades to plain text so a glamour failure never
// blocks the chat.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

func newTermRenderer(width int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Detect light/dark terminal
		glamour.WithWordWrap(width),
	)
}

func newMarkdownRenderer(width int) *markdownRenderer {
	if width <= 0 {
		width = 80
	}
	r, err := newTermRenderer(width)
	if err != nil {
		return nil
	}
	return &markdownRenderer{renderer: r, width: width}
}

// UpdateWidth rebuilds the renderer when the terminal width changes.
// Reports whether a rebuild happened.
func (m *markdownRenderer) UpdateWidth(width int) bool {
	if m == nil || width <= 0 || width == m.width {
		return false
	}
	r, err := newTermRenderer(width)
	if err != nil {
		// Keep the current renderer
		return false
	}
	m.renderer = r
	m.width = width
	return true
}

// Render converts markdown to ANSI styled text, falling back to the
// raw input when rendering fails.
func (m *markdownRenderer) Render(markdown string) string {
	if m == nil || m.renderer == nil {
		return markdown
	}
	out, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	// Glamour appends a trailing newline
	return strings.TrimSuffix(out, "\n")
}
