package view

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/creastat/feedback-assistant/session"
)

// Renderer turns assistant markdown into terminal output.
type Renderer struct {
	term *glamour.TermRenderer
}

// NewRenderer creates a Renderer wrapping at width. An empty style picks one
// from the terminal background.
func NewRenderer(width int, style string) *Renderer {
	if width <= 0 {
		width = 80
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	term, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return &Renderer{}
	}
	return &Renderer{term: term}
}

// Render renders e. User text is returned verbatim, assistant text as markdown.
// If rendering fails the raw content is returned.
func (r *Renderer) Render(e Entry) string {
	if e.Role != session.RoleAssistant || r == nil || r.term == nil {
		return e.Content
	}
	out, err := r.term.Render(e.Content)
	if err != nil {
		return e.Content
	}
	return strings.TrimSpace(out)
}

// TruncatePassage shortens p to at most limit runes, marking the cut with an ellipsis.
func TruncatePassage(p string, limit int) string {
	p = strings.Join(strings.Fields(p), " ")
	if limit <= 0 {
		return p
	}
	runes := []rune(p)
	if len(runes) <= limit {
		return p
	}
	if limit == 1 {
		return "…"
	}
	return strings.TrimRight(string(runes[:limit-1]), " ") + "…"
}
