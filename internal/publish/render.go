package publish

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderTerminal renders md for a terminal of the given width. style is a glamour standard style
// ("dark", "light", "notty", ...); empty means "notty".
//
// A fixed style is used instead of auto-detection, which can block on terminal queries.
func RenderTerminal(md string, width int, style string) (string, error) {
	if width < 20 {
		width = 20
	}
	if strings.TrimSpace(style) == "" {
		style = "notty"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}
