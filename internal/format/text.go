package format

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"goals-cli/internal/model"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// MaxTextWidth caps the goal column in text tables.
const MaxTextWidth = 72

// WriteText renders v for a human. A {"data": ...} envelope is unwrapped first. Goal and event
// lists become tables; anything else falls back to indented JSON.
func WriteText(w io.Writer, v any) error {
	if m, ok := v.(map[string]any); ok {
		if d, ok := m["data"]; ok {
			v = d
		}
	}
	switch x := v.(type) {
	case []model.Goal:
		return writeGoalTable(w, x)
	case model.Goal:
		return writeGoalTable(w, []model.Goal{x})
	case []model.Event:
		return writeEventTable(w, x)
	case string:
		_, err := fmt.Fprintln(w, strings.TrimRight(x, "\n"))
		return err
	default:
		return WriteJSON(w, v, true)
	}
}

func newRenderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		r.SetColorProfile(termenv.Ascii)
		return r
	}
	// EnvColorProfile honors CLICOLOR/CLICOLOR_FORCE, which suits piped CLI output.
	r.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
	return r
}

func newTable(r *lipgloss.Renderer, headers ...string) *table.Table {
	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
}

func writeGoalTable(w io.Writer, goals []model.Goal) error {
	if len(goals) == 0 {
		_, err := fmt.Fprintln(w, "No goals.")
		return err
	}
	t := newTable(newRenderer(w), "PRIORITY", "GOAL")
	for _, g := range goals {
		t.Row(strconv.Itoa(g.Priority), ansi.Truncate(oneLine(g.Text), MaxTextWidth, "…"))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func writeEventTable(w io.Writer, evs []model.Event) error {
	if len(evs) == 0 {
		_, err := fmt.Fprintln(w, "No events.")
		return err
	}
	t := newTable(newRenderer(w), "ISSUED", "TYPE", "PRIORITY", "PAYLOAD")
	for _, ev := range evs {
		t.Row(
			ev.IssuedAt.Format("2006-01-02 15:04:05"),
			string(ev.Type),
			strconv.Itoa(ev.Priority),
			ansi.Truncate(string(ev.Payload), 48, "…"),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
