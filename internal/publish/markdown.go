package publish

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"goals-cli/internal/goals"
	"goals-cli/internal/model"
)

type RenderOptions struct {
	Title string
	// GeneratedAt adds a footer line when non-zero.
	GeneratedAt time.Time
}

// RenderMarkdown renders the goal list as a Markdown document in priority order.
func RenderMarkdown(list []model.Goal, opt RenderOptions) string {
	sorted := append([]model.Goal{}, list...)
	goals.SortGoals(sorted)

	title := strings.TrimSpace(opt.Title)
	if title == "" {
		title = "Goals"
	}

	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + title)
	writeLn("")
	if len(sorted) == 0 {
		writeLn("_No goals._")
	} else {
		for _, g := range sorted {
			writeLn(fmt.Sprintf("- **P%d** %s", g.Priority, escapeInline(g.Text)))
		}
		writeLn("")
		if goals.IsContiguous(sorted) && sorted[0].Priority == 1 {
			writeLn(fmt.Sprintf("%d goals.", len(sorted)))
		} else {
			writeLn(fmt.Sprintf("%d goals (priorities have gaps; run `goals normalize` to renumber).", len(sorted)))
		}
	}
	if !opt.GeneratedAt.IsZero() {
		writeLn("")
		writeLn("_Generated " + opt.GeneratedAt.UTC().Format(time.RFC3339) + "_")
	}
	return buf.String()
}

var inlineEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`", `[`, `\[`, `]`, `\]`)

// escapeInline keeps goal text on one line and stops it from opening Markdown emphasis or links.
func escapeInline(s string) string {
	return inlineEscaper.Replace(strings.Join(strings.Fields(s), " "))
}
