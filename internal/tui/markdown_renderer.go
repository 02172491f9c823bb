package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/evanschultz/tally/internal/domain"
)

// markdownRenderer renders markdown for terminal views and recreates the renderer when wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// render converts markdown input into ANSI-styled terminal text with the requested wrap width.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := width
	if wrapWidth < 24 {
		wrapWidth = 24
	}

	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// taskMarkdown renders one ranked task as a markdown details document.
func taskMarkdown(task domain.DerivedTask, rank int, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", markdownEscape(task.Title))
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Rank | %d |\n", rank)
	fmt.Fprintf(&b, "| ROI | %s |\n", formatROI(task.ROI))
	fmt.Fprintf(&b, "| Revenue | %s |\n", formatMoney(currency, task.Revenue))
	fmt.Fprintf(&b, "| Time taken | %s |\n", formatHours(task.TimeTaken))
	fmt.Fprintf(&b, "| Priority | %s |\n", orDash(string(task.Priority)))
	fmt.Fprintf(&b, "| Status | %s |\n", orDash(string(task.Status)))
	fmt.Fprintf(&b, "\n`%s`\n", task.ID)
	return b.String()
}

// markdownEscape keeps user titles from turning into markdown structure.
func markdownEscape(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`)
	return replacer.Replace(s)
}
