package tui

import (
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// table column widths, excluding the flexible title column.
const (
	colRankWidth     = 4
	colRevenueWidth  = 14
	colTimeWidth     = 10
	colROIWidth      = 10
	colPriorityWidth = 9
	colStatusWidth   = 12
	minTitleWidth    = 12
)

// View renders the table, the metrics footer, and any open form or modal.
func (m Model) View() tea.View {
	if !m.ready {
		v := tea.NewView("loading...")
		v.MouseMode = tea.MouseModeCellMotion
		v.AltScreen = true
		return v
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)
	helpStyle := lipgloss.NewStyle().Foreground(muted)

	header := titleStyle.Render("tally")
	if m.view.Loading {
		header += statusStyle.Render("  loading")
	}
	sections := []string{header}
	if m.display.ShowMetrics {
		sections = append(sections, lipgloss.NewStyle().Foreground(accent).Render(metricsLine(m.display.Currency, m.view.Metrics, len(m.view.Derived))))
	}
	sections = append(sections, "", m.renderTable(accent, muted))
	if banner := m.renderUndoBanner(); banner != "" {
		sections = append(sections, banner)
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	fullContent := content + "\n" + helpLine

	overlay := m.renderModeOverlay(accent, muted, helpStyle, m.width-8)
	if m.help.ShowAll {
		overlay = m.renderHelpOverlay(accent, muted, m.width-8)
	}
	if overlay != "" {
		overlayHeight := lipgloss.Height(fullContent)
		if m.height > 0 {
			overlayHeight = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, overlayHeight))
	}

	view := tea.NewView(fullContent)
	view.MouseMode = tea.MouseModeCellMotion
	view.AltScreen = true
	return view
}

// renderTable renders ranked tasks with a header row, scrolled to keep the selection visible.
func (m Model) renderTable(accent, muted color.Color) string {
	if len(m.view.Derived) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Render("No tasks yet. Press n to add one.")
	}
	titleWidth := max(minTitleWidth, m.width-(colRankWidth+colRevenueWidth+colTimeWidth+colROIWidth+colPriorityWidth+colStatusWidth+8))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(muted)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)

	lines := []string{headerStyle.Render(tableRow(titleWidth, "#", "title", "revenue", "time", "ROI", "priority", "status"))}
	top, bottom := windowBounds(len(m.view.Derived), m.selected, m.tableWindow())
	for idx := top; idx < bottom; idx++ {
		task := m.view.Derived[idx]
		row := tableRow(
			titleWidth,
			fmt.Sprintf("%d", idx+1),
			task.Title,
			formatMoney(m.display.Currency, task.Revenue),
			formatHours(task.TimeTaken),
			formatROI(task.ROI),
			orDash(string(task.Priority)),
			orDash(string(task.Status)),
		)
		if idx == m.selected {
			row = selectedStyle.Render(row)
		}
		lines = append(lines, row)
	}
	if hidden := len(m.view.Derived) - (bottom - top); hidden > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render(fmt.Sprintf("%d more", hidden)))
	}
	return strings.Join(lines, "\n")
}

// tableWindow returns how many task rows fit on screen.
func (m Model) tableWindow() int {
	if m.height <= 0 {
		return len(m.view.Derived)
	}
	return max(1, m.height-10)
}

func tableRow(titleWidth int, rank, title, revenue, hours, roi, priority, status string) string {
	return strings.Join([]string{
		padLeft(rank, colRankWidth),
		padRight(truncate(title, titleWidth), titleWidth),
		padLeft(revenue, colRevenueWidth),
		padLeft(hours, colTimeWidth),
		padLeft(roi, colROIWidth),
		padRight(truncate(priority, colPriorityWidth), colPriorityWidth),
		padRight(truncate(status, colStatusWidth), colStatusWidth),
	}, " ")
}

// renderUndoBanner shows the restorable task after a delete.
func (m Model) renderUndoBanner() string {
	if m.view.LastDeleted == nil {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	return style.Render(fmt.Sprintf("deleted %q • %s undo • %s dismiss",
		truncate(m.view.LastDeleted.Title, 40), m.keys.undoDelete.Help().Key, m.keys.dismissUndo.Help().Key))
}

// renderModeOverlay renders the active modal, if any.
func (m Model) renderModeOverlay(accent, muted color.Color, hintStyle lipgloss.Style, maxWidth int) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)

	switch m.mode {
	case modeTaskInfo:
		task, ok := m.taskByID(m.taskInfoTaskID)
		if !ok {
			return ""
		}
		width := clamp(maxWidth, 24, 76)
		if maxWidth > 0 {
			boxStyle = boxStyle.Width(width)
		}
		body := m.markdown.render(taskMarkdown(task, m.rankOf(task.ID), m.display.Currency), width-4)
		return boxStyle.Render(body + "\n" + hintStyle.Render("esc close • e edit • y copy"))

	case modeConfirmDelete:
		task, ok := m.taskByID(m.pendingDelete)
		if !ok {
			return ""
		}
		lines := []string{
			titleStyle.Render("Delete task"),
			fmt.Sprintf("delete %q?", truncate(task.Title, 48)),
			hintStyle.Render("y confirm • n cancel • the last delete can be undone"),
		}
		return boxStyle.Render(strings.Join(lines, "\n"))

	case modeAddTask, modeEditTask:
		if maxWidth > 0 {
			boxStyle = boxStyle.Width(clamp(maxWidth, 36, 72))
		}
		heading := "New task"
		if m.mode == modeEditTask {
			heading = "Edit task"
		}
		lines := []string{titleStyle.Render(heading)}
		fieldWidth := max(18, clamp(maxWidth, 36, 72)-18)
		for i, in := range m.formInputs {
			labelStyle := lipgloss.NewStyle().Foreground(muted)
			if i == m.formFocus {
				labelStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
			}
			in.SetWidth(fieldWidth)
			lines = append(lines, labelStyle.Render(fmt.Sprintf("%-10s", taskFormFields[i]+":"))+" "+in.View())
		}
		if warning := m.titleWarning(); warning != "" {
			lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(warning))
		}
		if m.formFocus == taskFieldPriority {
			lines = append(lines, hintStyle.Render("←/→ cycle priority"))
		}
		if m.mode == modeEditTask {
			lines = append(lines, hintStyle.Render("blank amounts keep the current value"))
		}
		lines = append(lines, hintStyle.Render("tab next • enter save • esc cancel"))
		return boxStyle.Render(strings.Join(lines, "\n"))
	}
	return ""
}

// renderHelpOverlay renders the expanded key help.
func (m Model) renderHelpOverlay(accent, muted color.Color, maxWidth int) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	if maxWidth > 0 {
		style = style.Width(clamp(maxWidth, 36, 96))
	}
	helpBubble := m.help
	helpBubble.ShowAll = true
	helpBubble.SetWidth(max(0, maxWidth-4))
	hint := lipgloss.NewStyle().Foreground(muted).Render("? or esc close")
	return style.Render(lipgloss.NewStyle().Bold(true).Foreground(accent).Render("Keys") + "\n" + helpBubble.View(m.keys) + "\n" + hint)
}

// windowBounds returns the visible [start, end) range that keeps selected in view.
func windowBounds(total, selected, windowSize int) (int, int) {
	if total <= 0 {
		return 0, 0
	}
	if windowSize <= 0 || windowSize >= total {
		return 0, total
	}
	selected = clamp(selected, 0, total-1)
	start := selected - windowSize/2
	start = clamp(start, 0, total-windowSize)
	return start, start + windowSize
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent overlays on content.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centeredOverlay := lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
	)
	overlayLayer := lipgloss.NewLayer(centeredOverlay).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

// truncate shortens s to max runes, ending with an ellipsis when cut.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}

func padRight(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func padLeft(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return strings.Repeat(" ", gap) + s
	}
	return s
}
