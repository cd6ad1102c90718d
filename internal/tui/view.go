package tui

import (
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/brainboard/internal/domain"
)

// columnOverhead is the per-column border (2), horizontal padding (4), and margin (1).
const columnOverhead = 7

const (
	minColumnWidth = 24
	maxColumnWidth = 42
)

// tagANSI maps palette colour names to 256-colour codes.
var tagANSI = map[string]string{
	"blue":    "33",
	"green":   "34",
	"purple":  "93",
	"orange":  "208",
	"red":     "160",
	"yellow":  "178",
	"pink":    "205",
	"indigo":  "62",
	"cyan":    "37",
	"emerald": "35",
	"violet":  "135",
	"amber":   "214",
}

// tagStyle returns the chip style for tag.
func tagStyle(tag string) lipgloss.Style {
	code, ok := tagANSI[domain.TagColor(tag)]
	if !ok {
		code = "241"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(code))
}

// View renders the board.
func (m Model) View() tea.View {
	if m.err != nil {
		return altScreen("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
	}
	if !m.ready {
		return altScreen("loading...")
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	var body string
	if !m.hasBoard {
		sections := []string{
			titleStyle.Render("brainboard"),
			"",
			"No board yet.",
			"Press N to start a board from a vision statement.",
			"Press o to open a brainstorming document.",
			"Press q to quit.",
		}
		body = strings.Join(sections, "\n")
	} else {
		header := titleStyle.Render("brainboard") + "  " + truncate(m.board.Vision, max(16, m.width-40))
		header += statusStyle.Render(fmt.Sprintf("  [%d features]", len(m.board.Features)))
		if m.filter.Active() {
			chips := make([]string, 0, len(m.filter.Tags))
			for _, tag := range m.filter.Tags {
				chips = append(chips, tagStyle(tag).Render("#"+tag))
			}
			header += statusStyle.Render("  filter ("+string(m.filter.Mode)+"): ") + strings.Join(chips, " ")
		}
		body = header + "\n\n" + m.renderColumns(accent, muted, dim)
	}

	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		body += "\n" + statusStyle.Render(m.status)
	}

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		body = fitLines(body, max(0, m.height-lipgloss.Height(helpLine)))
	}
	full := body + "\n" + helpLine

	if overlay := m.renderModeOverlay(accent, muted, dim, max(24, m.width-8)); overlay != "" {
		height := lipgloss.Height(full)
		if m.height > 0 {
			height = m.height
		}
		full = overlayOnContent(full, overlay, max(1, m.width), max(1, height))
	}
	return altScreen(full)
}

func altScreen(content string) tea.View {
	v := tea.NewView(content)
	v.AltScreen = true
	return v
}

// visibleColumnRange returns the [start, end) window of columns that fits the
// terminal and contains the selected column.
func (m Model) visibleColumnRange(total int) (int, int) {
	if total == 0 {
		return 0, 0
	}
	fit := total
	if m.width > 0 {
		fit = max(1, m.width/(minColumnWidth+columnOverhead))
	}
	if fit >= total {
		return 0, total
	}
	start := clamp(m.selectedColumn-fit/2, 0, total-fit)
	return start, start + fit
}

// columnWidthFor returns the inner width for count columns.
func (m Model) columnWidthFor(count int) int {
	if count == 0 {
		return minColumnWidth
	}
	w := 28
	if m.width > 0 {
		if candidate := (m.width - count*columnOverhead) / count; candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, minColumnWidth, maxColumnWidth)
}

// columnHeight returns the number of card lines a column can show.
func (m Model) columnHeight() int {
	if m.height <= 0 {
		return 0
	}
	// header, blank, column border and padding, column title, status, help.
	return max(4, m.height-13)
}

func (m Model) renderColumns(accent, muted, dim color.Color) string {
	cols := m.columns()
	if len(cols) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Render("No phases. Press n to add a feature.")
	}
	start, end := m.visibleColumnRange(len(cols))
	colWidth := m.columnWidthFor(end - start)
	cardLines := m.columnHeight()

	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(1, 2).
		MarginRight(1).
		Width(colWidth)
	selColStyle := baseColStyle.BorderForeground(accent)
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	itemStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	views := make([]string, 0, end-start)
	for colIdx := start; colIdx < end; colIdx++ {
		col := cols[colIdx]
		title := fmt.Sprintf("%s (%d)", col.Phase, len(col.Features))
		if m.filter.Active() {
			title = fmt.Sprintf("%s (%d/%d)", col.Phase, len(col.Features), m.board.PhaseSize(col.Phase))
		}

		lines := make([]string, 0, len(col.Features)*2)
		selEnd := -1
		if len(col.Features) == 0 {
			lines = append(lines, emptyStyle.Render("(empty)"))
		}
		for rowIdx, feature := range col.Features {
			selected := colIdx == m.selectedColumn && rowIdx == m.selectedFeature
			prefix := "  "
			style := itemStyle
			if selected {
				prefix = "› "
				style = selectedStyle
			}
			lines = append(lines, style.Render(prefix+truncate(feature.Title, colWidth-2)))
			if chips := renderTagChips(feature.Tags, colWidth-2); chips != "" {
				lines = append(lines, "  "+chips)
			}
			if selected {
				selEnd = len(lines)
			}
		}
		lines = windowLines(lines, selEnd, cardLines)

		style := baseColStyle
		if colIdx == m.selectedColumn {
			style = selColStyle
		}
		views = append(views, style.Render(colTitle.Render(truncate(title, colWidth))+"\n\n"+strings.Join(lines, "\n")))
	}
	board := lipgloss.JoinHorizontal(lipgloss.Top, views...)
	if start > 0 || end < len(cols) {
		board += "\n" + lipgloss.NewStyle().Foreground(muted).Render(fmt.Sprintf("columns %d-%d of %d", start+1, end, len(cols)))
	}
	return board
}

// renderTagChips renders coloured #tag chips up to width cells.
func renderTagChips(tags []string, width int) string {
	if len(tags) == 0 {
		return ""
	}
	chips := make([]string, 0, len(tags))
	used := 0
	for i, tag := range tags {
		cell := "#" + tag
		if used+len([]rune(cell)) > width && i > 0 {
			chips = append(chips, lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(fmt.Sprintf("+%d", len(tags)-i)))
			break
		}
		chips = append(chips, tagStyle(tag).Render(cell))
		used += len([]rune(cell)) + 1
	}
	return strings.Join(chips, " ")
}

// windowLines scrolls lines so the selection ending at selEnd stays inside a
// window of limit lines. A non-positive limit keeps everything.
func windowLines(lines []string, selEnd, limit int) []string {
	if limit <= 0 || len(lines) <= limit {
		return lines
	}
	start := 0
	if selEnd > limit {
		start = min(selEnd-limit, len(lines)-limit)
	}
	return lines[start : start+limit]
}

// renderModeOverlay renders the modal for the current input mode.
func (m Model) renderModeOverlay(accent, muted, dim color.Color, maxWidth int) string {
	if m.mode == modeNone {
		return ""
	}
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)
	labelStyle := lipgloss.NewStyle().Foreground(dim)
	width := min(maxWidth, 80)

	switch m.mode {
	case modeFeatureInfo:
		feature, ok := m.board.Feature(m.infoFeatureID)
		if !ok {
			return ""
		}
		rendered := m.markdown.render(featureMarkdown(feature), width-4)
		if m.height > 0 {
			rendered = fitLines(rendered, max(4, m.height-6))
		}
		return boxStyle.Width(width).Render(rendered + "\n" + hintStyle.Render("esc close • y copy json"))

	case modeConfirmDelete:
		feature, _ := m.board.Feature(m.editingID)
		return boxStyle.Render(titleStyle.Render("Delete feature?") + "\n" +
			truncate(feature.Title, width-4) + "\n\n" + hintStyle.Render("y confirm • n cancel"))

	case modeAddFeature, modeEditFeature:
		title := "New feature"
		if m.mode == modeEditFeature {
			title = "Edit feature"
		}
		lines := []string{titleStyle.Render(title), ""}
		for i, in := range m.formInputs {
			label := fmt.Sprintf("%-13s", featureFormFields[i])
			if i == m.formFocus {
				label = titleStyle.Render(label)
			} else {
				label = labelStyle.Render(label)
			}
			lines = append(lines, label+" "+in.View())
		}
		lines = append(lines, "", hintStyle.Render("tab next • shift+tab prev • enter save • esc cancel"))
		return boxStyle.Width(width).Render(strings.Join(lines, "\n"))

	default:
		title := map[inputMode]string{
			modeQuickAdd:     "New feature",
			modeTagFilter:    "Filter by tags",
			modeOpenDocument: "Open document",
			modeNewBoard:     "New board",
		}[m.mode]
		return boxStyle.Width(width).Render(titleStyle.Render(title) + "\n\n" + m.prompt.View() +
			"\n\n" + hintStyle.Render("enter confirm • esc cancel"))
	}
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
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centres overlay above base.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	canvas.Compose(lipgloss.NewLayer(base).X(0).Y(0).Z(0))
	canvas.Compose(lipgloss.NewLayer(centered).X(0).Y(0).Z(10))
	return canvas.Render()
}
