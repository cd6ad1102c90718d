package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/evanschultz/brainboard/internal/domain"
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

	wrapWidth := max(width, 24)
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

// featureMarkdown lays out one feature as a markdown document for the detail view.
func featureMarkdown(f domain.Feature) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", f.Title)
	fmt.Fprintf(&b, "**Phase:** %s\n\n", f.Phase)
	if len(f.Tags) > 0 {
		fmt.Fprintf(&b, "**Tags:** %s\n\n", "`"+strings.Join(f.Tags, "` `")+"`")
	}
	if f.UserProblem != "" {
		fmt.Fprintf(&b, "## User problem\n\n%s\n\n", f.UserProblem)
	}
	if f.Description != "" {
		fmt.Fprintf(&b, "## Description\n\n%s\n\n", f.Description)
	}
	if len(f.KeyComponents) > 0 {
		b.WriteString("## Key components\n\n")
		for _, component := range f.KeyComponents {
			fmt.Fprintf(&b, "- %s\n", component)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "_id: %s_\n", f.ID)
	return b.String()
}
