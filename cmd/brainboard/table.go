package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/evanschultz/brainboard/internal/domain"
)

// tagColorCodes maps palette names to 256-colour codes for terminal output.
var tagColorCodes = map[string]string{
	"blue": "33", "green": "34", "purple": "93", "orange": "208",
	"red": "160", "yellow": "178", "pink": "205", "indigo": "62",
	"cyan": "37", "emerald": "35", "violet": "135", "amber": "214",
}

// renderFeatureTable renders features as a bordered table in board order.
func renderFeatureTable(features []domain.Feature) string {
	if len(features) == 0 {
		return "no features"
	}
	rows := make([][]string, 0, len(features))
	for _, f := range features {
		tags := make([]string, 0, len(f.Tags))
		for _, tag := range f.Tags {
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(tagColorCodes[domain.TagColor(tag)]))
			tags = append(tags, style.Render("#"+tag))
		}
		rows = append(rows, []string{f.ID, f.Phase, f.Title, strings.Join(tags, " ")})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers("ID", "Phase", "Title", "Tags").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Rows(rows...).
		String()
}
