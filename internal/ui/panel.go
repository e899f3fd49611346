package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is one labelled line of a panel
type Field struct {
	Label string
	Value string
}

// RenderFields lines up labels and values, skipping empty values
func RenderFields(fields []Field) string {
	width := 0
	for _, f := range fields {
		if f.Value != "" && lipgloss.Width(f.Label) > width {
			width = lipgloss.Width(f.Label)
		}
	}

	var b strings.Builder
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(BoldStyle.Render(f.Label + ":"))
		b.WriteString(strings.Repeat(" ", width-lipgloss.Width(f.Label)+1))
		b.WriteString(f.Value)
	}
	return b.String()
}

// RenderPanel draws a titled, bordered box around the fields
func RenderPanel(title string, fields []Field) string {
	body := TitleStyle.Render(title) + "\n" + RenderFields(fields)
	return PanelBorderStyle.Render(body)
}
