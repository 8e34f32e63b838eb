package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

const maxHelpWidth = 78

var keyword = lipgloss.NewStyle().
	Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#ECFD65"}).
	Render

// paragraph wraps help copy at a consistent width with a small indent.
func paragraph(s string) string {
	return wordwrap.String(indent.String(s, 2), maxHelpWidth)
}
