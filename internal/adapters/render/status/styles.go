package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	slot    lipgloss.Style
	detail  lipgloss.Style
	live    lipgloss.Style
	failed  lipgloss.Style
	idle    lipgloss.Style
	section lipgloss.Style
	empty   lipgloss.Style
	metaKey lipgloss.Style
	preview lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		slot:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		live:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		failed:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		idle:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		section: lipgloss.NewStyle().MarginTop(1),
		empty:   lipgloss.NewStyle().Faint(true),
		metaKey: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		preview: lipgloss.NewStyle().Faint(true),
	}
}
