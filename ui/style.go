package ui

import "github.com/charmbracelet/lipgloss"

var (
	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boldStyle = lipgloss.NewStyle().Bold(true)
)

// Good renders text in the success color.
func Good(text string) string {
	return goodStyle.Render(text)
}

// Bad renders text in the error color.
func Bad(text string) string {
	return badStyle.Render(text)
}

// Warn renders text in the warning color.
func Warn(text string) string {
	return warnStyle.Render(text)
}

// Bold renders text emphasized.
func Bold(text string) string {
	return boldStyle.Render(text)
}
