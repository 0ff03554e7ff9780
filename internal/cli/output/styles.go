package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles shared by all text-mode rendering.
// Colors degrade automatically when the terminal does not support them.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// StepName styles pipeline step and dataset names in listings.
	StepName lipgloss.Style

	// Status glyphs carry their character via SetString, so call
	// String() to render them.
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusSkipped lipgloss.Style
}

func defaultStyles() Styles {
	return Styles{
		Header1:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Header2:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		Bold:          lipgloss.NewStyle().Bold(true),
		Muted:         lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Info:          lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		Success:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Warning:       lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Error:         lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		StepName:      lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
		StatusSuccess: lipgloss.NewStyle().SetString("✓").Foreground(lipgloss.Color("42")),
		StatusFailed:  lipgloss.NewStyle().SetString("✗").Foreground(lipgloss.Color("196")),
		StatusSkipped: lipgloss.NewStyle().SetString("○").Foreground(lipgloss.Color("245")),
	}
}
