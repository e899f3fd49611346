package ui

import "github.com/charmbracelet/lipgloss"

// ProgressColor fills the upload progress bars
const ProgressColor = "#F26B1D"

var (
	// Status colors
	GreenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	RedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	YellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	CyanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	BoldStyle   = lipgloss.NewStyle().Bold(true)

	// Progress states
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	PendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	StatsStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	SpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)

	PanelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("208")).
				Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)
