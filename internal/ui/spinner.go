package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// SpinnerModel wraps the bubbles spinner with the CLI's style
type SpinnerModel struct {
	spinner spinner.Model
}

// NewSpinner creates a new spinner
func NewSpinner() *SpinnerModel {
	return &SpinnerModel{spinner: spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(SpinnerStyle),
	)}
}

func (m *SpinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *SpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *SpinnerModel) View() string {
	return m.spinner.View()
}
