package ui

import "github.com/charmbracelet/lipgloss"

// Basic ANSI colors only, so the styles degrade well on any terminal.
var (
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	LabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)

	WarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)
