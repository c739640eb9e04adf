package tui

import "github.com/charmbracelet/lipgloss"

// Palette of the build view, keyed by factor outcome.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")).Underline(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110")).MarginTop(1)

	completeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	inertStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).Faint(true)
	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("221"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	skippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("180"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	pidStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true)
	summaryStyle = lipgloss.NewStyle().MarginTop(1).PaddingLeft(1)
)
