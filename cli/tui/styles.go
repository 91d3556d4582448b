// Package tui provides the Bubble Tea progress view for deckhand run.
//
// The watch view is opt-in only (--watch flag) and read-only: it renders the
// same notification events every other sink receives, nothing more.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for TUI components.
var (
	// TitleStyle for the run header.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(12)

	// SuccessStyle for completed phases.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for phases with failed tasks.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for aborted runs.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// PendingStyle for phases not yet reached.
	PendingStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)
