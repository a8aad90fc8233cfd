package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary = lipgloss.Color("#7C3AED")

	ColorSuccess = lipgloss.Color("#10B981")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorError   = lipgloss.Color("#EF4444")
	ColorInfo    = lipgloss.Color("#3B82F6")

	ColorTextMuted = lipgloss.Color("#9CA3AF")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	InfoStyle    = lipgloss.NewStyle().Foreground(ColorInfo)
	DimStyle     = lipgloss.NewStyle().Foreground(ColorTextMuted)

	// DeletedStyle marks soft deleted apps.
	DeletedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Strikethrough(true)

	// Kind badges of release history rows.
	DeploymentBadge = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
	ScaleBadge      = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
)
