package main

import (
	"github.com/charmbracelet/lipgloss"

	"dockdash/internal/state"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#5aa9ff"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#6b7280"}

	colorRunning = lipgloss.AdaptiveColor{Light: "#15803d", Dark: "#4ade80"}
	colorPaused  = lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#f59e0b"}
	colorFailed  = lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#9a3412", Dark: "#fb923c"}

	colorSelectedBg = lipgloss.AdaptiveColor{Light: "#e5e7eb", Dark: "#1f2937"}
	colorSelectedFg = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#f9fafb"}
	colorStatusBg   = lipgloss.AdaptiveColor{Light: "#f1f5f9", Dark: "#111827"}
	colorModalBg    = lipgloss.AdaptiveColor{Light: "#f8fafc", Dark: "#0f172a"}
	colorModalFg    = lipgloss.AdaptiveColor{Light: "#0f172a", Dark: "#e2e8f0"}

	titleStyle    = lipgloss.NewStyle().Bold(true)
	sectionStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	selectedStyle = lipgloss.NewStyle().Background(colorSelectedBg).Foreground(colorSelectedFg).Bold(true)
	goneStyle     = lipgloss.NewStyle().Foreground(colorMuted).Faint(true)
	warningStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	failedStyle   = lipgloss.NewStyle().Foreground(colorFailed)

	sidebarStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	outputStyle        = lipgloss.NewStyle().Border(lipgloss.NormalBorder())
	outputContentStyle = lipgloss.NewStyle().Padding(0, 1)
	statusBarStyle     = lipgloss.NewStyle().Foreground(colorMuted).Background(colorStatusBg)
	modalStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Background(colorModalBg).Foreground(colorModalFg).Padding(1, 2)
	modalTitleStyle    = lipgloss.NewStyle().Bold(true)
	modalHintStyle     = lipgloss.NewStyle().Foreground(colorMuted)

	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
)

func lifecycleStyle(l state.Lifecycle) lipgloss.Style {
	switch l {
	case state.Running:
		return lipgloss.NewStyle().Foreground(colorRunning)
	case state.Paused, state.Restarting, state.Removing:
		return lipgloss.NewStyle().Foreground(colorPaused)
	case state.Exited:
		return lipgloss.NewStyle().Foreground(colorFailed)
	default:
		return lipgloss.NewStyle().Foreground(colorMuted)
	}
}

const (
	iconRunning = "●"
	iconPaused  = "‖"
	iconStopped = "○"
	iconUnknown = "?"
)

func lifecycleIcon(l state.Lifecycle) string {
	switch l {
	case state.Running:
		return iconRunning
	case state.Paused:
		return iconPaused
	case state.Exited, state.Created:
		return iconStopped
	default:
		return iconUnknown
	}
}

func actionStyle(s state.ActionState) lipgloss.Style {
	switch s {
	case state.ActionSucceeded:
		return lipgloss.NewStyle().Foreground(colorRunning)
	case state.ActionFailed:
		return failedStyle
	default:
		return lipgloss.NewStyle().Foreground(colorPaused)
	}
}
