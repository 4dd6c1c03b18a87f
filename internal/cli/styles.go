// Package cli renders journal outcomes, reports and streaks for the terminal.
package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/lifelog/internal/model"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#7D56F4")
	// SuccessColor marks accepted entries and kept habits.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// WarningColor marks slipping adherence.
	WarningColor = lipgloss.Color("#FFE66D")
	// ErrorColor marks rejections and critical alerts.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// InfoColor marks neutral notices.
	InfoColor = lipgloss.Color("#95E1D3")
	// SubtleColor is used for checksums and missed days.
	SubtleColor = lipgloss.Color("#666666")
	// StreakColor highlights an active streak.
	StreakColor = lipgloss.Color("#FF9F1C")

	// TitleStyle is used for report titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle    = lipgloss.NewStyle().Bold(true)

	// StreakStyle renders an active streak count.
	StreakStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(StreakColor)

	// LoggedDayStyle and MissedDayStyle draw the adherence pattern.
	LoggedDayStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	MissedDayStyle = lipgloss.NewStyle().Foreground(SubtleColor)

	// BoxStyle is used for import summaries.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// TableHeaderStyle is used above habit tables.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(lipgloss.Color("#333"))
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	JournalIcon = "📓"
	ChartIcon   = "📊"
	FireIcon    = "🔥"

	LoggedDay = "■"
	MissedDay = "□"
)

// Adherence thresholds for coloring percentages.
const (
	fullAdherence = 100
	lowAdherence  = 80
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the journal icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(JournalIcon + " " + title)
}

// FormatAlert picks the icon and color for an alert level.
func FormatAlert(alert model.Alert) string {
	switch alert.Level {
	case model.AlertCritical:
		return FormatError(alert.Message)
	case model.AlertWarning:
		return FormatWarning(alert.Message)
	default:
		return FormatSuccess(alert.Message)
	}
}

// FormatStreak renders a streak count, lit up while it is running.
func FormatStreak(current, longest int) string {
	text := fmt.Sprintf("%d current, %d longest", current, longest)
	if current == 0 {
		return text
	}
	return StreakStyle.Render(FireIcon + " " + text)
}

// FormatAdherence colors a percentage: full is green, under 80 is red.
func FormatAdherence(pct int) string {
	text := fmt.Sprintf("%d%%", pct)
	switch {
	case pct >= fullAdherence:
		return SuccessStyle.Render(text)
	case pct < lowAdherence:
		return ErrorStyle.Render(text)
	default:
		return WarningStyle.Render(text)
	}
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	boxContent := lipgloss.JoinVertical(
		lipgloss.Left,
		boxTitle,
		content,
	)

	return BoxStyle.Render(boxContent)
}
