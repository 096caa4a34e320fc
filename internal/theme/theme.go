// Package theme provides the Lip Gloss color palette and reusable styles
// for the sessionguard TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Session state colors.
var (
	ColorActive   = lipgloss.Color("#22c55e")
	ColorWarning  = lipgloss.Color("#d97706")
	ColorCritical = lipgloss.Color("#dc2626")
	ColorExpired  = lipgloss.Color("#6b7280")
)

// Notification colors.
var (
	ColorInfo    = lipgloss.Color("#3b82f6")
	ColorSuccess = lipgloss.Color("#16a34a")
	ColorError   = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorAccent  = lipgloss.Color("#7c3aed")
)

// StateColor returns the color for a monitor state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "active":
		return ColorActive
	case "warning":
		return ColorWarning
	case "critical":
		return ColorCritical
	case "expired":
		return ColorExpired
	default:
		return ColorDimmed
	}
}

// SeverityColor returns the color for a notification severity.
func SeverityColor(severity string) lipgloss.Color {
	switch severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	case "info":
		return ColorInfo
	default:
		return ColorDimmed
	}
}

// SeverityGlyph returns a Unicode glyph for a notification severity.
func SeverityGlyph(severity string) string {
	switch severity {
	case "success":
		return "✓"
	case "warning":
		return "!"
	case "error":
		return "✗"
	case "info":
		return "i"
	default:
		return "·"
	}
}

// StateBadge renders a state name as a colored badge.
func StateBadge(state string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBg).
		Background(StateColor(state)).
		Padding(0, 1).
		Render(state)
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright).
		Background(ColorAccent)
)
