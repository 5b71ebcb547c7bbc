// Package theme provides the Lip Gloss color palette and reusable styles
// for the NOC console. It imports only render and model enums so views can
// share it without cycles.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ainoa/noc-console/internal/model"
	"github.com/ainoa/noc-console/internal/render"
)

// Severity colors.
var (
	ColorNormal   = lipgloss.Color("#22c55e")
	ColorWarning  = lipgloss.Color("#d97706")
	ColorCritical = lipgloss.Color("#dc2626")
)

// Incident status colors.
var (
	ColorOpen       = lipgloss.Color("#dc2626")
	ColorMitigating = lipgloss.Color("#d97706")
	ColorResolved   = lipgloss.Color("#16a34a")
	ColorDefault    = lipgloss.Color("#9ca3af")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorAccent  = lipgloss.Color("#06b6d4")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// SeverityColor returns the color for a KPI severity.
func SeverityColor(s render.Severity) lipgloss.Color {
	switch s {
	case render.SeverityCritical:
		return ColorCritical
	case render.SeverityWarning:
		return ColorWarning
	default:
		return ColorNormal
	}
}

// StatusColor returns the color for an incident status. Unknown statuses
// render in the default color.
func StatusColor(s model.IncidentStatus) lipgloss.Color {
	switch s {
	case model.StatusOpen:
		return ColorOpen
	case model.StatusMitigating:
		return ColorMitigating
	case model.StatusResolved:
		return ColorResolved
	default:
		return ColorDefault
	}
}

// StatusBadge renders the status as an uppercase colored badge.
func StatusBadge(s model.IncidentStatus) string {
	label := string(s)
	if label == "" {
		label = "unknown"
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(StatusColor(s)).
		Render("[" + upper(label) + "]")
}

// SeverityGlyph returns a glyph for a severity.
func SeverityGlyph(s render.Severity) string {
	switch s {
	case render.SeverityCritical:
		return "✗"
	case render.SeverityWarning:
		return "▲"
	default:
		return "●"
	}
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
			Foreground(ColorBright)
)

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
