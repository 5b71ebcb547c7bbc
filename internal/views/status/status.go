package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ainoa/noc-console/internal/session"
	"github.com/ainoa/noc-console/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Conn        session.Status
	LastUpdated string
	TraceID     string
	Regions     int
	Incidents   int
	Open        int
	Width       int
	spinner     spinner.Model
}

// New creates a status bar model.
func New() Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorWarning)
	return Model{spinner: sp}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update advances the spinner.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// SetCounts updates the region and incident counts.
func (m *Model) SetCounts(regions, incidents, open int) {
	m.Regions = regions
	m.Incidents = incidents
	m.Open = open
}

// ConnectionLabel describes the connection state in words.
func (m Model) ConnectionLabel() string {
	switch m.Conn.State {
	case session.StateOpen:
		return "● Live"
	case session.StateConnecting:
		if m.Conn.Attempt > 0 {
			return fmt.Sprintf("Connecting (attempt %d)", m.Conn.Attempt+1)
		}
		return "Connecting"
	case session.StateReconnecting:
		return fmt.Sprintf("○ Reconnecting in %s (attempt %d)", m.Conn.Delay, m.Conn.Attempt)
	default:
		return "○ Offline"
	}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var conn string
	switch m.Conn.State {
	case session.StateOpen:
		conn = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render(m.ConnectionLabel())
	case session.StateConnecting:
		conn = m.spinner.View() + " " + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(m.ConnectionLabel())
	default:
		conn = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(m.ConnectionLabel())
	}

	parts := []string{
		conn,
		fmt.Sprintf("%d regions  %d incidents  %d open", m.Regions, m.Incidents, m.Open),
	}
	if m.LastUpdated != "" {
		parts = append(parts, theme.StyleDimmed.Render("updated "+m.LastUpdated))
	}
	if m.TraceID != "" {
		parts = append(parts, theme.StyleDimmed.Render("trace "+m.TraceID))
	}
	if m.Conn.Err != nil && m.Conn.State != session.StateOpen && m.Conn.State != session.StateClosed {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(m.Conn.Err.Error()))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.Join(parts, sep))
}
