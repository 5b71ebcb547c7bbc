// Package tiles renders one card per region with its KPIs colored by
// severity and a spring-smoothed backhaul meter.
package tiles

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/ainoa/noc-console/internal/render"
	"github.com/ainoa/noc-console/internal/theme"
)

const (
	fps       = 30
	tileWidth = 30
	meterBars = 20
	settleEps = 0.05
)

// FrameMsg advances the meter animation by one frame.
type FrameMsg struct{}

type meter struct {
	pos, vel, target float64
}

func (mt *meter) settled() bool {
	return math.Abs(mt.pos-mt.target) < settleEps && math.Abs(mt.vel) < settleEps
}

// Model holds the current tiles and meter positions.
type Model struct {
	Width     int
	tiles     []render.Tile
	meters    map[string]*meter
	spring    harmonica.Spring
	animating bool
}

// New creates an empty tile grid.
func New() Model {
	return Model{
		meters: make(map[string]*meter),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.7),
	}
}

// SetTiles replaces the tiles. Meters for regions that disappeared are
// dropped; the returned command starts the animation when needed.
func (m *Model) SetTiles(tiles []render.Tile) tea.Cmd {
	m.tiles = tiles
	next := make(map[string]*meter, len(tiles))
	for _, t := range tiles {
		mt, ok := m.meters[t.Region]
		if !ok {
			mt = &meter{}
		}
		if bh, ok := t.Metric(render.LabelBackhaulUtil); ok {
			mt.target = clampPct(bh.Value)
		}
		next[t.Region] = mt
	}
	m.meters = next

	if m.animating || m.allSettled() {
		return nil
	}
	m.animating = true
	return frame()
}

// Tiles returns the tiles currently shown.
func (m Model) Tiles() []render.Tile {
	return m.tiles
}

// Meter returns the displayed backhaul value for region.
func (m Model) Meter(region string) (float64, bool) {
	mt, ok := m.meters[region]
	if !ok {
		return 0, false
	}
	return mt.pos, true
}

// Update steps the springs on FrameMsg.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok {
		return m, nil
	}
	for _, mt := range m.meters {
		mt.pos, mt.vel = m.spring.Update(mt.pos, mt.vel, mt.target)
		if mt.settled() {
			mt.pos, mt.vel = mt.target, 0
		}
	}
	if m.allSettled() {
		m.animating = false
		return m, nil
	}
	return m, frame()
}

func (m Model) allSettled() bool {
	for _, mt := range m.meters {
		if !mt.settled() {
			return false
		}
	}
	return true
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

// View renders the tiles in as many columns as fit.
func (m Model) View() string {
	if len(m.tiles) == 0 {
		return theme.StyleDimmed.Render("  Waiting for region telemetry…")
	}
	cols := m.Width / (tileWidth + 2)
	if cols < 1 {
		cols = 1
	}

	var rows []string
	for i := 0; i < len(m.tiles); i += cols {
		end := i + cols
		if end > len(m.tiles) {
			end = len(m.tiles)
		}
		cards := make([]string, 0, end-i)
		for _, t := range m.tiles[i:end] {
			cards = append(cards, m.renderTile(t))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderTile(t render.Tile) string {
	worst := t.Worst()
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBright).Render(t.Region)
	badge := lipgloss.NewStyle().Foreground(theme.SeverityColor(worst)).Render(theme.SeverityGlyph(worst))

	lines := []string{title + " " + badge}
	for _, metric := range t.Metrics {
		value := lipgloss.NewStyle().Foreground(theme.SeverityColor(metric.Severity)).
			Render(formatValue(metric))
		lines = append(lines, theme.StyleDimmed.Width(15).Render(metric.Label)+value)
	}
	if mt, ok := m.meters[t.Region]; ok {
		sev := render.SeverityNormal
		if bh, ok := t.Metric(render.LabelBackhaulUtil); ok {
			sev = bh.Severity
		}
		lines = append(lines, renderMeter(mt.pos, sev))
	}

	return lipgloss.NewStyle().
		Width(tileWidth).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.SeverityColor(worst)).
		Render(strings.Join(lines, "\n"))
}

func renderMeter(pct float64, sev render.Severity) string {
	filled := int(math.Round(clampPct(pct) / 100 * meterBars))
	color := theme.SeverityColor(sev)
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("░", meterBars-filled))
}

func formatValue(m render.Metric) string {
	if m.Label == render.LabelPacketLoss {
		return fmt.Sprintf("%.2f%s", m.Value, m.Unit)
	}
	if m.Unit == "%" {
		return fmt.Sprintf("%.1f%s", m.Value, m.Unit)
	}
	return fmt.Sprintf("%.1f %s", m.Value, m.Unit)
}

func clampPct(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
