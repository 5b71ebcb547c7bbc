// Package incidents renders the incident list with a selection cursor and
// expandable drawers.
package incidents

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ainoa/noc-console/internal/model"
	"github.com/ainoa/noc-console/internal/render"
	"github.com/ainoa/noc-console/internal/theme"
)

const minWidth = 40

var (
	styleID = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorBright)

	styleSection = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorDimmed)

	styleDrawer = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(theme.ColorBorder).
			PaddingLeft(1).
			MarginLeft(2)

	styleCursor = lipgloss.NewStyle().
			Foreground(theme.ColorAccent).
			Bold(true)
)

// Model holds the rows and the cursor. The cursor follows the selected
// event id across payloads.
type Model struct {
	Width    int
	rows     []render.IncidentRow
	cursor   int
	selected string

	md *markdown
}

// markdown caches a glamour renderer per wrap width.
type markdown struct {
	style  string
	r      *glamour.TermRenderer
	width  int
	failed bool
}

// New creates an incident list rendering explanations in the dark style.
func New() Model {
	return NewWithStyle("dark")
}

// NewWithStyle picks a glamour standard style ("dark", "light", "notty").
func NewWithStyle(style string) Model {
	return Model{md: &markdown{style: style}}
}

// SetRows replaces the rows. The cursor stays on the same incident when it
// is still present and is clamped otherwise.
func (m *Model) SetRows(rows []render.IncidentRow) {
	m.rows = rows
	if len(rows) == 0 {
		m.cursor = 0
		m.selected = ""
		return
	}
	for i, r := range rows {
		if r.Incident.EventID == m.selected {
			m.cursor = i
			return
		}
	}
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	m.selected = rows[m.cursor].Incident.EventID
}

// Rows returns the current rows.
func (m Model) Rows() []render.IncidentRow {
	return m.rows
}

func (m *Model) MoveUp() {
	if m.cursor > 0 {
		m.cursor--
		m.selected = m.rows[m.cursor].Incident.EventID
	}
}

func (m *Model) MoveDown() {
	if m.cursor < len(m.rows)-1 {
		m.cursor++
		m.selected = m.rows[m.cursor].Incident.EventID
	}
}

// Selected returns the incident under the cursor.
func (m Model) Selected() (model.Incident, bool) {
	if len(m.rows) == 0 {
		return model.Incident{}, false
	}
	return m.rows[m.cursor].Incident, true
}

// View renders the list.
func (m Model) View() string {
	width := m.Width
	if width < minWidth {
		width = minWidth
	}

	header := theme.StyleHeader.Render(fmt.Sprintf("  Incidents (%d)", len(m.rows)))
	if len(m.rows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  No active incidents"))
	}

	lines := []string{header}
	for i, row := range m.rows {
		lines = append(lines, m.renderRow(row, i == m.cursor, width))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(row render.IncidentRow, selected bool, width int) string {
	inc := row.Incident

	pointer := "  "
	if selected {
		pointer = styleCursor.Render("▸ ")
	}
	arrow := "▶"
	if row.Expanded {
		arrow = "▼"
	}

	head := pointer + arrow + " " + styleID.Render(inc.EventID) + " " + theme.StatusBadge(inc.Status)
	loc := theme.StyleDimmed.Render(fmt.Sprintf("    %s - %s", inc.Region, inc.SiteID))
	summary := "    " + inc.Summary

	out := []string{head, loc, summary}
	if row.Expanded {
		out = append(out, styleDrawer.Width(width-6).Render(m.renderDrawer(inc, width-10)))
	}
	return strings.Join(out, "\n")
}

func (m Model) renderDrawer(inc model.Incident, width int) string {
	var b strings.Builder

	writeList(&b, "Evidence", inc.Evidence, "No evidence available")

	b.WriteString(styleSection.Render("Explanation") + "\n")
	if inc.Explanation == "" {
		b.WriteString(theme.StyleDimmed.Render("No explanation available") + "\n")
	} else {
		b.WriteString(m.md.render(inc.Explanation, width) + "\n")
	}

	writeList(&b, "Recommendations", inc.Recommendations, "No recommendations available")
	writeList(&b, "Risks", inc.Risks, "No risks identified")

	b.WriteString(theme.StyleDimmed.Render("[a] approve safe plan  [e] export snapshot  [enter] collapse"))
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string, empty string) {
	b.WriteString(styleSection.Render(title) + "\n")
	if len(items) == 0 {
		b.WriteString(theme.StyleDimmed.Render("  • "+empty) + "\n")
		return
	}
	for _, it := range items {
		b.WriteString("  • " + it + "\n")
	}
}

// render runs text through glamour, falling back to the raw text if the
// renderer cannot be built.
func (md *markdown) render(text string, width int) string {
	if width < 20 {
		width = 20
	}
	if md == nil || md.failed {
		return text
	}
	if md.r == nil || md.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(md.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			md.failed = true
			return text
		}
		md.r, md.width = r, width
	}
	out, err := md.r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
