// Package debug renders the in-console event log: stream transitions,
// command outcomes and dropped frames.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ainoa/noc-console/internal/theme"
)

const maxEntries = 200

// Entry kinds.
const (
	KindStream  = "ws"
	KindCommand = "cmd"
	KindParse   = "prs"
	KindError   = "err"
)

// kinds is the filter cycle order; "" shows everything.
var kinds = []string{"", KindStream, KindCommand, KindParse, KindError}

// Entry is one log line. Repeats of the previous line are folded into it.
type Entry struct {
	Time    time.Time
	Kind    string
	Message string
	Repeats int
}

// Model is the event log with a kind filter and a scroll position counted
// from the newest visible entry.
type Model struct {
	Entries []Entry
	Offset  int
	Filter  string
	totals  map[string]int
	now     func() time.Time
}

func New() Model {
	return Model{now: time.Now, totals: make(map[string]int)}
}

// Add records an event. A message identical to the newest entry bumps its
// repeat count, so a flapping stream does not flood the log.
func (m *Model) Add(kind, message string) {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	if m.totals == nil {
		m.totals = make(map[string]int)
	}
	m.totals[kind]++
	m.Offset = 0

	if n := len(m.Entries); n > 0 {
		last := &m.Entries[n-1]
		if last.Kind == kind && last.Message == message {
			last.Repeats++
			last.Time = now()
			return
		}
	}
	m.Entries = append(m.Entries, Entry{Time: now(), Kind: kind, Message: message})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
}

func (m *Model) Addf(kind, format string, args ...interface{}) {
	m.Add(kind, fmt.Sprintf(format, args...))
}

// Total returns how many events of kind were recorded, repeats included.
func (m Model) Total(kind string) int {
	return m.totals[kind]
}

// CycleFilter steps through all, ws, cmd, prs, err.
func (m *Model) CycleFilter() {
	for i, k := range kinds {
		if k == m.Filter {
			m.Filter = kinds[(i+1)%len(kinds)]
			m.Offset = 0
			return
		}
	}
	m.Filter = ""
}

// Visible returns the entries that pass the filter, oldest first.
func (m Model) Visible() []Entry {
	if m.Filter == "" {
		return m.Entries
	}
	out := make([]Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.Kind == m.Filter {
			out = append(out, e)
		}
	}
	return out
}

func (m *Model) ScrollUp(n int) {
	limit := max(len(m.Visible())-1, 0)
	m.Offset = min(m.Offset+n, limit)
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	rows := max(height-7, 3)

	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
	header := lipgloss.JoinHorizontal(lipgloss.Top, theme.StyleHeader.Render(" EVENT LOG "), "  ", m.counters())
	footer := theme.StyleDimmed.Render("j/k:scroll  f:filter (" + filterLabel(m.Filter) + ")  esc:close")

	entries := m.Visible()
	if len(entries) == 0 {
		empty := "Nothing logged yet."
		if m.Filter != "" {
			empty = "No " + filterLabel(m.Filter) + " events."
		}
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", theme.StyleDimmed.Render("  "+empty), "", footer))
	}

	end := max(len(entries)-m.Offset, 0)
	start := max(end-rows, 0)

	lines := make([]string, 0, end-start)
	for _, e := range entries[start:end] {
		lines = append(lines, renderEntry(e, innerW))
	}

	scroll := ""
	if m.Offset > 0 {
		scroll = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d newer", m.Offset))
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", strings.Join(lines, "\n"), scroll, footer))
}

// counters shows a running total per kind, highlighting the filtered one.
func (m Model) counters() string {
	parts := make([]string, 0, len(kinds)-1)
	for _, k := range kinds[1:] {
		style := lipgloss.NewStyle().Foreground(kindColor(k))
		if m.Filter == k {
			style = style.Bold(true).Underline(true)
		}
		parts = append(parts, style.Render(fmt.Sprintf("%s %d", k, m.totals[k])))
	}
	return strings.Join(parts, theme.StyleDimmed.Render(" · "))
}

func renderEntry(e Entry, width int) string {
	ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
	kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Bold(e.Kind == KindError).Width(4).Render(e.Kind)

	msg := e.Message
	if e.Repeats > 0 {
		msg = fmt.Sprintf("%s (×%d)", msg, e.Repeats+1)
	}
	if room := width - 20; room > 3 && len(msg) > room {
		msg = msg[:room-3] + "..."
	}
	if e.Kind == KindError {
		msg = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(msg)
	}
	return ts + " " + kind + " " + msg
}

func filterLabel(kind string) string {
	if kind == "" {
		return "all"
	}
	return kind
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindStream:
		return theme.ColorAccent
	case KindCommand:
		return theme.ColorHealthy
	case KindParse:
		return theme.ColorWarning
	case KindError:
		return theme.ColorDanger
	default:
		return theme.ColorDimmed
	}
}
