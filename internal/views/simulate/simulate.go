// Package simulate renders the what-if panel: scenario, levers, and the
// latest prediction.
package simulate

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ainoa/noc-console/internal/command"
	"github.com/ainoa/noc-console/internal/theme"
)

const (
	multiplierStep = 0.1
	multiplierMin  = 0.1
	multiplierMax  = 5.0
	capacityMin    = -10
	capacityMax    = 10
)

var (
	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(14)

	styleStale = lipgloss.NewStyle().
			Foreground(theme.ColorWarning).
			Bold(true)

	styleError = lipgloss.NewStyle().
			Foreground(theme.ColorDanger)
)

// Model holds the lever positions and the last result.
type Model struct {
	Width   int
	Input   command.SimulationInput
	Running bool
	Result  *command.SimulationResult
	Err     error
}

// New creates the panel with the given starting scenario and levers.
func New(in command.SimulationInput) Model {
	if in.TrafficMultiplier <= 0 {
		in.TrafficMultiplier = 1.0
	}
	return Model{Input: in}
}

// SetScenario points the levers at an incident.
func (m *Model) SetScenario(eventID, region, siteID string) {
	m.Input.EventID = eventID
	m.Input.Region = region
	m.Input.SiteID = siteID
}

// AdjustMultiplier moves the traffic multiplier by steps of 0.1.
func (m *Model) AdjustMultiplier(steps int) {
	v := m.Input.TrafficMultiplier + float64(steps)*multiplierStep
	v = math.Round(v*10) / 10
	m.Input.TrafficMultiplier = math.Max(multiplierMin, math.Min(multiplierMax, v))
}

// AdjustCapacity moves the capacity delta by whole units.
func (m *Model) AdjustCapacity(delta int) {
	v := m.Input.CapacityDelta + delta
	if v < capacityMin {
		v = capacityMin
	}
	if v > capacityMax {
		v = capacityMax
	}
	m.Input.CapacityDelta = v
}

// Begin marks a run as in flight and returns the request stamped with the
// model generation it was issued against.
func (m *Model) Begin(generation uint64) command.SimulationInput {
	m.Running = true
	in := m.Input
	in.Generation = generation
	return in
}

// Finish records a result or an error. Results replace the previous one
// regardless of issue order.
func (m *Model) Finish(res *command.SimulationResult, err error) {
	m.Running = false
	if err != nil {
		m.Err = err
		return
	}
	m.Err = nil
	m.Result = res
}

// View renders the panel. generation is the current model generation, used
// to flag results computed against older state.
func (m Model) View(generation uint64) string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render("What-if simulation") + "\n")

	in := m.Input
	writeRow(&b, "Scenario", fmt.Sprintf("%s  %s / %s", in.EventID, in.Region, in.SiteID))
	writeRow(&b, "Traffic", fmt.Sprintf("×%.1f", in.TrafficMultiplier))
	writeRow(&b, "Capacity", fmt.Sprintf("%+d units", in.CapacityDelta))

	switch {
	case m.Running:
		b.WriteString(theme.StyleDimmed.Render("running…") + "\n")
	case m.Err != nil:
		b.WriteString(styleError.Render("simulation failed: "+m.Err.Error()) + "\n")
	}

	if r := m.Result; r != nil {
		b.WriteString("\n")
		if r.Stale(generation) {
			b.WriteString(styleStale.Render("⚠ stale: state changed since this run") + "\n")
		}
		writeRow(&b, "Packet loss", fmt.Sprintf("%.2f%%", r.PredPacketLossPct))
		writeRow(&b, "Latency", fmt.Sprintf("%.1f ms", r.PredLatencyMs))
		writeRow(&b, "Blocking", fmt.Sprintf("%.3f", r.PredBlockingProb))
		if len(r.Assumptions) > 0 {
			b.WriteString(styleLabel.Render("Assumptions") + "\n")
			for _, a := range r.Assumptions {
				b.WriteString("  • " + a + "\n")
			}
		}
		b.WriteString(theme.StyleDimmed.Render("trace "+r.TraceID) + "\n")
	}

	b.WriteString(theme.StyleDimmed.Render("[s] run  [+/-] traffic  [ [ / ] ] capacity"))

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(b.String())
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + value + "\n")
}
