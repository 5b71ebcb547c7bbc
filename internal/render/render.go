// Package render projects reconciled state into display descriptors. It is
// pure: nothing here mutates the model.
package render

import "github.com/ainoa/noc-console/internal/model"

// Severity classifies a KPI value.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Threshold holds the warning and critical bounds for a KPI. Both bounds
// are inclusive.
type Threshold struct {
	Warning  float64
	Critical float64
}

// Fixed KPI thresholds. Throughput has none.
var (
	PacketLossThreshold   = Threshold{Warning: 5, Critical: 10}
	LatencyThreshold      = Threshold{Warning: 80, Critical: 120}
	BackhaulUtilThreshold = Threshold{Warning: 75, Critical: 85}
)

// Classify maps value to a severity.
func Classify(value, warning, critical float64) Severity {
	switch {
	case value >= critical:
		return SeverityCritical
	case value >= warning:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// Classify applies the threshold to value.
func (t Threshold) Classify(value float64) Severity {
	return Classify(value, t.Warning, t.Critical)
}

// Metric is one KPI cell of a tile.
type Metric struct {
	Label    string
	Value    float64
	Unit     string
	Severity Severity
}

// Tile describes one region card.
type Tile struct {
	Region  string
	Metrics []Metric
}

// Worst returns the most severe metric severity on the tile.
func (t Tile) Worst() Severity {
	worst := SeverityNormal
	for _, m := range t.Metrics {
		switch m.Severity {
		case SeverityCritical:
			return SeverityCritical
		case SeverityWarning:
			worst = SeverityWarning
		}
	}
	return worst
}

// Metric returns the metric with the given label.
func (t Tile) Metric(label string) (Metric, bool) {
	for _, m := range t.Metrics {
		if m.Label == label {
			return m, true
		}
	}
	return Metric{}, false
}

// Metric labels, in display order.
const (
	LabelPacketLoss   = "Packet Loss"
	LabelLatency      = "Latency"
	LabelBackhaulUtil = "Backhaul Util"
	LabelThroughput   = "Throughput"
)

// ProjectRegions returns one tile per region, in input order.
func ProjectRegions(regions []model.RegionSnapshot) []Tile {
	tiles := make([]Tile, 0, len(regions))
	for _, r := range regions {
		k := r.KPIs
		tiles = append(tiles, Tile{
			Region: r.Name,
			Metrics: []Metric{
				{Label: LabelPacketLoss, Value: k.PacketLossPct, Unit: "%", Severity: PacketLossThreshold.Classify(k.PacketLossPct)},
				{Label: LabelLatency, Value: k.LatencyMs, Unit: "ms", Severity: LatencyThreshold.Classify(k.LatencyMs)},
				{Label: LabelBackhaulUtil, Value: k.BackhaulUtilPct, Unit: "%", Severity: BackhaulUtilThreshold.Classify(k.BackhaulUtilPct)},
				{Label: LabelThroughput, Value: k.ThroughputMbps, Unit: "Mbps", Severity: SeverityNormal},
			},
		})
	}
	return tiles
}

// IncidentRow is one incident entry with its drawer flag.
type IncidentRow struct {
	Incident model.Incident
	Expanded bool
}

// ProjectIncidents returns one row per incident, in input order, annotated
// with the drawer flag from view. Missing keys mean collapsed.
func ProjectIncidents(incidents []model.Incident, view map[string]bool) []IncidentRow {
	rows := make([]IncidentRow, 0, len(incidents))
	for _, inc := range incidents {
		rows = append(rows, IncidentRow{
			Incident: inc.Clone(),
			Expanded: view[inc.EventID],
		})
	}
	return rows
}
