package render

import (
	"testing"

	"github.com/ainoa/noc-console/internal/model"
)

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		threshold Threshold
		value     float64
		want      Severity
	}{
		{"loss just below warning", PacketLossThreshold, 4.999, SeverityNormal},
		{"loss at warning", PacketLossThreshold, 5, SeverityWarning},
		{"loss between", PacketLossThreshold, 7.5, SeverityWarning},
		{"loss at critical", PacketLossThreshold, 10, SeverityCritical},
		{"loss above critical", PacketLossThreshold, 42, SeverityCritical},
		{"latency below", LatencyThreshold, 79.9, SeverityNormal},
		{"latency at warning", LatencyThreshold, 80, SeverityWarning},
		{"latency at critical", LatencyThreshold, 120, SeverityCritical},
		{"backhaul below", BackhaulUtilThreshold, 74.99, SeverityNormal},
		{"backhaul at warning", BackhaulUtilThreshold, 75, SeverityWarning},
		{"backhaul at critical", BackhaulUtilThreshold, 85, SeverityCritical},
		{"zero", PacketLossThreshold, 0, SeverityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.threshold.Classify(tt.value); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestProjectRegions(t *testing.T) {
	regions := []model.RegionSnapshot{
		{Name: "NorthEast", KPIs: model.KPIs{PacketLossPct: 12.45, LatencyMs: 95, BackhaulUtilPct: 91, ThroughputMbps: 99999}},
		{Name: "West", KPIs: model.KPIs{PacketLossPct: 1.5, LatencyMs: 39.8, BackhaulUtilPct: 49.7, ThroughputMbps: 534.2}},
	}

	tiles := ProjectRegions(regions)
	if len(tiles) != 2 {
		t.Fatalf("expected 2 tiles, got %d", len(tiles))
	}
	if tiles[0].Region != "NorthEast" || tiles[1].Region != "West" {
		t.Fatalf("tile order = %s, %s", tiles[0].Region, tiles[1].Region)
	}

	want := map[string]Severity{
		LabelPacketLoss:   SeverityCritical,
		LabelLatency:      SeverityWarning,
		LabelBackhaulUtil: SeverityCritical,
		LabelThroughput:   SeverityNormal,
	}
	for label, sev := range want {
		m, ok := tiles[0].Metric(label)
		if !ok {
			t.Fatalf("tile missing metric %q", label)
		}
		if m.Severity != sev {
			t.Errorf("%s severity = %s, want %s", label, m.Severity, sev)
		}
	}
	if tiles[0].Worst() != SeverityCritical {
		t.Errorf("NorthEast worst = %s, want critical", tiles[0].Worst())
	}
	if tiles[1].Worst() != SeverityNormal {
		t.Errorf("West worst = %s, want normal", tiles[1].Worst())
	}
}

func TestProjectIncidentsPreservesOrderAndFlags(t *testing.T) {
	incidents := []model.Incident{{EventID: "B"}, {EventID: "A"}, {EventID: "C"}}
	view := map[string]bool{"A": true, "C": false}

	rows := ProjectIncidents(incidents, view)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	wantIDs := []string{"B", "A", "C"}
	wantExpanded := []bool{false, true, false}
	for i := range rows {
		if rows[i].Incident.EventID != wantIDs[i] {
			t.Errorf("row %d id = %s, want %s", i, rows[i].Incident.EventID, wantIDs[i])
		}
		if rows[i].Expanded != wantExpanded[i] {
			t.Errorf("row %d expanded = %v, want %v", i, rows[i].Expanded, wantExpanded[i])
		}
	}
	if len(view) != 2 {
		t.Error("ProjectIncidents must not add keys to the view state")
	}
}
