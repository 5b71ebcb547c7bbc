package broker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ainoa/noc-console/internal/model"
)

const (
	lossThresholdPct   = 5.0
	latencyThresholdMs = 150.0
)

// Observation is the outcome of folding one telemetry sample into the store.
type Observation struct {
	KPIs     model.KPIs
	Shown    bool            // the region has a tile
	Incident *model.Incident // opened by this sample, if any
}

// Changed reports whether clients should be sent new state.
func (o Observation) Changed() bool {
	return o.Shown || o.Incident != nil
}

// Observe ingests rec and opens an incident when the raw sample breaches a
// threshold and the region has no active incident.
func (s *Store) Observe(rec TelemetryRecord) Observation {
	kpis, shown := s.Ingest(rec)
	obs := Observation{KPIs: kpis, Shown: shown}

	rules := triggeredRules(rec)
	if len(rules) == 0 {
		return obs
	}
	inc := newIncident(rec, rules)
	if added, err := s.AddIncidentIfNoneActive(inc); err != nil || !added {
		return obs
	}
	obs.Incident = &inc
	return obs
}

func triggeredRules(rec TelemetryRecord) []string {
	var rules []string
	if rec.PacketLossPct > lossThresholdPct {
		rules = append(rules, "high_packet_loss_pct")
	}
	if rec.LatencyMs > latencyThresholdMs {
		rules = append(rules, "high_latency_ms")
	}
	return rules
}

func newIncident(rec TelemetryRecord, rules []string) model.Incident {
	site := rec.SiteID
	if site == "" {
		site = "unknown"
	}
	severity, label := "warning", "Warning"
	if len(rules) > 1 {
		severity, label = "critical", "Critical"
	}

	var explanation strings.Builder
	fmt.Fprintf(&explanation, "**Backhaul congestion** suspected at `%s`.\n\n", site)
	fmt.Fprintf(&explanation, "Rules fired: %s (severity *%s*).\n\n", strings.Join(rules, ", "), severity)
	explanation.WriteString("Heavy user load is saturating the available transport capacity. ")
	explanation.WriteString("Offloading part of the traffic to a neighbouring site should relieve the queue.")

	return model.Incident{
		EventID: "evt_" + uuid.NewString(),
		Region:  rec.Region,
		SiteID:  site,
		Status:  model.StatusOpen,
		Summary: fmt.Sprintf("%s congestion in %s (%.1f%% loss, %.0f ms)", label, rec.Region, rec.PacketLossPct, rec.LatencyMs),
		Evidence: []string{
			fmt.Sprintf("packet_loss_pct=%.2f (threshold %.0f)", rec.PacketLossPct, lossThresholdPct),
			fmt.Sprintf("latency_ms=%.1f (threshold %.0f)", rec.LatencyMs, latencyThresholdMs),
			fmt.Sprintf("backhaul_util_pct=%.1f", rec.BackhaulUtilPct),
		},
		Explanation: explanation.String(),
		Recommendations: []string{
			"Offload ~20% of traffic to a neighbouring site",
			"Add one unit of backhaul capacity",
		},
		Risks: []string{
			"Neighbour site latency may rise by ~10 ms",
			"Handover failures during the reroute window",
		},
	}
}
