// Package model defines the wire types exchanged with the UI broker and the
// parse boundary that turns stream frames into payloads.
package model

// IncidentStatus is the lifecycle state of an incident. The set is open:
// values other than the ones below are carried through verbatim.
type IncidentStatus string

const (
	StatusOpen       IncidentStatus = "open"
	StatusMitigating IncidentStatus = "mitigating"
	StatusResolved   IncidentStatus = "resolved"
)

// KPIs are the health metrics reported for a region.
type KPIs struct {
	PacketLossPct   float64 `json:"packet_loss_pct" yaml:"packet_loss_pct"`
	LatencyMs       float64 `json:"latency_ms" yaml:"latency_ms"`
	BackhaulUtilPct float64 `json:"backhaul_util_pct" yaml:"backhaul_util_pct"`
	ThroughputMbps  float64 `json:"throughput_mbps" yaml:"throughput_mbps"`
}

// RegionSnapshot is one region tile. Replaced wholesale on every payload.
type RegionSnapshot struct {
	Name string `json:"name" yaml:"name"`
	KPIs KPIs   `json:"kpis" yaml:"kpis"`
}

// Incident is a network incident keyed by EventID.
type Incident struct {
	EventID         string         `json:"event_id" yaml:"event_id"`
	Region          string         `json:"region" yaml:"region"`
	SiteID          string         `json:"site_id" yaml:"site_id"`
	Status          IncidentStatus `json:"status" yaml:"status"`
	Summary         string         `json:"summary" yaml:"summary"`
	Evidence        []string       `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Explanation     string         `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	Risks           []string       `json:"risks,omitempty" yaml:"risks,omitempty"`
}

// Payload is one full-state message from the broker. Each payload replaces
// all regions and incidents; there is no delta protocol.
type Payload struct {
	Regions     []RegionSnapshot `json:"regions"`
	Incidents   []Incident       `json:"incidents"`
	LastUpdated string           `json:"last_updated,omitempty"`
	TraceID     string           `json:"trace_id,omitempty"`
}

// Clone returns a deep copy of the incident.
func (i Incident) Clone() Incident {
	out := i
	out.Evidence = cloneStrings(i.Evidence)
	out.Recommendations = cloneStrings(i.Recommendations)
	out.Risks = cloneStrings(i.Risks)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
