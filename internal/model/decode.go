package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned for frames that do not match the payload
// shape. Callers drop such frames and keep their previous state.
var ErrMalformedPayload = errors.New("malformed payload")

// wirePayload uses pointers so missing keys can be told apart from empty
// values.
type wirePayload struct {
	Regions     *[]wireRegion   `json:"regions"`
	Incidents   *[]wireIncident `json:"incidents"`
	LastUpdated string          `json:"last_updated"`
	TraceID     string          `json:"trace_id"`
}

type wireRegion struct {
	Name *string   `json:"name"`
	KPIs *wireKPIs `json:"kpis"`
}

// wireKPIs rejects absent and null metrics; a zero would otherwise render
// as a healthy tile.
type wireKPIs struct {
	PacketLossPct   *float64 `json:"packet_loss_pct"`
	LatencyMs       *float64 `json:"latency_ms"`
	BackhaulUtilPct *float64 `json:"backhaul_util_pct"`
	ThroughputMbps  *float64 `json:"throughput_mbps"`
}

func (w *wireKPIs) kpis() (KPIs, error) {
	fields := []struct {
		name string
		v    *float64
	}{
		{"packet_loss_pct", w.PacketLossPct},
		{"latency_ms", w.LatencyMs},
		{"backhaul_util_pct", w.BackhaulUtilPct},
		{"throughput_mbps", w.ThroughputMbps},
	}
	for _, f := range fields {
		if f.v == nil {
			return KPIs{}, fmt.Errorf("missing %s", f.name)
		}
	}
	return KPIs{
		PacketLossPct:   *w.PacketLossPct,
		LatencyMs:       *w.LatencyMs,
		BackhaulUtilPct: *w.BackhaulUtilPct,
		ThroughputMbps:  *w.ThroughputMbps,
	}, nil
}

// Summary and the list fields stay optional; the drawer has fallback text
// for them.
type wireIncident struct {
	Incident
	EventID *string         `json:"event_id"`
	Region  *string         `json:"region"`
	SiteID  *string         `json:"site_id"`
	Status  *IncidentStatus `json:"status"`
}

// DecodePayload parses one stream frame. Every failure wraps
// ErrMalformedPayload.
func DecodePayload(data []byte) (Payload, error) {
	var w wirePayload
	if err := json.Unmarshal(data, &w); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if w.Regions == nil {
		return Payload{}, fmt.Errorf("%w: missing regions", ErrMalformedPayload)
	}
	if w.Incidents == nil {
		return Payload{}, fmt.Errorf("%w: missing incidents", ErrMalformedPayload)
	}

	p := Payload{
		Regions:     make([]RegionSnapshot, 0, len(*w.Regions)),
		Incidents:   make([]Incident, 0, len(*w.Incidents)),
		LastUpdated: w.LastUpdated,
		TraceID:     w.TraceID,
	}

	for i, r := range *w.Regions {
		if r.Name == nil || *r.Name == "" {
			return Payload{}, fmt.Errorf("%w: region %d has no name", ErrMalformedPayload, i)
		}
		if r.KPIs == nil {
			return Payload{}, fmt.Errorf("%w: region %q has no kpis", ErrMalformedPayload, *r.Name)
		}
		kpis, err := r.KPIs.kpis()
		if err != nil {
			return Payload{}, fmt.Errorf("%w: region %q: %v", ErrMalformedPayload, *r.Name, err)
		}
		p.Regions = append(p.Regions, RegionSnapshot{Name: *r.Name, KPIs: kpis})
	}

	seen := make(map[string]bool, len(*w.Incidents))
	for i, wi := range *w.Incidents {
		if wi.EventID == nil || *wi.EventID == "" {
			return Payload{}, fmt.Errorf("%w: incident %d has no event_id", ErrMalformedPayload, i)
		}
		id := *wi.EventID
		if seen[id] {
			return Payload{}, fmt.Errorf("%w: duplicate event_id %q", ErrMalformedPayload, id)
		}
		seen[id] = true
		switch {
		case wi.Region == nil:
			return Payload{}, fmt.Errorf("%w: incident %q has no region", ErrMalformedPayload, id)
		case wi.SiteID == nil:
			return Payload{}, fmt.Errorf("%w: incident %q has no site_id", ErrMalformedPayload, id)
		case wi.Status == nil || *wi.Status == "":
			return Payload{}, fmt.Errorf("%w: incident %q has no status", ErrMalformedPayload, id)
		}
		inc := wi.Incident
		inc.EventID = id
		inc.Region = *wi.Region
		inc.SiteID = *wi.SiteID
		inc.Status = *wi.Status
		p.Incidents = append(p.Incidents, inc)
	}

	return p, nil
}
