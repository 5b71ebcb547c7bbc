package broker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ainoa/noc-console/internal/model"
)

var (
	ErrDuplicateIncident = errors.New("duplicate event_id")
	ErrMissingEventID    = errors.New("missing event_id")
)

// TelemetryRecord is one sample posted to /api/ingest/telemetry.
type TelemetryRecord struct {
	Region          string  `json:"region"`
	SiteID          string  `json:"site_id,omitempty"`
	PacketLossPct   float64 `json:"packet_loss_pct"`
	LatencyMs       float64 `json:"latency_ms"`
	BackhaulUtilPct float64 `json:"backhaul_util_pct"`
	ThroughputMbps  float64 `json:"throughput_mbps"`
}

type regionAverage struct {
	kpis    model.KPIs
	samples int
}

// Store holds the authoritative UI state served to every client.
type Store struct {
	mu        sync.RWMutex
	regions   []model.RegionSnapshot
	incidents []model.Incident
	averages  map[string]*regionAverage
	alpha     float64
	traceID   string
	now       func() time.Time
}

// NewStore creates a store seeded with the given regions and incidents.
func NewStore(seed Seed, alpha float64) *Store {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	s := &Store{
		averages: make(map[string]*regionAverage),
		alpha:    alpha,
		now:      time.Now,
	}
	s.regions = append(s.regions, seed.Regions...)
	for _, inc := range seed.Incidents {
		if inc.Status == "" {
			inc.Status = model.StatusOpen
		}
		s.incidents = append(s.incidents, inc.Clone())
	}
	s.traceID = fmt.Sprintf("trace_ui_%d", s.now().Unix())
	return s
}

// Snapshot returns a copy of the full state, stamped with the current time.
func (s *Store) Snapshot() model.Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := model.Payload{
		Regions:     make([]model.RegionSnapshot, len(s.regions)),
		Incidents:   make([]model.Incident, 0, len(s.incidents)),
		LastUpdated: s.now().UTC().Format(time.RFC3339Nano),
		TraceID:     s.traceID,
	}
	copy(p.Regions, s.regions)
	for _, inc := range s.incidents {
		p.Incidents = append(p.Incidents, inc.Clone())
	}
	return p
}

// Approve marks the incident as mitigating. It reports whether the incident
// exists.
func (s *Store) Approve(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for i := range s.incidents {
		if s.incidents[i].EventID == eventID {
			s.incidents[i].Status = model.StatusMitigating
			found = true
		}
	}
	return found
}

// AddIncident appends an incident. Event ids must be unique, otherwise
// every client would reject the resulting payloads.
func (s *Store) AddIncident(inc model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(inc)
}

// AddIncidentIfNoneActive appends inc unless its region already has an
// active incident. The check and the append happen under one lock.
func (s *Store) AddIncidentIfNoneActive(inc model.Incident) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasActiveLocked(inc.Region) {
		return false, nil
	}
	if err := s.addLocked(inc); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) addLocked(inc model.Incident) error {
	if inc.EventID == "" {
		return ErrMissingEventID
	}
	for _, existing := range s.incidents {
		if existing.EventID == inc.EventID {
			return fmt.Errorf("%w: %s", ErrDuplicateIncident, inc.EventID)
		}
	}
	if inc.Status == "" {
		inc.Status = model.StatusOpen
	}
	s.incidents = append(s.incidents, inc.Clone())
	return nil
}

// HasActiveIncident reports whether region has an incident that is not
// resolved.
func (s *Store) HasActiveIncident(region string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasActiveLocked(region)
}

func (s *Store) hasActiveLocked(region string) bool {
	for _, inc := range s.incidents {
		if inc.Region == region && inc.Status != model.StatusResolved {
			return true
		}
	}
	return false
}

// IncidentCount returns the number of incidents.
func (s *Store) IncidentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.incidents)
}

// Regions returns the region names in display order.
func (s *Store) Regions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.regions))
	for _, r := range s.regions {
		names = append(names, r.Name)
	}
	return names
}

// Ingest folds a telemetry sample into the region's moving average. The
// average starts from zero. The region tile is updated when the region is
// displayed; it reports whether that happened.
func (s *Store) Ingest(rec TelemetryRecord) (model.KPIs, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	avg, ok := s.averages[rec.Region]
	if !ok {
		avg = &regionAverage{}
		s.averages[rec.Region] = avg
	}
	a := s.alpha
	avg.kpis.PacketLossPct = a*rec.PacketLossPct + (1-a)*avg.kpis.PacketLossPct
	avg.kpis.LatencyMs = a*rec.LatencyMs + (1-a)*avg.kpis.LatencyMs
	avg.kpis.BackhaulUtilPct = a*rec.BackhaulUtilPct + (1-a)*avg.kpis.BackhaulUtilPct
	avg.kpis.ThroughputMbps = a*rec.ThroughputMbps + (1-a)*avg.kpis.ThroughputMbps
	avg.samples++

	rounded := model.KPIs{
		PacketLossPct:   round(avg.kpis.PacketLossPct, 2),
		LatencyMs:       round(avg.kpis.LatencyMs, 1),
		BackhaulUtilPct: round(avg.kpis.BackhaulUtilPct, 1),
		ThroughputMbps:  round(avg.kpis.ThroughputMbps, 1),
	}
	for i := range s.regions {
		if s.regions[i].Name == rec.Region {
			s.regions[i].KPIs = rounded
			return rounded, true
		}
	}
	return rounded, false
}

// Samples returns how many samples the region's average has seen.
func (s *Store) Samples(region string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if avg, ok := s.averages[region]; ok {
		return avg.samples
	}
	return 0
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
