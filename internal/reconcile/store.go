// Package reconcile merges inbound payloads into the authoritative model
// while preserving client-local view state across refreshes.
package reconcile

import (
	"github.com/ainoa/noc-console/internal/model"
	"github.com/ainoa/noc-console/internal/render"
)

// ViewState maps an incident event_id to whether its drawer is expanded.
// It is owned by the client and never sent by the broker.
type ViewState map[string]bool

// RenderModel is what the UI paints after a payload is applied.
type RenderModel struct {
	Generation uint64
	Tiles      []render.Tile
	Incidents  []render.IncidentRow
}

// Store holds the authoritative model. It is not safe for concurrent use;
// the UI event loop owns it.
type Store struct {
	regions    []model.RegionSnapshot
	incidents  []model.Incident
	index      map[string]int
	view       ViewState
	generation uint64
	meta       Meta
}

// Meta is broker metadata from the last applied payload.
type Meta struct {
	LastUpdated string
	TraceID     string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		index: make(map[string]int),
		view:  make(ViewState),
	}
}

// Apply replaces regions and incidents wholesale and reconciles view state
// against the new incident set. Drawer flags for incidents that vanished
// are dropped; new incidents start collapsed.
func (s *Store) Apply(p model.Payload) RenderModel {
	regions := make([]model.RegionSnapshot, len(p.Regions))
	copy(regions, p.Regions)

	incidents := make([]model.Incident, len(p.Incidents))
	index := make(map[string]int, len(p.Incidents))
	for i, inc := range p.Incidents {
		incidents[i] = inc.Clone()
		index[inc.EventID] = i
	}

	view := make(ViewState, len(s.view))
	for id, open := range s.view {
		if _, ok := index[id]; ok {
			view[id] = open
		}
	}

	s.regions = regions
	s.incidents = incidents
	s.index = index
	s.view = view
	s.meta = Meta{LastUpdated: p.LastUpdated, TraceID: p.TraceID}
	s.generation++

	return s.Project()
}

// Project renders the current state without changing it.
func (s *Store) Project() RenderModel {
	return RenderModel{
		Generation: s.generation,
		Tiles:      render.ProjectRegions(s.regions),
		Incidents:  render.ProjectIncidents(s.incidents, s.view),
	}
}

// ToggleDrawer flips the drawer flag for eventID. It returns false, and
// changes nothing, when the incident is not in the current set.
func (s *Store) ToggleDrawer(eventID string) bool {
	if _, ok := s.index[eventID]; !ok {
		return false
	}
	s.view[eventID] = !s.view[eventID]
	return true
}

// Incident looks up an incident in the current authoritative state.
func (s *Store) Incident(eventID string) (model.Incident, bool) {
	i, ok := s.index[eventID]
	if !ok {
		return model.Incident{}, false
	}
	return s.incidents[i].Clone(), true
}

// Generation counts applied payloads.
func (s *Store) Generation() uint64 {
	return s.generation
}

// Meta returns metadata from the last applied payload.
func (s *Store) Meta() Meta {
	return s.meta
}

// ViewState returns a copy of the drawer flags.
func (s *Store) ViewState() ViewState {
	out := make(ViewState, len(s.view))
	for k, v := range s.view {
		out[k] = v
	}
	return out
}

// Regions returns a copy of the current regions.
func (s *Store) Regions() []model.RegionSnapshot {
	out := make([]model.RegionSnapshot, len(s.regions))
	copy(out, s.regions)
	return out
}

// Incidents returns a copy of the current incidents in payload order.
func (s *Store) Incidents() []model.Incident {
	out := make([]model.Incident, len(s.incidents))
	for i, inc := range s.incidents {
		out[i] = inc.Clone()
	}
	return out
}
