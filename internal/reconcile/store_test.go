package reconcile

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/ainoa/noc-console/internal/model"
)

func incident(id string, status model.IncidentStatus) model.Incident {
	return model.Incident{EventID: id, Region: "NorthEast", SiteID: "NE_SITE_003", Status: status, Summary: id + " summary"}
}

func TestApplyPreservesViewState(t *testing.T) {
	s := NewStore()
	s.Apply(model.Payload{Incidents: []model.Incident{incident("A", model.StatusOpen), incident("B", model.StatusOpen)}})
	s.ToggleDrawer("A")
	if s.ViewState()["A"] != true {
		t.Fatal("A should be expanded after toggle")
	}
	s.ToggleDrawer("B")
	s.ToggleDrawer("B") // B: false, but the key exists

	s.Apply(model.Payload{Incidents: []model.Incident{incident("A", model.StatusMitigating), incident("C", model.StatusOpen)}})

	want := ViewState{"A": true}
	if got := s.ViewState(); !reflect.DeepEqual(got, want) {
		t.Errorf("view state = %v, want %v", got, want)
	}
}

func TestApplyReplacesRegionsWholesale(t *testing.T) {
	s := NewStore()
	s.Apply(model.Payload{Regions: []model.RegionSnapshot{
		{Name: "NorthEast", KPIs: model.KPIs{PacketLossPct: 2.3}},
		{Name: "SouthEast", KPIs: model.KPIs{LatencyMs: 42.1}},
	}})
	rm := s.Apply(model.Payload{Regions: []model.RegionSnapshot{
		{Name: "West", KPIs: model.KPIs{ThroughputMbps: 534.2}},
	}})

	regions := s.Regions()
	if len(regions) != 1 || regions[0].Name != "West" {
		t.Fatalf("regions = %+v, want only West", regions)
	}
	if regions[0].KPIs.PacketLossPct != 0 || regions[0].KPIs.LatencyMs != 0 {
		t.Errorf("fields leaked from the previous payload: %+v", regions[0].KPIs)
	}
	if len(rm.Tiles) != 1 || rm.Tiles[0].Region != "West" {
		t.Errorf("tiles = %+v", rm.Tiles)
	}
}

func TestApplyReplacesIncidentsWholesale(t *testing.T) {
	s := NewStore()
	first := incident("A", model.StatusOpen)
	first.Evidence = []string{"util 91%"}
	s.Apply(model.Payload{Incidents: []model.Incident{first}})

	second := incident("A", model.StatusMitigating)
	s.Apply(model.Payload{Incidents: []model.Incident{second}})

	got, ok := s.Incident("A")
	if !ok {
		t.Fatal("incident A missing")
	}
	if got.Status != model.StatusMitigating {
		t.Errorf("status = %s, want mitigating", got.Status)
	}
	if len(got.Evidence) != 0 {
		t.Errorf("evidence leaked from the previous payload: %v", got.Evidence)
	}
}

func TestToggleDrawerStaleIsNoop(t *testing.T) {
	s := NewStore()
	s.Apply(model.Payload{Incidents: []model.Incident{incident("A", model.StatusOpen)}})

	if s.ToggleDrawer("GONE") {
		t.Error("ToggleDrawer on unknown id should report false")
	}
	if _, ok := s.ViewState()["GONE"]; ok {
		t.Error("stale toggle must not create a view state entry")
	}
	if len(s.ViewState()) != 0 {
		t.Errorf("view state = %v, want empty", s.ViewState())
	}
}

func TestToggleDrawerFlips(t *testing.T) {
	s := NewStore()
	s.Apply(model.Payload{Incidents: []model.Incident{incident("A", model.StatusOpen)}})

	if !s.ToggleDrawer("A") || !s.ViewState()["A"] {
		t.Fatal("first toggle should expand")
	}
	if !s.ToggleDrawer("A") || s.ViewState()["A"] {
		t.Fatal("second toggle should collapse")
	}
}

func TestGenerationAdvancesPerPayload(t *testing.T) {
	s := NewStore()
	if s.Generation() != 0 {
		t.Fatalf("initial generation = %d", s.Generation())
	}
	rm := s.Apply(model.Payload{})
	s.Apply(model.Payload{})
	if rm.Generation != 1 || s.Generation() != 2 {
		t.Errorf("generations = %d, %d; want 1, 2", rm.Generation, s.Generation())
	}
}

func TestApplyDoesNotAliasPayload(t *testing.T) {
	s := NewStore()
	p := model.Payload{
		Regions:   []model.RegionSnapshot{{Name: "West"}},
		Incidents: []model.Incident{{EventID: "A", Evidence: []string{"e1"}}},
	}
	s.Apply(p)

	p.Regions[0].Name = "mutated"
	p.Incidents[0].Evidence[0] = "mutated"

	if s.Regions()[0].Name != "West" {
		t.Error("store aliases the payload region slice")
	}
	inc, _ := s.Incident("A")
	if inc.Evidence[0] != "e1" {
		t.Error("store aliases the payload evidence slice")
	}
}

// TestMalformedFrameLeavesModelUnchanged feeds an unparseable frame through
// the parse boundary; nothing reaches Apply, so the model is byte-for-byte
// what it was.
func TestMalformedFrameLeavesModelUnchanged(t *testing.T) {
	s := NewStore()
	good, err := model.DecodePayload([]byte(`{"regions":[{"name":"West","kpis":{"packet_loss_pct":1.5,"latency_ms":39.8,"backhaul_util_pct":49.7,"throughput_mbps":534.2}}],"incidents":[{"event_id":"A","region":"West","site_id":"W_SITE_001","status":"open"}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	s.Apply(good)
	s.ToggleDrawer("A")
	before := dump(t, s)

	for _, frame := range []string{`{"regions": [`, `{"incidents": []}`, `42`, `{"regions":[{"name":"West","kpis":{}}],"incidents":[]}`} {
		p, err := model.DecodePayload([]byte(frame))
		if err == nil {
			s.Apply(p)
		}
	}

	if after := dump(t, s); after != before {
		t.Errorf("model changed:\nbefore %s\nafter  %s", before, after)
	}
}

func dump(t *testing.T, s *Store) string {
	t.Helper()
	data, err := json.Marshal(struct {
		Regions    []model.RegionSnapshot
		Incidents  []model.Incident
		View       ViewState
		Generation uint64
	}{s.Regions(), s.Incidents(), s.ViewState(), s.Generation()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

// TestEndToEndDrawerSurvivesRefresh walks the full connect, payload, toggle,
// payload sequence against the reconciler.
func TestEndToEndDrawerSurvivesRefresh(t *testing.T) {
	s := NewStore()

	s.Apply(model.Payload{Incidents: []model.Incident{incident("INC-1", model.StatusOpen)}})
	if !s.ToggleDrawer("INC-1") {
		t.Fatal("toggle INC-1 failed")
	}

	rm := s.Apply(model.Payload{Incidents: []model.Incident{
		incident("INC-1", model.StatusMitigating),
		incident("INC-2", model.StatusOpen),
	}})

	if len(rm.Incidents) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rm.Incidents))
	}
	wantRows := []struct {
		id       string
		status   model.IncidentStatus
		expanded bool
	}{
		{"INC-1", model.StatusMitigating, true},
		{"INC-2", model.StatusOpen, false},
	}
	for i, w := range wantRows {
		row := rm.Incidents[i]
		if row.Incident.EventID != w.id || row.Incident.Status != w.status || row.Expanded != w.expanded {
			t.Errorf("row %d = {%s %s %v}, want {%s %s %v}", i,
				row.Incident.EventID, row.Incident.Status, row.Expanded, w.id, w.status, w.expanded)
		}
	}
	if _, ok := s.ViewState()["INC-2"]; ok {
		t.Error("INC-2 should have no view state entry")
	}
}
