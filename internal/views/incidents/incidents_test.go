package incidents

import (
	"strings"
	"testing"

	"github.com/ainoa/noc-console/internal/model"
	"github.com/ainoa/noc-console/internal/render"
)

func rows(ids ...string) []render.IncidentRow {
	out := make([]render.IncidentRow, 0, len(ids))
	for _, id := range ids {
		out = append(out, render.IncidentRow{Incident: model.Incident{EventID: id, Status: model.StatusOpen, Region: "West", SiteID: "W_SITE_001"}})
	}
	return out
}

func TestCursorFollowsSelectedIncident(t *testing.T) {
	m := NewWithStyle("notty")
	m.SetRows(rows("A", "B", "C"))
	m.MoveDown()
	m.MoveDown()
	if inc, _ := m.Selected(); inc.EventID != "C" {
		t.Fatalf("selected = %s, want C", inc.EventID)
	}

	m.SetRows(rows("C", "A"))
	if inc, _ := m.Selected(); inc.EventID != "C" {
		t.Errorf("selected after reorder = %s, want C", inc.EventID)
	}
}

func TestCursorClampsWhenSelectionDisappears(t *testing.T) {
	m := NewWithStyle("notty")
	m.SetRows(rows("A", "B", "C"))
	m.MoveDown()
	m.MoveDown()

	m.SetRows(rows("A"))
	inc, ok := m.Selected()
	if !ok || inc.EventID != "A" {
		t.Errorf("selected = %v %v, want A", inc.EventID, ok)
	}

	m.SetRows(nil)
	if _, ok := m.Selected(); ok {
		t.Error("empty list has no selection")
	}
}

func TestMoveBounds(t *testing.T) {
	m := NewWithStyle("notty")
	m.SetRows(rows("A", "B"))
	m.MoveUp()
	if inc, _ := m.Selected(); inc.EventID != "A" {
		t.Errorf("MoveUp at top moved to %s", inc.EventID)
	}
	m.MoveDown()
	m.MoveDown()
	if inc, _ := m.Selected(); inc.EventID != "B" {
		t.Errorf("MoveDown at bottom moved to %s", inc.EventID)
	}
}

func TestViewCollapsedHidesDrawer(t *testing.T) {
	m := NewWithStyle("notty")
	m.Width = 100
	r := rows("INC-1")
	r[0].Incident.Evidence = []string{"backhaul at 91%"}
	m.SetRows(r)

	out := m.View()
	if !strings.Contains(out, "INC-1") || !strings.Contains(out, "[OPEN]") {
		t.Errorf("row header missing:\n%s", out)
	}
	if strings.Contains(out, "backhaul at 91%") {
		t.Error("collapsed row should not show the drawer")
	}
}

func TestViewExpandedShowsDrawer(t *testing.T) {
	m := NewWithStyle("notty")
	m.Width = 100
	r := rows("INC-1")
	r[0].Expanded = true
	r[0].Incident.Evidence = []string{"backhaul at 91%"}
	r[0].Incident.Explanation = "Congestion on the aggregation link."
	m.SetRows(r)

	out := m.View()
	for _, want := range []string{"Evidence", "backhaul at 91%", "Congestion", "No recommendations available", "No risks identified", "approve"} {
		if !strings.Contains(out, want) {
			t.Errorf("drawer missing %q:\n%s", want, out)
		}
	}
}

func TestViewEmpty(t *testing.T) {
	m := NewWithStyle("notty")
	if out := m.View(); !strings.Contains(out, "No active incidents") {
		t.Errorf("empty view = %q", out)
	}
}
