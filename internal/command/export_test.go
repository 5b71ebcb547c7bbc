package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ainoa/noc-console/internal/model"
)

type mapSource map[string]model.Incident

func (m mapSource) Incident(id string) (model.Incident, bool) {
	inc, ok := m[id]
	return inc, ok
}

func TestExportSnapshot(t *testing.T) {
	src := mapSource{"INC-1": {EventID: "INC-1", Region: "NorthEast", Status: model.StatusOpen, Summary: "backhaul saturation"}}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	snap, ok := ExportSnapshot(src, "INC-1", now)
	if !ok {
		t.Fatal("expected snapshot")
	}
	if snap.ExportType != "incident_snapshot" {
		t.Errorf("export type = %q", snap.ExportType)
	}
	if snap.Timestamp != "2024-03-01T11:00:00Z" {
		t.Errorf("timestamp = %q", snap.Timestamp)
	}
	if snap.Incident.Summary != "backhaul saturation" {
		t.Errorf("incident = %+v", snap.Incident)
	}
	if snap.FileName() != "snapshot_INC-1.json" {
		t.Errorf("file name = %q", snap.FileName())
	}
}

func TestExportSnapshotMissing(t *testing.T) {
	if snap, ok := ExportSnapshot(mapSource{}, "GONE", time.Now()); ok || snap != nil {
		t.Errorf("ExportSnapshot on a removed incident = %v, %v", snap, ok)
	}
}

func TestWriteSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	snap := &Snapshot{
		Timestamp:  "2024-03-01T11:00:00Z",
		Incident:   model.Incident{EventID: "a/b", Status: model.StatusResolved},
		ExportType: ExportType,
	}

	path, err := WriteSnapshot(dir, snap)
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Base(path) != "snapshot_a_b.json" {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"timestamp", "incident", "export_type"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("snapshot missing %q", key)
		}
	}
}
