package command

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ainoa/noc-console/internal/model"
)

// ExportType tags exported incident documents.
const ExportType = "incident_snapshot"

// IncidentSource looks incidents up in the current authoritative state.
type IncidentSource interface {
	Incident(eventID string) (model.Incident, bool)
}

// Snapshot is the exported document.
type Snapshot struct {
	Timestamp  string         `json:"timestamp"`
	Incident   model.Incident `json:"incident"`
	ExportType string         `json:"export_type"`
}

// ExportSnapshot builds a snapshot of eventID from src. It does no I/O and
// returns false when the incident is no longer present.
func ExportSnapshot(src IncidentSource, eventID string, now time.Time) (*Snapshot, bool) {
	inc, ok := src.Incident(eventID)
	if !ok {
		return nil, false
	}
	return &Snapshot{
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
		Incident:   inc,
		ExportType: ExportType,
	}, true
}

// FileName is the download name for the snapshot.
func (s *Snapshot) FileName() string {
	return "snapshot_" + sanitize(s.Incident.EventID) + ".json"
}

// Marshal renders the snapshot as indented JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// WriteSnapshot writes the snapshot into dir and returns the file path.
func WriteSnapshot(dir string, s *Snapshot) (string, error) {
	data, err := s.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, s.FileName())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// sanitize keeps event ids from escaping the export directory.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, id)
}
