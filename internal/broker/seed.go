package broker

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ainoa/noc-console/internal/model"
)

// Seed is the initial broker state.
type Seed struct {
	Regions   []model.RegionSnapshot `yaml:"regions"`
	Incidents []model.Incident       `yaml:"incidents"`
}

// DefaultSeed returns the four demo regions with no incidents.
func DefaultSeed() Seed {
	return Seed{
		Regions: []model.RegionSnapshot{
			{Name: "NorthEast", KPIs: model.KPIs{PacketLossPct: 2.3, LatencyMs: 45.2, BackhaulUtilPct: 58.5, ThroughputMbps: 487.3}},
			{Name: "SouthEast", KPIs: model.KPIs{PacketLossPct: 1.8, LatencyMs: 42.1, BackhaulUtilPct: 52.3, ThroughputMbps: 512.7}},
			{Name: "MidWest", KPIs: model.KPIs{PacketLossPct: 2.1, LatencyMs: 48.5, BackhaulUtilPct: 61.2, ThroughputMbps: 465.8}},
			{Name: "West", KPIs: model.KPIs{PacketLossPct: 1.5, LatencyMs: 39.8, BackhaulUtilPct: 49.7, ThroughputMbps: 534.2}},
		},
	}
}

// LoadSeed reads a YAML seed file. An empty path yields DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	seen := make(map[string]bool, len(seed.Incidents))
	for i, inc := range seed.Incidents {
		if inc.EventID == "" {
			return Seed{}, fmt.Errorf("seed incident %d: %w", i, ErrMissingEventID)
		}
		if seen[inc.EventID] {
			return Seed{}, fmt.Errorf("seed incident %d: %w: %s", i, ErrDuplicateIncident, inc.EventID)
		}
		seen[inc.EventID] = true
	}
	for i, r := range seed.Regions {
		if r.Name == "" {
			return Seed{}, fmt.Errorf("seed region %d: missing name", i)
		}
	}
	return seed, nil
}
