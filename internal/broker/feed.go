package broker

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultSpikeChance = 0.1

// Feed generates demo telemetry: healthy samples for every region on each
// tick, with an occasional congestion spike on one of them.
type Feed struct {
	store       *Store
	broadcaster *Broadcaster
	interval    time.Duration
	spikeChance float64
	rng         *rand.Rand
}

func NewFeed(store *Store, broadcaster *Broadcaster, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = time.Second
	}
	return &Feed{
		store:       store,
		broadcaster: broadcaster,
		interval:    interval,
		spikeChance: defaultSpikeChance,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (f *Feed) Start(ctx context.Context) {
	go f.run(ctx)
}

func (f *Feed) run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

func (f *Feed) tick() {
	changed := false
	regions := f.store.Regions()
	for _, region := range regions {
		if f.store.Observe(f.healthy(region)).Changed() {
			changed = true
		}
	}

	if len(regions) > 0 && f.rng.Float64() < f.spikeChance {
		region := regions[f.rng.Intn(len(regions))]
		obs := f.store.Observe(spike(region))
		if obs.Incident != nil {
			log.Info().Str("event_id", obs.Incident.EventID).Str("region", region).Msg("feed spike opened incident")
		} else {
			log.Debug().Str("region", region).Msg("feed spike")
		}
		if obs.Changed() {
			changed = true
		}
	}

	if changed {
		f.broadcaster.Broadcast()
	}
}

func (f *Feed) healthy(region string) TelemetryRecord {
	return TelemetryRecord{
		Region:          region,
		SiteID:          siteID(region, 1+f.rng.Intn(5)),
		PacketLossPct:   round(f.uniform(0.3, 0.9), 2),
		LatencyMs:       round(f.uniform(45, 70), 1),
		BackhaulUtilPct: round(f.uniform(40, 65), 1),
		ThroughputMbps:  round(f.uniform(400, 550), 1),
	}
}

func spike(region string) TelemetryRecord {
	return TelemetryRecord{
		Region:          region,
		SiteID:          siteID(region, 3),
		PacketLossPct:   6.3,
		LatencyMs:       180,
		BackhaulUtilPct: 92,
		ThroughputMbps:  120,
	}
}

func (f *Feed) uniform(lo, hi float64) float64 {
	return lo + f.rng.Float64()*(hi-lo)
}

// siteID builds ids like NE_SITE_003 from the region's capital letters.
func siteID(region string, n int) string {
	var prefix strings.Builder
	for _, r := range region {
		if r >= 'A' && r <= 'Z' {
			prefix.WriteRune(r)
		}
	}
	if prefix.Len() == 0 {
		prefix.WriteString(strings.ToUpper(region))
	}
	return fmt.Sprintf("%s_SITE_%03d", prefix.String(), n)
}
