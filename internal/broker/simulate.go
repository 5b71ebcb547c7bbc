package broker

import (
	"fmt"
	"math"
)

// M/M/c baseline.
const (
	baselineArrivalRate  = 800.0 // req/s
	serviceRatePerServer = 250.0 // req/s
	baselineServers      = 4
)

// SimulationRequest mirrors the client's what-if request.
type SimulationRequest struct {
	EventID string `json:"event_id"`
	Region  string `json:"region"`
	SiteID  string `json:"site_id"`
	Levers  struct {
		TrafficMultiplier *float64 `json:"traffic_multiplier"`
		CapacityDelta     struct {
			Units int `json:"units"`
		} `json:"capacity_delta"`
	} `json:"levers"`
	TraceID string `json:"trace_id"`
}

// SimulationResult is the predicted outcome.
type SimulationResult struct {
	PredPacketLossPct float64  `json:"pred_packet_loss_pct"`
	PredLatencyMs     float64  `json:"pred_latency_ms"`
	PredBlockingProb  float64  `json:"pred_blocking_prob"`
	Assumptions       []string `json:"assumptions"`
	TraceID           string   `json:"trace_id"`
}

// Simulate runs the M/M/c approximation for the given levers.
func Simulate(trafficMultiplier float64, capacityUnits int) SimulationResult {
	arrival := baselineArrivalRate * trafficMultiplier
	servers := baselineServers + capacityUnits

	res := SimulationResult{
		Assumptions: []string{
			"M/M/c queueing model",
			fmt.Sprintf("Service rate: %.0f req/s per server", serviceRatePerServer),
			fmt.Sprintf("Servers: %d", servers),
			fmt.Sprintf("Offered load: %.0f req/s", arrival),
		},
	}

	if servers < 1 {
		res.PredPacketLossPct, res.PredLatencyMs, res.PredBlockingProb = 100, 9999, 1
		return res
	}
	u := arrival / (float64(servers) * serviceRatePerServer)
	if u >= 1 {
		res.PredPacketLossPct, res.PredLatencyMs, res.PredBlockingProb = 100, 9999, 1
		return res
	}

	var loss float64
	switch {
	case u < 0.7:
		loss = u * 0.5
	case u < 0.85:
		loss = (u-0.7)*10 + 0.35
	default:
		loss = (u-0.85)*50 + 1.85
	}

	baseLatency := 1000.0 / serviceRatePerServer
	latency := baseLatency * (1 + u/(1-u)*0.5)

	blocking := math.Min(0.99, math.Pow(u, float64(servers))/factorial(servers))

	res.PredPacketLossPct = round(math.Min(100, loss), 2)
	res.PredLatencyMs = round(math.Min(9999, latency), 2)
	res.PredBlockingProb = round(blocking, 4)
	return res
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}
