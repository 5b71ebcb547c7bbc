// Package command issues out-of-band requests against the broker and the
// simulation service. Each call is independent of the live stream; failures
// are returned to the caller and never retried here.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// ErrInvalidInput is returned before any request is sent.
var ErrInvalidInput = errors.New("invalid input")

// RequestError describes a failed command request.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int // 0 when the request never got a response
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Gateway makes command calls. Approvals go to the broker, simulations to
// the simulation service.
type Gateway struct {
	brokerURL    string
	simulatorURL string
	client       *http.Client
	newTraceID   func() string
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client. A nil client is ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.client = c
		}
	}
}

// WithTimeout sets the per-request timeout on a copy of the client, so a
// client passed to WithHTTPClient is never modified.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d <= 0 {
			return
		}
		cp := *g.client
		cp.Timeout = d
		g.client = &cp
	}
}

// WithTraceIDs overrides trace id generation.
func WithTraceIDs(f func() string) Option {
	return func(g *Gateway) { g.newTraceID = f }
}

// NewGateway creates a gateway for the given base URLs
// (e.g. "http://localhost:7003" and "http://localhost:7002").
func NewGateway(brokerURL, simulatorURL string, opts ...Option) *Gateway {
	g := &Gateway{
		brokerURL:    strings.TrimRight(brokerURL, "/"),
		simulatorURL: strings.TrimRight(simulatorURL, "/"),
		client:       &http.Client{Timeout: defaultTimeout},
		newTraceID:   NewTraceID,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewTraceID returns a fresh simulation trace id.
func NewTraceID() string {
	return "trace_sim_" + uuid.NewString()
}

// ApproveRequest is the body of POST /api/approve.
type ApproveRequest struct {
	EventID  string `json:"event_id"`
	Approval bool   `json:"approval"`
}

// ApproveResult is the broker's confirmation. Its fields are informational;
// any 2xx response counts as success.
type ApproveResult struct {
	Status    string `json:"status,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ApprovePlan approves the remediation plan for eventID.
func (g *Gateway) ApprovePlan(ctx context.Context, eventID string) (*ApproveResult, error) {
	if eventID == "" {
		return nil, fmt.Errorf("%w: empty event id", ErrInvalidInput)
	}
	var out ApproveResult
	body := ApproveRequest{EventID: eventID, Approval: true}
	if err := g.post(ctx, g.brokerURL, "/api/approve", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SimulationInput identifies the scenario and the what-if levers.
type SimulationInput struct {
	EventID           string
	Region            string
	SiteID            string
	TrafficMultiplier float64
	CapacityDelta     int
	Generation        uint64 // model generation when the request was issued
}

// CapacityDelta is the capacity lever.
type CapacityDelta struct {
	Units int `json:"units"`
}

// Levers are the what-if knobs.
type Levers struct {
	TrafficMultiplier float64       `json:"traffic_multiplier"`
	CapacityDelta     CapacityDelta `json:"capacity_delta"`
}

// SimulationRequest is the body of POST /simulate.
type SimulationRequest struct {
	EventID string `json:"event_id"`
	Region  string `json:"region"`
	SiteID  string `json:"site_id"`
	Levers  Levers `json:"levers"`
	TraceID string `json:"trace_id"`
}

// SimulationResult is the predicted outcome.
type SimulationResult struct {
	PredPacketLossPct float64  `json:"pred_packet_loss_pct"`
	PredLatencyMs     float64  `json:"pred_latency_ms"`
	PredBlockingProb  float64  `json:"pred_blocking_prob"`
	Assumptions       []string `json:"assumptions"`

	// Client-side bookkeeping, not part of the response body.
	TraceID  string          `json:"-"`
	Input    SimulationInput `json:"-"`
	IssuedAt uint64          `json:"-"`
}

// Stale reports whether the model has moved on since the request was issued.
// Stale results are still shown; callers decide what to do with the flag.
func (r *SimulationResult) Stale(current uint64) bool {
	return r.IssuedAt != current
}

// RunSimulation runs a what-if simulation. Every call gets a new trace id.
func (g *Gateway) RunSimulation(ctx context.Context, in SimulationInput) (*SimulationResult, error) {
	if !(in.TrafficMultiplier > 0) {
		return nil, fmt.Errorf("%w: traffic multiplier must be positive, got %v", ErrInvalidInput, in.TrafficMultiplier)
	}
	req := SimulationRequest{
		EventID: in.EventID,
		Region:  in.Region,
		SiteID:  in.SiteID,
		Levers: Levers{
			TrafficMultiplier: in.TrafficMultiplier,
			CapacityDelta:     CapacityDelta{Units: in.CapacityDelta},
		},
		TraceID: g.newTraceID(),
	}

	var out SimulationResult
	if err := g.post(ctx, g.simulatorURL, "/simulate", req, &out); err != nil {
		return nil, err
	}
	if out.Assumptions == nil {
		out.Assumptions = []string{}
	}
	out.TraceID = req.TraceID
	out.Input = in
	out.IssuedAt = in.Generation
	return &out, nil
}

func (g *Gateway) post(ctx context.Context, base, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(data))
	if err != nil {
		return &RequestError{Method: http.MethodPost, Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return &RequestError{Method: http.MethodPost, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RequestError{
			Method:     http.MethodPost,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &RequestError{Method: http.MethodPost, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
