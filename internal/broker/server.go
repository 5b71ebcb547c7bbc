package broker

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ainoa/noc-console/internal/model"
)

const maxBodyBytes = 1 << 20

type Server struct {
	store       *Store
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	proc        *process.Process
	started     time.Time
}

func NewServer(store *Store, broadcaster *Broadcaster) *Server {
	s := &Server{
		store:       store,
		broadcaster: broadcaster,
		started:     time.Now(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: checkOrigin}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = p
	} else {
		log.Warn().Err(err).Msg("process stats unavailable")
	}
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/ui", s.handleWS)
	mux.HandleFunc("/api/approve", s.handleApprove)
	mux.HandleFunc("/api/incident", s.handleIncident)
	mux.HandleFunc("/api/ingest/telemetry", s.handleIngest)
	mux.HandleFunc("/simulate", s.handleSimulate)
	mux.HandleFunc("/health", s.handleHealth)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade")
		return
	}

	log.Info().Str("remote", r.RemoteAddr).Msg("ui client connected")
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Info().Str("remote", r.RemoteAddr).Msg("ui client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

type approveRequest struct {
	EventID  string `json:"event_id"`
	Approval bool   `json:"approval"`
}

type approveResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req approveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if !req.Approval {
		writeJSON(w, http.StatusOK, approveResponse{Status: "rejected", EventID: req.EventID})
		return
	}

	found := s.store.Approve(req.EventID)
	log.Info().Str("event_id", req.EventID).Bool("found", found).Msg("plan approved")
	s.broadcaster.Broadcast()
	writeJSON(w, http.StatusOK, approveResponse{
		Status:    "approved",
		EventID:   req.EventID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var inc model.Incident
	if !decodeBody(w, r, &inc) {
		return
	}
	if err := s.store.AddIncident(inc); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrDuplicateIncident) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	log.Info().Str("event_id", inc.EventID).Str("region", inc.Region).Msg("incident added")
	s.broadcaster.Broadcast()
	writeJSON(w, http.StatusOK, map[string]string{"status": "added", "event_id": inc.EventID})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var rec TelemetryRecord
	if !decodeBody(w, r, &rec) {
		return
	}
	if rec.Region == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "Missing region"})
		return
	}

	obs := s.store.Observe(rec)
	if n := s.store.Samples(rec.Region); n%50 == 1 {
		log.Debug().Str("region", rec.Region).Float64("loss", obs.KPIs.PacketLossPct).Float64("latency", obs.KPIs.LatencyMs).Int("samples", n).Msg("ingest")
	}
	if obs.Incident != nil {
		log.Info().Str("event_id", obs.Incident.EventID).Str("region", rec.Region).Msg("anomaly opened incident")
	}
	if obs.Changed() {
		s.broadcaster.Broadcast()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ingested", "region": rec.Region})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req SimulationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	multiplier := 1.0
	if req.Levers.TrafficMultiplier != nil {
		multiplier = *req.Levers.TrafficMultiplier
	}
	if multiplier <= 0 {
		http.Error(w, "traffic_multiplier must be positive", http.StatusBadRequest)
		return
	}

	res := Simulate(multiplier, req.Levers.CapacityDelta.Units)
	res.TraceID = req.TraceID
	log.Info().Str("trace_id", req.TraceID).Float64("multiplier", multiplier).Int("capacity_delta", req.Levers.CapacityDelta.Units).Msg("simulation")
	writeJSON(w, http.StatusOK, res)
}

// Health is the /health response.
type Health struct {
	Status        string  `json:"status"`
	Clients       int     `json:"clients"`
	Incidents     int     `json:"incidents"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{
		Status:        "ok",
		Clients:       s.broadcaster.ClientCount(),
		Incidents:     s.store.IncidentCount(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	if s.proc != nil {
		if cpu, err := s.proc.CPUPercentWithContext(r.Context()); err == nil {
			h.CPUPercent = round(cpu, 2)
		}
		if mem, err := s.proc.MemoryInfoWithContext(r.Context()); err == nil && mem != nil {
			h.RSSBytes = mem.RSS
		}
	}
	writeJSON(w, http.StatusOK, h)
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

// checkOrigin accepts terminal clients (no Origin), same-host pages, and
// loopback pages.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasSuffix(parsed.Hostname(), ".localhost")
}
