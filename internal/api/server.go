// Package api provides the HTTP API for observing and controlling the crowd
// simulation. GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (operator control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/talgya/crowdwatch/internal/agents"
	"github.com/talgya/crowdwatch/internal/engine"
	"github.com/talgya/crowdwatch/internal/metrics"
	"github.com/talgya/crowdwatch/internal/persistence"
	"github.com/talgya/crowdwatch/internal/risk"
	"github.com/talgya/crowdwatch/internal/venue"
)

const (
	defaultAgentLimit   = 500
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Server serves the simulation over HTTP.
type Server struct {
	Eng            *engine.Engine
	DB             *persistence.DB // optional alert/event history
	Metrics        *metrics.Metrics
	AdminKey       string // Bearer token for POST endpoints. Empty = POST disabled.
	CORSOrigins    []string
	ControlRate    int // control requests per IP per minute; 0 = unlimited
	StreamInterval time.Duration

	upgrader    websocket.Upgrader
	streamConns atomic.Int32
}

// Status is the payload of GET /api/v1/status.
type Status struct {
	Running        bool              `json:"running"`
	MonitorActive  bool              `json:"monitor_active"`
	CheckInterval  int               `json:"check_interval"`
	LastCheck      *time.Time        `json:"last_check"`
	Tick           uint64            `json:"tick"`
	Agents         int               `json:"agents"`
	DangerZones    int               `json:"danger_zones"`
	RetainedAlerts int               `json:"retained_alerts"`
	Condition      *agents.Condition `json:"condition"`
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/agents", s.handleAgents)
		r.Get("/zones", s.handleZones)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/alerts/history", s.handleAlertHistory)
		r.Get("/events", s.handleEvents)
		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			if s.ControlRate > 0 {
				r.Use(NewRateLimiter(s.ControlRate, time.Minute).Middleware)
			}
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
			r.Post("/reset", s.handleReset)
			r.Post("/stampede", s.handleStampede)
			r.Post("/stampede/clear", s.handleStampedeClear)
			r.Post("/monitor/toggle", s.handleMonitorToggle)
			r.Post("/monitor/interval", s.handleMonitorInterval)
		})
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "history", s.DB != nil)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires bearer token auth.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "control endpoints disabled (no CROWDWATCH_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": s.Eng.Running()})
}

func (s *Server) status() Status {
	snap := s.Eng.Sim.Snapshot()
	mon := s.Eng.Monitor
	st := Status{
		Running:        s.Eng.Running(),
		MonitorActive:  mon.Active(),
		CheckInterval:  mon.Interval(),
		Tick:           snap.Tick,
		Agents:         len(snap.Agents),
		RetainedAlerts: len(mon.Alerts()),
		Condition:      s.Eng.Sim.Condition(),
	}
	for _, z := range snap.Zones {
		if z.Danger {
			st.DangerZones++
		}
	}
	if t, ok := mon.LastCheck(); ok {
		st.LastCheck = &t
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultAgentLimit, len(s.Eng.Sim.Snapshot().Agents))
	zoneID := -1
	if v := r.URL.Query().Get("zone"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "zone must be an integer", http.StatusBadRequest)
			return
		}
		if _, ok := s.Eng.Sim.Registry.Get(id); !ok {
			http.Error(w, fmt.Sprintf("zone %d not found", id), http.StatusNotFound)
			return
		}
		zoneID = id
	}

	pop := s.Eng.Sim.Snapshot().Agents
	out := make([]agents.Agent, 0, min(limit, len(pop)))
	for _, a := range pop {
		if len(out) >= limit {
			break
		}
		if zoneID >= 0 && a.ZoneID != zoneID {
			continue
		}
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(pop), "agents": out})
}

func (s *Server) handleZones(w http.ResponseWriter, _ *http.Request) {
	zones := s.Eng.Sim.Snapshot().Zones
	if zones == nil {
		zones = []venue.ZoneStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones})
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	alerts := s.Eng.Monitor.Alerts()
	if alerts == nil {
		alerts = []risk.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "alert history disabled", http.StatusNotFound)
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), defaultHistoryLimit, maxHistoryLimit)
	alerts, err := s.DB.RecentAlerts(r.Context(), limit)
	if err != nil {
		slog.Error("alert history query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []risk.Alert{}
	}
	counts, err := s.DB.AlertCounts(r.Context())
	if err != nil {
		slog.Error("alert count query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	byZone := make(map[string]int, len(counts))
	for id, n := range counts {
		byZone[strconv.Itoa(id)] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "by_zone": byZone})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "event history disabled", http.StatusNotFound)
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), defaultHistoryLimit, maxHistoryLimit)
	events, err := s.DB.RecentEvents(r.Context(), limit)
	if err != nil {
		slog.Error("event history query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []persistence.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.Eng.Start()
	s.recordEvent(r.Context(), "control", "simulation started")
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Eng.Stop()
	s.recordEvent(r.Context(), "control", "simulation stopped")
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.Eng.Reset()
	s.recordEvent(r.Context(), "control", "simulation reset")
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStampede(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var cond agents.Condition
	if len(strings.TrimSpace(string(body))) == 0 {
		cond, err = s.Eng.Sim.TriggerStampede()
	} else {
		var req agents.Condition
		if jerr := json.Unmarshal(body, &req); jerr != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		cond, err = s.Eng.Sim.InjectStampede(req)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrUnknownKind) || errors.Is(err, engine.ErrUnknownZone) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	s.recordEvent(r.Context(), "stampede", cond.Description)
	writeJSON(w, http.StatusOK, map[string]any{"condition": cond})
}

func (s *Server) handleStampedeClear(w http.ResponseWriter, r *http.Request) {
	s.Eng.Sim.ClearStampede()
	s.recordEvent(r.Context(), "stampede", "condition cleared")
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleMonitorToggle(w http.ResponseWriter, r *http.Request) {
	active, err := s.Eng.ToggleMonitor()
	if errors.Is(err, engine.ErrNotRunning) {
		http.Error(w, "start the simulation first", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.recordEvent(r.Context(), "monitor", fmt.Sprintf("monitor active=%v", active))
	writeJSON(w, http.StatusOK, map[string]any{"monitor_active": active, "check_interval": s.Eng.Monitor.Interval()})
}

func (s *Server) handleMonitorInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds *int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds == nil {
		http.Error(w, "body must be {\"seconds\": n}", http.StatusBadRequest)
		return
	}
	applied := s.Eng.Monitor.SetInterval(*req.Seconds)
	s.recordEvent(r.Context(), "monitor", fmt.Sprintf("check interval set to %ds", applied))
	writeJSON(w, http.StatusOK, map[string]any{"check_interval": applied, "requested": *req.Seconds})
}

func (s *Server) recordEvent(ctx context.Context, category, desc string) {
	if s.DB == nil {
		return
	}
	e := persistence.Event{At: time.Now(), Category: category, Description: desc}
	if err := s.DB.SaveEvent(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("event not recorded", "category", category, "error", err)
	}
}

func parseLimit(v string, fallback, ceiling int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		n = fallback
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
