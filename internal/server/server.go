// Package server exposes a narrow operator HTTP surface over the core:
// health, play listing, and the last/on-demand cycle report. It is
// deliberately small next to the teacher's own server package — this core
// has one job (running cycles), not a full application backend — but keeps
// the same middleware stack and routing shape.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/orchestrator"
	"github.com/aristath/goldcore/internal/store"
)

// cycleRunner is the slice of *orchestrator.Orchestrator this package needs,
// kept narrow so handlers can be exercised against a fake in tests.
type cycleRunner interface {
	LastCycle() orchestrator.CycleReport
	RunCycle(ctx context.Context) orchestrator.CycleReport
}

// Config configures the HTTP server.
type Config struct {
	Log      zerolog.Logger
	Store    store.Store
	Orch     cycleRunner
	Registry *prometheus.Registry // nil disables /metrics
	Port     int
	DevMode  bool
}

// Server is the operator-facing HTTP surface.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	store     store.Store
	orch      cycleRunner
	registry  *prometheus.Registry
	startedAt time.Time
}

func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		store:     cfg.Store,
		orch:      cfg.Orch,
		registry:  cfg.Registry,
		startedAt: time.Now(),
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if !cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("operator HTTP surface listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/plays", s.handlePlays)
	s.router.Get("/cycle/last", s.handleLastCycle)
	s.router.Post("/cycle/run", s.handleRunCycle)
	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
}

type healthResponse struct {
	Status     string  `json:"status"`
	UptimeSecs float64 `json:"uptime_seconds"`
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

// handleHealth reports process uptime plus host CPU/memory usage, grounded
// on the teacher's own use of gopsutil for the same pair of numbers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent := 0.0
	if pcts, err := cpu.Percent(50*time.Millisecond, false); err == nil && len(pcts) > 0 {
		cpuPercent = pcts[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("failed to read CPU percent")
	}

	memPercent := 0.0
	if m, err := mem.VirtualMemory(); err == nil {
		memPercent = m.UsedPercent
	} else {
		s.log.Warn().Err(err).Msg("failed to read memory stats")
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		UptimeSecs: time.Since(s.startedAt).Seconds(),
		CPUPercent: cpuPercent,
		MemPercent: memPercent,
	})
}

// handlePlays lists plays in a given lifecycle status, defaulting to OPEN.
func (s *Server) handlePlays(w http.ResponseWriter, r *http.Request) {
	status := domain.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.StatusOpen
	}
	plays, err := s.store.List(r.Context(), status)
	if err != nil {
		s.log.Error().Err(err).Str("status", string(status)).Msg("failed to list plays")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, plays)
}

func (s *Server) handleLastCycle(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no orchestrator wired"})
		return
	}
	writeJSON(w, http.StatusOK, s.orch.LastCycle())
}

// handleRunCycle triggers an out-of-band cycle on operator demand, distinct
// from the cron schedule; useful for forcing an evaluation after a manual
// playbook edit.
func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no orchestrator wired"})
		return
	}
	report := s.orch.RunCycle(r.Context())
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
