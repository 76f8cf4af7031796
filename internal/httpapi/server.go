package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"api-aggregator/internal/aggregator"
	"api-aggregator/internal/config"
	"api-aggregator/internal/model"
	"api-aggregator/internal/monitor"
	"api-aggregator/internal/stats"
)

// Server is the thin JSON adapter over the orchestrator and the statistics
// collector.
type Server struct {
	orchestrator *aggregator.Orchestrator
	collector    *stats.Collector
	monitorCfg   config.MonitorConfig
	logger       zerolog.Logger
	httpServer   *http.Server
	shutdownWait time.Duration
}

// NewServer wires the routes and the underlying http.Server.
func NewServer(cfg config.ServerConfig, monitorCfg config.MonitorConfig, orchestrator *aggregator.Orchestrator, collector *stats.Collector, logger zerolog.Logger) *Server {
	s := &Server{
		orchestrator: orchestrator,
		collector:    collector,
		monitorCfg:   monitorCfg,
		logger:       logger.With().Str("component", "httpapi").Logger(),
		shutdownWait: cfg.ShutdownTimeout,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/aggregate", s.handleAggregate).Methods(http.MethodPost)
	router.HandleFunc("/api/statistics", s.handleStatistics).Methods(http.MethodGet)
	router.HandleFunc("/api/statistics", s.handleReset).Methods(http.MethodDelete)
	router.HandleFunc("/api/statistics/{provider}", s.handleProviderStatus).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.logRequests(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownWait)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req model.AggregationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Sort == "" {
		req.Sort = model.SortRelevance
	}

	resp, err := s.orchestrator.Aggregate(r.Context(), req)
	if err != nil {
		// only cancellation reaches here; the client is gone
		s.logger.Debug().Err(err).Msg("aggregation cancelled")
		writeError(w, http.StatusRequestTimeout, "request cancelled")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.GetStatistics())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.collector.Reset()
	s.logger.Info().Msg("statistics reset")
	w.WriteHeader(http.StatusNoContent)
}

// handleProviderStatus surfaces the full status state machine, including the
// Insufficient Data / No Recent Data states the monitor keeps silent.
func (s *Server) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["provider"]

	window := s.monitorCfg.RecentWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid window duration")
			return
		}
		window = parsed
	}

	snapshot := s.collector.GetProviderSnapshot(name, window)
	writeJSON(w, http.StatusOK, monitor.Evaluate(snapshot, s.monitorCfg.AnomalyThreshold))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
