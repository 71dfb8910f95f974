// Package httpapi serves health, metrics and operator endpoints. It exposes
// aggregate counters and live flags only; no sender identity leaves the store.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/adapters/store"
	"github.com/captvenkat/faujnet-backend/internal/core"
)

const dayLayout = "2006-01-02"

// Store is the subset of the store the operator API reads and writes
type Store interface {
	core.StatsStore
	core.ConfigStore
}

// Server is the ops HTTP server
type Server struct {
	addr    string
	apiKey  string
	store   Store
	metrics http.Handler
	logger  *zap.Logger
	server  *http.Server
	now     func() time.Time
}

// ServerOptions holds configuration options for the ops server
type ServerOptions struct {
	Addr string
	// APIKey guards /api routes with a bearer token; empty leaves them open
	APIKey string
}

// New creates a new ops HTTP server
func New(st Store, metrics http.Handler, logger *zap.Logger, options ServerOptions) *Server {
	return &Server{
		addr:    options.Addr,
		apiKey:  options.APIKey,
		store:   st,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Error shutting down HTTP API server", zap.Error(err))
		}
	}()

	s.logger.Info("Starting HTTP API server", zap.String("address", s.addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics).Methods("GET")
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/stats", s.handleDailyStats).Methods("GET")
	api.HandleFunc("/trust-stats", s.handleTrustStats).Methods("GET")
	api.HandleFunc("/config", s.handleListConfig).Methods("GET")
	api.HandleFunc("/config/{key}", s.handleUpdateConfig).Methods("PUT")

	return router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			s.writeError(w, http.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.apiKey)) != 1 {
			s.writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Error encoding JSON response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

type bucketResponse struct {
	EventType  string `json:"event_type"`
	ResultType string `json:"result_type"`
	Category   string `json:"category"`
	Count      int    `json:"count"`
}

type dailyStatsResponse struct {
	Day     string           `json:"day"`
	Buckets []bucketResponse `json:"buckets"`
}

type trustStatsResponse struct {
	Senders      int     `json:"senders"`
	ShadowBanned int     `json:"shadow_banned"`
	AverageScore float64 `json:"average_score"`
}

type flagResponse struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdateFlagRequest toggles a live flag
type UpdateFlagRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day == "" {
		day = s.now().UTC().Format(dayLayout)
	} else if _, err := time.Parse(dayLayout, day); err != nil {
		s.writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	stats, err := s.store.DailyStats(r.Context(), day)
	if err != nil {
		s.logger.Error("Failed to load daily stats", zap.String("day", day), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	resp := dailyStatsResponse{Day: day, Buckets: make([]bucketResponse, 0, len(stats))}
	for _, agg := range stats {
		resp.Buckets = append(resp.Buckets, bucketResponse{
			EventType:  agg.EventType,
			ResultType: agg.ResultType,
			Category:   agg.Category,
			Count:      agg.Count,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrustStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.TrustStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to load trust stats", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	s.writeJSON(w, http.StatusOK, trustStatsResponse{
		Senders:      stats.Senders,
		ShadowBanned: stats.ShadowBanned,
		AverageScore: stats.AverageScore,
	})
}

func (s *Server) handleListConfig(w http.ResponseWriter, r *http.Request) {
	flags, err := s.store.LoadFlags(r.Context())
	if err != nil {
		s.logger.Error("Failed to load config flags", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to load config")
		return
	}

	resp := make([]flagResponse, 0, len(flags))
	for _, f := range flags {
		resp = append(resp, flagResponse{
			Key:         f.Key,
			Value:       f.Value,
			Enabled:     f.Enabled,
			Description: f.Description,
			UpdatedAt:   f.UpdatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	key := mux.Vars(r)["key"]

	var req UpdateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		s.writeError(w, http.StatusBadRequest, "Body must be {\"enabled\": true|false}")
		return
	}

	err := s.store.SetFlagEnabled(r.Context(), key, *req.Enabled, s.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "Unknown config key")
		return
	case err != nil:
		s.logger.Error("Failed to update config flag", zap.String("key", key), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to update config")
		return
	}

	s.logger.Info("Config flag updated", zap.String("key", key), zap.Bool("enabled", *req.Enabled))
	s.writeJSON(w, http.StatusOK, map[string]any{"key": key, "enabled": *req.Enabled})
}
