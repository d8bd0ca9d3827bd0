// Package api provides REST API endpoints for decoded drive-log data.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tacho_parser/internal/decoder"
	"tacho_parser/internal/storage"
	"tacho_parser/internal/tacho"
)

// maxUploadBytes caps POST /decode bodies. Recorder files are a few
// megabytes at most.
const maxUploadBytes = 32 << 20

// Server provides REST API access to the vehicle registry, decode runs,
// and stored telemetry, plus an on-the-fly decode endpoint.
type Server struct {
	db          *storage.Stores
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewServer creates a new API server over an open storage handle.
func NewServer(db *storage.Stores, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &Server{
		db:          db,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	// API routes.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/vehicles", s.handleListVehicles)
		r.Get("/vehicles/{plate}", s.handleGetVehicle)
		r.Get("/vehicles/{plate}/runs", s.handleVehicleRuns)
		r.Get("/runs/{run_id}/samples", s.handleRunSamples)

		// Decode an uploaded log without storing it.
		r.Post("/decode", s.handleDecode)
	})

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Tacho API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/vehicles", s.handleListVehicles)
	r.Get("/vehicles/{plate}", s.handleGetVehicle)
	r.Get("/vehicles/{plate}/runs", s.handleVehicleRuns)
	r.Get("/runs/{run_id}/samples", s.handleRunSamples)
	r.Post("/decode", s.handleDecode)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)

	vehicles, err := s.db.PG.ListVehicles(r.Context(), limit)
	if err != nil {
		log.Printf("list vehicles: %v", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(vehicles),
		"vehicles": vehicles,
	})
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "plate")

	vehicle, err := s.db.PG.GetVehicle(r.Context(), plate)
	if err != nil {
		log.Printf("get vehicle %s: %v", plate, err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if vehicle == nil {
		writeError(w, http.StatusNotFound, "unknown plate")
		return
	}

	writeJSON(w, http.StatusOK, vehicle)
}

func (s *Server) handleVehicleRuns(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "plate")
	limit := queryInt(r, "limit", 50)

	runs, err := s.db.PG.RunsForVehicle(r.Context(), plate, limit)
	if err != nil {
		log.Printf("runs for %s: %v", plate, err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plate": plate,
		"count": len(runs),
		"runs":  runs,
	})
}

func (s *Server) handleRunSamples(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseUint(chi.URLParam(r, "run_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	samples, err := s.db.CH.SamplesForRun(r.Context(), runID)
	if err != nil {
		log.Printf("samples for run %d: %v", runID, err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  runID,
		"count":   len(samples),
		"samples": samples,
	})
}

// handleDecode decodes a raw log body and returns the result without
// persisting anything. Useful for previewing a file before ingest.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}

	result, err := s.decode(r.Context(), raw)
	if err != nil {
		var fatal *tacho.FatalInputError
		if errors.As(err, &fatal) {
			writeError(w, http.StatusUnprocessableEntity, fatal.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "decode failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) decode(ctx context.Context, raw []byte) (*tacho.DecodeResult, error) {
	return decoder.Decode(ctx, raw)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
