// Package httpapi provides the ambient HTTP surface alongside the TCP
// session protocol: a health probe and a read-only view over persisted
// session history, for dashboards that want it without speaking the
// binary frame protocol.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rhythmcoach/engine/internal/storage"
)

// Server provides the HTTP surface: health check and session history.
type Server struct {
	logger *slog.Logger
	store  *storage.DB
	mux    *http.ServeMux
}

// NewServer creates a new HTTP API server. store may be nil, in which
// case the session-history routes respond with an empty/not-found result
// rather than failing — persistence is optional per SPEC_FULL §4.9.
func NewServer(logger *slog.Logger, store *storage.DB) *Server {
	s := &Server{
		logger: logger,
		store:  store,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SessionSummaryResponse is the JSON response for session listings.
type SessionSummaryResponse struct {
	ID              string  `json:"id"`
	StartedAt       string  `json:"started_at"`
	EndedAt         string  `json:"ended_at"`
	BPM             float64 `json:"bpm,omitempty"`
	GridResolution  string  `json:"grid_resolution,omitempty"`
	TotalBars       int     `json:"total_bars,omitempty"`
	AccuracyPercent float64 `json:"accuracy_percent,omitempty"`
	WAVPath         string  `json:"wav_path,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func sessionToResponse(r storage.SessionRecord) SessionSummaryResponse {
	return SessionSummaryResponse{
		ID:              r.ID,
		StartedAt:       r.StartedAt.Format(time.RFC3339),
		EndedAt:         r.EndedAt.Format(time.RFC3339),
		BPM:             r.BPM,
		GridResolution:  r.GridResolution,
		TotalBars:       r.TotalBars,
		AccuracyPercent: r.AccuracyPercent,
		WAVPath:         r.WAVPath,
		Error:           r.Error,
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []SessionSummaryResponse{})
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.store.ListSessions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions: "+err.Error())
		return
	}

	response := make([]SessionSummaryResponse, 0, len(records))
	for _, r := range records {
		response = append(response, sessionToResponse(r))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	record, err := s.store.GetSession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get session: "+err.Error())
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, sessionToResponse(*record))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
