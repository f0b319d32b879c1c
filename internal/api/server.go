// Package api provides the operator-facing HTTP surface.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/Arimodu/wipbot/internal/domain/request"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// Manager is the orchestrator surface the API exposes.
type Manager interface {
	Snapshot() []request.QueueItem
	StartNext() bool
	CancelDownload()
	WorkerState() string
	Progress() int
}

// Server serves the admin endpoints.
type Server struct {
	mgr   Manager
	token string
}

// NewServer creates the admin API over a manager.
func NewServer(mgr Manager, token string) *Server {
	return &Server{mgr: mgr, token: token}
}

// Handler builds the HTTP handler. Everything under /api/ requires the
// admin token.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/queue", s.handleQueue)
	api.HandleFunc("GET /api/v1/status", s.handleStatus)
	api.HandleFunc("POST /api/v1/download/next", s.handleNext)
	api.HandleFunc("POST /api/v1/download/cancel", s.handleCancel)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/api/", s.requireToken(api))
	return mux
}

// requireToken validates the bearer token on admin routes: missing token is
// 401, a wrong one is 403.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AdminTokenHeader)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing admin token"})
			return
		}
		if token != s.token {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid admin token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type queueItemResponse struct {
	ID          string    `json:"id"`
	UserName    string    `json:"user_name"`
	DownloadURL string    `json:"download_url"`
	RequestedAt time.Time `json:"requested_at"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	snapshot := s.mgr.Snapshot()
	items := make([]queueItemResponse, len(snapshot))
	for i, item := range snapshot {
		items[i] = queueItemResponse{
			ID:          item.ID,
			UserName:    item.UserName,
			DownloadURL: item.DownloadURL,
			RequestedAt: item.RequestedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":            s.mgr.WorkerState(),
		"progress_percent": s.mgr.Progress(),
		"queue_length":     len(s.mgr.Snapshot()),
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if !s.mgr.StartNext() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "queue is empty"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.mgr.CancelDownload()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zlog.Error().Msgf("failed to encode response: %v", err)
	}
}
