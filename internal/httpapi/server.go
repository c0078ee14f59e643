package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agentworkforce/syncpad/internal/syncpad"
)

type ServerConfig struct {
	// MaxMessageBytes caps the size of a single websocket frame.
	MaxMessageBytes int64
}

// Server exposes the document registry over HTTP: a read-only REST
// surface plus the websocket endpoint that carries the collaborative
// session protocol.
type Server struct {
	registry *syncpad.Registry
	cfg      ServerConfig
	schema   *clientMsgValidator
}

func NewServer(registry *syncpad.Registry) *Server {
	return NewServerWithConfig(registry, ServerConfig{})
}

func NewServerWithConfig(registry *syncpad.Registry, cfg ServerConfig) *Server {
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 1 << 20
	}
	return &Server{
		registry: registry,
		cfg:      cfg,
		schema:   mustClientMsgValidator(),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if r.URL.Path == "/api/stats" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s.registry.Stats())
		return
	}
	if r.URL.Path == "/api/new" && r.Method == http.MethodPost {
		writeJSON(w, http.StatusOK, map[string]string{"id": uuid.NewString()})
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) == 3 && parts[0] == "api" && parts[1] == "text" && r.Method == http.MethodGet {
		s.handleText(w, r, parts[2])
		return
	}
	if len(parts) == 3 && parts[0] == "api" && parts[1] == "socket" && r.Method == http.MethodGet {
		s.handleSocket(w, r, parts[2])
		return
	}
	writeError(w, http.StatusNotFound, "not_found", "route not found")
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request, id string) {
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing document id")
		return
	}
	text, err := s.registry.Text(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}
