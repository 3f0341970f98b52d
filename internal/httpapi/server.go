// internal/httpapi/server.go
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/coursestate/internal/prefs"
	"github.com/user/coursestate/internal/types"
)

// Server exposes the user-state store over JSON endpoints. The preference
// middleware runs on every request so handlers can surface the user's
// timezone/language alongside state payloads.
type Server struct {
	store   types.UserStateStore
	prefs   *prefs.Client
	handler http.Handler
}

// NewServer creates a Server over the given store. prefsClient may be nil,
// in which case responses report no preferences.
func NewServer(store types.UserStateStore, prefsClient *prefs.Client) *Server {
	s := &Server{store: store, prefs: prefsClient}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/state/{course}/{blockType}/{blockID}", s.handleGetState)
	mux.HandleFunc("PUT /api/state/{course}/{blockType}/{blockID}", s.handleSetState)
	mux.HandleFunc("DELETE /api/state/{course}/{blockType}/{blockID}", s.handleDeleteState)
	mux.HandleFunc("GET /api/history/{course}/{blockType}/{blockID}", s.handleHistory)

	var h http.Handler = mux
	if prefsClient != nil {
		h = prefsClient.Middleware(h)
	}
	s.handler = logRequests(h)
	return s
}

// ServeHTTP delegates to the wrapped handler chain, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// logRequests assigns each request an ID and logs method, path, and duration.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()
		next.ServeHTTP(w, r)
		slog.Debug("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// blockKeyFromPath assembles the BlockKey from the request path segments.
func blockKeyFromPath(r *http.Request) types.BlockKey {
	return types.BlockKey{
		Course:    types.CourseID(r.PathValue("course")),
		BlockType: r.PathValue("blockType"),
		BlockID:   r.PathValue("blockID"),
	}
}

func requestUser(r *http.Request) types.Username {
	return types.Username(r.Header.Get("X-User"))
}

// fieldsParam parses the optional comma-separated fields query parameter.
// nil means "all fields".
func fieldsParam(r *http.Request) []string {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

// stateResponse is the envelope for state and history payloads. Preference
// values ride along so page-rendering clients get them without a second
// round trip.
type stateResponse struct {
	State    map[string]any  `json:"state"`
	Modified time.Time       `json:"modified"`
	Prefs    types.UserPrefs `json:"prefs"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	key := blockKeyFromPath(r)

	states, err := s.store.GetMany(r.Context(), user, []types.BlockKey{key}, types.ScopeUserState, fieldsParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if len(states) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no state for block"})
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{
		State:    states[0].State,
		Modified: states[0].Modified,
		Prefs:    prefs.FromContext(r.Context()),
	})
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	key := blockKeyFromPath(r)

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	updates := map[types.BlockKey]map[string]any{key: fields}
	if err := s.store.SetMany(r.Context(), user, updates, types.ScopeUserState); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteState(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	key := blockKeyFromPath(r)

	if err := s.store.DeleteMany(r.Context(), user, []types.BlockKey{key}, types.ScopeUserState, fieldsParam(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type historyEntry struct {
	State   map[string]any `json:"state"`
	Created time.Time      `json:"created"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	key := blockKeyFromPath(r)

	entries, err := s.store.GetHistory(r.Context(), user, key, types.ScopeUserState)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{State: e.State, Created: e.Modified})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": out})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps store errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrUnsupportedScope):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrDoesNotExist):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrNotImplemented):
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrServiceUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
