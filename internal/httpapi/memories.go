package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/memory"
	"github.com/cathedral/cathedral/internal/session"
)

type addMemoryRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	respondJSON(w, http.StatusOK, p.Memories.List(r.Context()))
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	var req addMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	m, err := p.Memories.Add(r.Context(), req.Text)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.metrics.ObserveMemorySaved(p.Info.Namespace, "api")
	respondJSON(w, http.StatusCreated, m)
}

// handleDeleteMemory always answers 200; a missing id is success=false.
func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	ok, err := p.Memories.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error().Err(err).Str("persona", p.Info.Namespace).Msg("delete memory failed")
		respondJSON(w, http.StatusOK, successResponse{Success: false})
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: ok})
}

// authorized compares ?key= against MEMORY_SECRET. An unset secret closes
// the endpoint.
func (s *Server) authorized(r *http.Request) bool {
	secret := s.cfg.MemorySecret
	if secret == "" {
		return false
	}
	key := r.URL.Query().Get("key")
	return subtle.ConstantTimeCompare([]byte(key), []byte(secret)) == 1
}

func (s *Server) handleDumpMemories(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid key")
		return
	}
	out := make(map[string][]memory.Memory, len(s.order))
	for _, name := range s.order {
		out[name] = s.personas[name].Memories.List(r.Context())
	}
	respondJSON(w, http.StatusOK, out)
}

type sessionExport struct {
	Session  session.Session   `json:"session"`
	Messages []history.Message `json:"messages"`
}

type historyExport struct {
	Persona  string          `json:"persona"`
	Sessions []sessionExport `json:"sessions"`
}

func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid key")
		return
	}
	p := personaFrom(r)
	respondJSON(w, http.StatusOK, exportHistory(r.Context(), p))
}

// exportHistory gathers every session of p with its log in storage order.
func exportHistory(ctx context.Context, p Persona) historyExport {
	sessions := p.Sessions.List(ctx)
	out := historyExport{Persona: p.Info.Namespace, Sessions: make([]sessionExport, 0, len(sessions))}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, sessionExport{
			Session:  sess,
			Messages: p.History.Read(ctx, sess.ID),
		})
	}
	return out
}
