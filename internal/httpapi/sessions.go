package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/session"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	respondJSON(w, http.StatusOK, p.Sessions.List(r.Context()))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	created, err := p.Sessions.Create(r.Context(), req.Name)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	var req session.RenameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	id := chi.URLParam(r, "id")
	ok, err := p.Sessions.Rename(r.Context(), id, req.Name)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	updated, err := p.Sessions.Get(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	ok, err := p.Sessions.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleReadHistory returns the log newest first unless
// ?order=chronological is given.
func (s *Server) handleReadHistory(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	id := chi.URLParam(r, "id")
	var msgs []history.Message
	if strings.EqualFold(r.URL.Query().Get("order"), "chronological") {
		msgs = p.History.Chronological(r.Context(), id)
	} else {
		msgs = p.History.Read(r.Context(), id)
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	if err := p.History.Clear(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

type truncateRequest struct {
	Count int `json:"count"`
}

func (s *Server) handleTruncateHistory(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	var req truncateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.Count < 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "count must not be negative")
		return
	}
	if err := p.History.TruncateRecent(r.Context(), chi.URLParam(r, "id"), req.Count); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}
