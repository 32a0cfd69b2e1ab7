package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cathedral/cathedral/internal/chat"
	"github.com/cathedral/cathedral/internal/library"
)

type createReadingResponse struct {
	Success bool            `json:"success"`
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Reading library.Reading `json:"reading"`
}

type readingChatResponse struct {
	Replies []chat.ReadingReply `json:"replies"`
}

// handleListReadings doubles as the capture extension's connection check.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.readings.List(r.Context()))
}

func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	var req library.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	reading, err := s.readings.Create(r.Context(), req)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, createReadingResponse{
		Success: true,
		ID:      reading.ID,
		Title:   reading.Title,
		Reading: reading,
	})
}

func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	reading, err := s.readings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reading)
}

func (s *Server) handleUpdateReading(w http.ResponseWriter, r *http.Request) {
	var req library.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	reading, err := s.readings.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reading)
}

func (s *Server) handleDeleteReading(w http.ResponseWriter, r *http.Request) {
	ok, err := s.readings.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "reading not found")
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleReadingChatHistory returns one companion's log, or every log merged
// by time when no companion is named.
func (s *Server) handleReadingChatHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.readings.Get(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	companion := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("companion")))
	if companion == "" {
		respondJSON(w, http.StatusOK, s.readings.ChatAll(r.Context(), id))
		return
	}
	respondJSON(w, http.StatusOK, s.readings.Chat(r.Context(), id, companion))
}

func (s *Server) handleReadingChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ReadingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	replies, err := s.libraryChat.Send(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, readingChatResponse{Replies: replies})
}

func (s *Server) handleClearReadingChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.readings.Get(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	companion := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("companion")))
	if err := s.readings.ClearChat(r.Context(), id, companion); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}
