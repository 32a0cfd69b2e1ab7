package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/cathedral/cathedral/internal/chat"
	"github.com/cathedral/cathedral/internal/library"
	"github.com/cathedral/cathedral/internal/llm"
	"github.com/cathedral/cathedral/internal/projectfile"
	"github.com/cathedral/cathedral/internal/session"
)

type providerErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// respondDomainError maps domain and provider failures onto HTTP statuses.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	var statusErr *llm.StatusError
	switch {
	case errors.As(err, &statusErr):
		status := statusErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		respondJSON(w, status, providerErrorResponse{
			Error:     statusErr.Body,
			Code:      statusErr.Provider + "_error",
			Retryable: statusErr.Retryable(),
		})
	case errors.Is(err, llm.ErrMissingCredential):
		respondError(w, http.StatusInternalServerError, "missing_credential", err.Error())
	case errors.Is(err, chat.ErrSessionRequired), errors.Is(err, chat.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, library.ErrInvalidInput), errors.Is(err, projectfile.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, library.ErrNotFound), errors.Is(err, projectfile.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
