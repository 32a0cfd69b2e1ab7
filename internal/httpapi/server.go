package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/chat"
	"github.com/cathedral/cathedral/internal/config"
	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/kv"
	"github.com/cathedral/cathedral/internal/library"
	"github.com/cathedral/cathedral/internal/memory"
	"github.com/cathedral/cathedral/internal/observability"
	"github.com/cathedral/cathedral/internal/persona"
	"github.com/cathedral/cathedral/internal/projectfile"
	"github.com/cathedral/cathedral/internal/session"
)

// Persona bundles the per-persona components the HTTP surface serves.
type Persona struct {
	Info     persona.Persona
	Sessions *session.Manager
	History  *history.Log
	Memories *memory.Store
	Files    *projectfile.Store
	Chat     *chat.Orchestrator
}

type Deps struct {
	Config       config.Config
	Personas     []Persona
	Readings     *library.Store
	LibraryChat  *chat.LibraryChat
	Store        kv.Store
	StoreBackend string
	Metrics      *observability.Metrics
	Logger       zerolog.Logger
}

type Server struct {
	cfg          config.Config
	personas     map[string]Persona
	order        []string
	readings     *library.Store
	libraryChat  *chat.LibraryChat
	store        kv.Store
	storeBackend string
	metrics      *observability.Metrics
	logger       zerolog.Logger
	upgrader     websocket.Upgrader
}

func New(d Deps) *Server {
	s := &Server{
		cfg:          d.Config,
		personas:     make(map[string]Persona, len(d.Personas)),
		readings:     d.Readings,
		libraryChat:  d.LibraryChat,
		store:        d.Store,
		storeBackend: d.StoreBackend,
		metrics:      d.Metrics,
		logger:       d.Logger.With().Str("component", "httpapi").Logger(),
	}
	for _, p := range d.Personas {
		name := strings.ToLower(p.Info.Namespace)
		s.personas[name] = p
		s.order = append(s.order, name)
	}
	allowAny := d.Config.AllowAnyOrigin
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAny {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				// Non-browser clients often omit Origin.
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false
			}
			return strings.EqualFold(u.Host, r.Host)
		},
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.metricsMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(securityHeaders)
	r.Use(maxBodySize(s.cfg.MaxBodyBytes))

	// The browser extension posts captures from arbitrary page origins.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/status", s.handleStatus)
	r.Get("/debug/turns", s.handleTurnLatency)
	r.Handle("/metrics", observability.MetricsHandler())

	r.Get("/memories", s.handleDumpMemories)

	r.Route("/library/readings", func(r chi.Router) {
		r.Get("/", s.handleListReadings)
		r.Post("/", s.handleCreateReading)
		r.Get("/{id}", s.handleGetReading)
		r.Patch("/{id}", s.handleUpdateReading)
		r.Delete("/{id}", s.handleDeleteReading)
		r.Get("/{id}/chat", s.handleReadingChatHistory)
		r.Post("/{id}/chat", s.handleReadingChat)
		r.Delete("/{id}/chat", s.handleClearReadingChat)
	})

	r.Route("/{persona}", func(r chi.Router) {
		r.Use(s.personaContext)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Patch("/sessions/{id}", s.handleRenameSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Get("/sessions/{id}/history", s.handleReadHistory)
		r.Delete("/sessions/{id}/history", s.handleClearHistory)
		r.Post("/sessions/{id}/history/truncate", s.handleTruncateHistory)

		r.Post("/chat", s.handleChat)
		r.Get("/chat/ws", s.handleChatWS)
		r.Get("/search", s.handleSearch)

		r.Get("/memories", s.handleListMemories)
		r.Post("/memories", s.handleAddMemory)
		r.Delete("/memories/{id}", s.handleDeleteMemory)

		r.Get("/history/export", s.handleExportHistory)

		r.Get("/files", s.handleListFiles)
		r.Post("/files", s.handleUploadFile)
		r.Get("/files/{id}", s.handleGetFile)
		r.Delete("/files/{id}", s.handleDeleteFile)
	})

	return r
}

type personaKey struct{}

func (s *Server) personaContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "persona")))
		p, ok := s.personas[name]
		if !ok {
			respondError(w, http.StatusNotFound, "persona_not_found", "unknown persona "+name)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), personaKey{}, p)))
	})
}

func personaFrom(r *http.Request) Persona {
	p, _ := r.Context().Value(personaKey{}).(Persona)
	return p
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"store":    s.storeBackend,
		"personas": s.order,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"store":  s.storeBackend,
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"store":  s.storeBackend,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

type successResponse struct {
	Success bool `json:"success"`
}
