package httpapi

import (
	"net/http"
	"strings"

	"github.com/cathedral/cathedral/internal/llm"
)

type statusCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type statusResponse struct {
	Store    string            `json:"store"`
	Personas map[string]string `json:"personas"`
	Checks   []statusCheck     `json:"checks"`
}

// handleStatus reports what is configured, so a fresh install can tell why
// replies come from the mock.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Store:    s.storeBackend,
		Personas: make(map[string]string, len(s.order)),
		Checks:   make([]statusCheck, 0, 8),
	}

	storeCheck := statusCheck{ID: "store", Status: "ok", Label: "Store", Detail: s.storeBackend}
	if s.storeBackend == "memory" {
		storeCheck.Status = "warn"
		storeCheck.Detail = "in-memory store, data is lost on restart"
		storeCheck.Fix = "Set REDIS_URL, DATABASE_URL or SQLITE_PATH."
	}
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			storeCheck.Status = "error"
			storeCheck.Detail = err.Error()
		}
	}
	resp.Checks = append(resp.Checks, storeCheck)

	for _, name := range s.order {
		p := s.personas[name]
		backend := s.backendFor(p.Info.Backend)
		resp.Personas[name] = backend
		check := statusCheck{ID: "backend_" + name, Status: "ok", Label: p.Info.DisplayName + " backend", Detail: backend}
		switch backend {
		case llm.BackendMock:
			check.Status = "warn"
			check.Fix = "Set OPENAI_API_KEY or ANTHROPIC_API_KEY."
		case llm.BackendOpenAI:
			if strings.TrimSpace(s.cfg.OpenAIKey) == "" {
				check.Status = "error"
				check.Fix = "Set OPENAI_API_KEY."
			}
		case llm.BackendAnthropic:
			if strings.TrimSpace(s.cfg.AnthropicKey) == "" {
				check.Status = "error"
				check.Fix = "Set ANTHROPIC_API_KEY."
			}
		}
		resp.Checks = append(resp.Checks, check)
	}

	secret := statusCheck{ID: "memory_secret", Status: "ok", Label: "Memory export"}
	if s.cfg.MemorySecret == "" {
		secret.Status = "warn"
		secret.Detail = "export endpoints are closed"
		secret.Fix = "Set MEMORY_SECRET to enable /memories and history export."
	}
	resp.Checks = append(resp.Checks, secret)

	respondJSON(w, http.StatusOK, resp)
}

// backendFor resolves auto the way llm.NewAdapter does.
func (s *Server) backendFor(configured string) string {
	backend := strings.ToLower(strings.TrimSpace(configured))
	if backend != "" && backend != llm.BackendAuto {
		return backend
	}
	switch {
	case s.cfg.OpenAIKey != "":
		return llm.BackendOpenAI
	case s.cfg.AnthropicKey != "":
		return llm.BackendAnthropic
	default:
		return llm.BackendMock
	}
}
