// Package llm talks to the text generation, image generation and web search
// backends personas are configured with.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	BackendAuto      = "auto"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendMock      = "mock"

	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	DefaultTimeout          = 120 * time.Second

	// NoTextOutput is returned when a backend answers without any text.
	NoTextOutput = "(No text output)"
)

// Request is one generation turn.
type Request struct {
	TurnID       string
	Persona      string
	SessionID    string
	Model        string
	Instructions string
	Input        string
	// ImageURL attaches an image to the user input when set.
	ImageURL string
}

// Usage carries the token counters reported by the backend.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the final text after any streaming.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Usage Usage  `json:"usage"`
}

// DeltaHandler receives streamed text fragments.
type DeltaHandler func(delta string) error

// Adapter generates a reply. A nil onDelta asks for a single non-streamed
// response.
type Adapter interface {
	StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error)
}

// ImageGenerator turns a prompt into an image URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Searcher answers a query with web search results summarized as text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Config controls adapter construction.
type Config struct {
	Backend          string
	Model            string
	OpenAIKey        string
	OpenAIBaseURL    string
	AnthropicKey     string
	AnthropicBaseURL string
	Timeout          time.Duration
}

func (c Config) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NewAdapter builds the generation backend for one persona. Explicit
// backends are built even without credentials so that the missing key is
// reported on use. Auto prefers OpenAI, falls back to Anthropic and ends at
// the mock when no key is configured.
func NewAdapter(cfg Config) (Adapter, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendAuto
	}

	switch backend {
	case BackendAuto:
		return newAutoAdapter(cfg), nil
	case BackendOpenAI:
		return NewOpenAIAdapter(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.httpClient()), nil
	case BackendAnthropic:
		return NewAnthropicAdapter(cfg.AnthropicBaseURL, cfg.AnthropicKey, cfg.httpClient()), nil
	case BackendMock:
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported generation backend %q", cfg.Backend)
	}
}

func newAutoAdapter(cfg Config) Adapter {
	hasOpenAI := strings.TrimSpace(cfg.OpenAIKey) != ""
	hasAnthropic := strings.TrimSpace(cfg.AnthropicKey) != ""

	switch {
	case hasOpenAI && hasAnthropic:
		return NewFallbackAdapter(
			NewOpenAIAdapter(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.httpClient()),
			NewAnthropicAdapter(cfg.AnthropicBaseURL, cfg.AnthropicKey, cfg.httpClient()),
		)
	case hasOpenAI:
		return NewOpenAIAdapter(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.httpClient())
	case hasAnthropic:
		return NewAnthropicAdapter(cfg.AnthropicBaseURL, cfg.AnthropicKey, cfg.httpClient())
	default:
		return NewMockAdapter()
	}
}

// NewTurnID returns an id for correlating one generation across logs.
func NewTurnID() string {
	return uuid.NewString()
}

// Tools is the pair of helpers behind /imagine and /search.
type Tools interface {
	ImageGenerator
	Searcher
}

// NewTools uses OpenAI when a key is configured or the backend was chosen
// explicitly, and the offline mock otherwise.
func NewTools(cfg Config, imageModel, searchModel string) Tools {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if strings.TrimSpace(cfg.OpenAIKey) == "" && (backend == "" || backend == BackendAuto || backend == BackendMock) {
		return MockTools{}
	}
	return NewOpenAITools(NewOpenAIAdapter(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.httpClient()), imageModel, searchModel)
}
