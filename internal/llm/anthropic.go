package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	anthropicVersion      = "2023-06-01"
	anthropicMaxTokens    = 2048
)

// AnthropicAdapter calls the Anthropic Messages API.
type AnthropicAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewAnthropicAdapter(baseURL, apiKey string, client *http.Client) *AnthropicAdapter {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &AnthropicAdapter{baseURL: baseURL, apiKey: strings.TrimSpace(apiKey), client: client}
}

type anthropicImageSource struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type anthropicBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage anthropicUsage `json:"usage"`
}

type anthropicEvent struct {
	Type    string            `json:"type"`
	Message anthropicResponse `json:"message"`
	Delta   struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage anthropicUsage `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AnthropicAdapter) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	if a.apiKey == "" {
		return Response{}, missingCredential("Anthropic")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = DefaultAnthropicModel
	}

	blocks := make([]anthropicBlock, 0, 2)
	if strings.TrimSpace(req.ImageURL) != "" {
		blocks = append(blocks, anthropicBlock{Type: "image", Source: &anthropicImageSource{Type: "url", URL: req.ImageURL}})
	}
	blocks = append(blocks, anthropicBlock{Type: "text", Text: req.Input})
	body := anthropicRequest{
		Model:     model,
		MaxTokens: anthropicMaxTokens,
		System:    req.Instructions,
		Messages:  []anthropicMessage{{Role: "user", Content: blocks}},
		Stream:    onDelta != nil,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	res, err := a.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		return Response{}, &StatusError{Provider: BackendAnthropic, Status: res.StatusCode, Body: string(raw)}
	}

	if body.Stream {
		return a.consumeStream(res.Body, model, onDelta)
	}

	var out anthropicResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode anthropic response: %w", err)
	}
	var b strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	text := b.String()
	if text == "" {
		text = NoTextOutput
	}
	if out.Model != "" {
		model = out.Model
	}
	return Response{
		Text:  text,
		Model: model,
		Usage: Usage{InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens},
	}, nil
}

func (a *AnthropicAdapter) consumeStream(body io.Reader, model string, onDelta DeltaHandler) (Response, error) {
	var (
		out   strings.Builder
		usage Usage
	)
	err := readSSE(body, func(_ string, data string) error {
		var ev anthropicEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil
		}
		switch ev.Type {
		case "message_start":
			usage.InputTokens = ev.Message.Usage.InputTokens
			if ev.Message.Model != "" {
				model = ev.Message.Model
			}
		case "content_block_delta":
			if ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
				return nil
			}
			out.WriteString(ev.Delta.Text)
			if onDelta != nil {
				return onDelta(ev.Delta.Text)
			}
		case "message_delta":
			usage.OutputTokens = ev.Usage.OutputTokens
		case "error":
			return &StatusError{Provider: BackendAnthropic, Status: http.StatusBadGateway, Body: ev.Error.Message}
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	text := out.String()
	if text == "" {
		text = NoTextOutput
	}
	return Response{Text: text, Model: model, Usage: usage}, nil
}
