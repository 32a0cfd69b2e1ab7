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
	DefaultOpenAIModel = "gpt-4o"
	DefaultImageModel  = "dall-e-3"
	DefaultSearchModel = "gpt-4o-mini"
)

// OpenAIAdapter calls the OpenAI Responses API.
type OpenAIAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOpenAIAdapter(baseURL, apiKey string, client *http.Client) *OpenAIAdapter {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &OpenAIAdapter{baseURL: baseURL, apiKey: strings.TrimSpace(apiKey), client: client}
}

type responsesContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type responsesInput struct {
	Role    string             `json:"role"`
	Content []responsesContent `json:"content"`
}

type responsesTool struct {
	Type string `json:"type"`
}

type responsesRequest struct {
	Model        string           `json:"model"`
	Instructions string           `json:"instructions,omitempty"`
	Input        []responsesInput `json:"input"`
	Tools        []responsesTool  `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

type responsesOutput struct {
	Model  string `json:"model"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage Usage `json:"usage"`
}

// outputText concatenates every output_text item.
func (o responsesOutput) outputText() string {
	var b strings.Builder
	for _, item := range o.Output {
		for _, c := range item.Content {
			if c.Type == "output_text" {
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}

type responsesEvent struct {
	Type     string          `json:"type"`
	Delta    string          `json:"delta"`
	Response responsesOutput `json:"response"`
	Message  string          `json:"message"`
}

func (a *OpenAIAdapter) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	content := []responsesContent{{Type: "input_text", Text: req.Input}}
	if strings.TrimSpace(req.ImageURL) != "" {
		content = append(content, responsesContent{Type: "input_image", ImageURL: req.ImageURL})
	}
	body := responsesRequest{
		Model:        model,
		Instructions: req.Instructions,
		Input:        []responsesInput{{Role: "user", Content: content}},
		Stream:       onDelta != nil,
	}
	return a.respond(ctx, body, onDelta)
}

func (a *OpenAIAdapter) respond(ctx context.Context, body responsesRequest, onDelta DeltaHandler) (Response, error) {
	res, err := a.post(ctx, "/responses", body)
	if err != nil {
		return Response{}, err
	}
	defer res.Body.Close()

	if body.Stream {
		return a.consumeStream(res.Body, body.Model, onDelta)
	}

	var out responsesOutput
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode openai response: %w", err)
	}
	text := out.outputText()
	if text == "" {
		text = NoTextOutput
	}
	model := out.Model
	if model == "" {
		model = body.Model
	}
	return Response{Text: text, Model: model, Usage: out.Usage}, nil
}

func (a *OpenAIAdapter) consumeStream(body io.Reader, model string, onDelta DeltaHandler) (Response, error) {
	var (
		out   strings.Builder
		final responsesOutput
	)
	err := readSSE(body, func(_ string, data string) error {
		var ev responsesEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil
		}
		switch ev.Type {
		case "response.output_text.delta":
			if ev.Delta == "" {
				return nil
			}
			out.WriteString(ev.Delta)
			if onDelta != nil {
				return onDelta(ev.Delta)
			}
		case "response.completed":
			final = ev.Response
		case "response.failed", "error":
			msg := ev.Message
			if msg == "" {
				msg = data
			}
			return &StatusError{Provider: BackendOpenAI, Status: http.StatusBadGateway, Body: msg}
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	text := out.String()
	if text == "" {
		text = final.outputText()
	}
	if text == "" {
		text = NoTextOutput
	}
	if final.Model != "" {
		model = final.Model
	}
	return Response{Text: text, Model: model, Usage: final.Usage}, nil
}

func (a *OpenAIAdapter) post(ctx context.Context, path string, body any) (*http.Response, error) {
	if a.apiKey == "" {
		return nil, missingCredential("OpenAI")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	res, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		return nil, &StatusError{Provider: BackendOpenAI, Status: res.StatusCode, Body: string(raw)}
	}
	return res, nil
}

// OpenAITools serves /imagine and /search from the OpenAI API.
type OpenAITools struct {
	api         *OpenAIAdapter
	imageModel  string
	searchModel string
}

func NewOpenAITools(api *OpenAIAdapter, imageModel, searchModel string) *OpenAITools {
	if strings.TrimSpace(imageModel) == "" {
		imageModel = DefaultImageModel
	}
	if strings.TrimSpace(searchModel) == "" {
		searchModel = DefaultSearchModel
	}
	return &OpenAITools{api: api, imageModel: imageModel, searchModel: searchModel}
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage returns a URL, or a data URL when the API answers with
// base64 content.
func (t *OpenAITools) GenerateImage(ctx context.Context, prompt string) (string, error) {
	res, err := t.api.post(ctx, "/images/generations", imageRequest{
		Model:  t.imageModel,
		Prompt: prompt,
		N:      1,
		Size:   "1024x1024",
	})
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var out imageResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode image response: %w", err)
	}
	if len(out.Data) == 0 {
		return "", fmt.Errorf("image response has no data")
	}
	if out.Data[0].URL != "" {
		return out.Data[0].URL, nil
	}
	if out.Data[0].B64JSON != "" {
		return "data:image/png;base64," + out.Data[0].B64JSON, nil
	}
	return "", fmt.Errorf("image response has no url")
}

// Search runs a Responses call with the web search tool enabled.
func (t *OpenAITools) Search(ctx context.Context, query string) (string, error) {
	resp, err := t.api.respond(ctx, responsesRequest{
		Model:        t.searchModel,
		Instructions: "Search the web and answer concisely. Cite the sources you used.",
		Input:        []responsesInput{{Role: "user", Content: []responsesContent{{Type: "input_text", Text: query}}}},
		Tools:        []responsesTool{{Type: "web_search_preview"}},
	}, nil)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
