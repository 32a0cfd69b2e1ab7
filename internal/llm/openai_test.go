package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIAdapterConcatenatesOutputText(t *testing.T) {
	var got responsesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"model":"gpt-4o","output":[
			{"type":"reasoning","content":[]},
			{"type":"message","content":[{"type":"output_text","text":"Hello "},{"type":"refusal","text":"x"},{"type":"output_text","text":"there"}]}
		],"usage":{"input_tokens":12,"output_tokens":3}}`))
	}))
	defer srv.Close()

	a := NewOpenAIAdapter(srv.URL, "sk-test", srv.Client())
	resp, err := a.StreamResponse(context.Background(), Request{
		Model:        "gpt-4o",
		Instructions: "be kind",
		Input:        "hi",
		ImageURL:     "https://img.example/cat.png",
	}, nil)
	if err != nil {
		t.Fatalf("StreamResponse() error = %v", err)
	}
	if resp.Text != "Hello there" {
		t.Fatalf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Fatalf("Usage = %+v", resp.Usage)
	}
	if got.Stream || got.Instructions != "be kind" || len(got.Input) != 1 || len(got.Input[0].Content) != 2 {
		t.Fatalf("request = %+v", got)
	}
	if got.Input[0].Content[1].Type != "input_image" {
		t.Fatalf("image part = %+v", got.Input[0].Content[1])
	}
}

func TestOpenAIAdapterNoTextOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[]}`))
	}))
	defer srv.Close()

	resp, err := NewOpenAIAdapter(srv.URL, "sk", srv.Client()).StreamResponse(context.Background(), Request{Input: "x"}, nil)
	if err != nil {
		t.Fatalf("StreamResponse() error = %v", err)
	}
	if resp.Text != NoTextOutput {
		t.Fatalf("Text = %q, want %q", resp.Text, NoTextOutput)
	}
}

func TestOpenAIAdapterForwardsStatusBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIAdapter(srv.URL, "sk", srv.Client()).StreamResponse(context.Background(), Request{Input: "x"}, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.Status != http.StatusTooManyRequests || statusErr.Body != `{"error":{"message":"slow down"}}` {
		t.Fatalf("StatusError = %+v", statusErr)
	}
	if !statusErr.Retryable() {
		t.Fatalf("429 should be retryable")
	}
}

func TestOpenAIAdapterStreamsDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req responsesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Errorf("stream flag not set")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "event: response.output_text.delta\ndata: {\"type\":\"response.output_text.delta\",\"delta\":%q}\n\n", d)
		}
		fmt.Fprint(w, "event: response.completed\ndata: {\"type\":\"response.completed\",\"response\":{\"model\":\"gpt-4o\",\"usage\":{\"input_tokens\":5,\"output_tokens\":2}}}\n\n")
	}))
	defer srv.Close()

	var deltas []string
	resp, err := NewOpenAIAdapter(srv.URL, "sk", srv.Client()).StreamResponse(context.Background(), Request{Input: "x"}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamResponse() error = %v", err)
	}
	if strings.Join(deltas, "|") != "Hel|lo" || resp.Text != "Hello" {
		t.Fatalf("deltas = %q, text = %q", deltas, resp.Text)
	}
	if resp.Usage.OutputTokens != 2 {
		t.Fatalf("Usage = %+v", resp.Usage)
	}
}

func TestOpenAIToolsGenerateImageAndSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/images/generations":
			_, _ = w.Write([]byte(`{"data":[{"b64_json":"AAAA"}]}`))
		case "/responses":
			var req responsesRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.Tools) != 1 || req.Tools[0].Type != "web_search_preview" {
				t.Errorf("tools = %+v", req.Tools)
			}
			_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text","text":"found it"}]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tools := NewOpenAITools(NewOpenAIAdapter(srv.URL, "sk", srv.Client()), "", "")
	url, err := tools.GenerateImage(context.Background(), "a cat")
	if err != nil || url != "data:image/png;base64,AAAA" {
		t.Fatalf("GenerateImage() = %q, %v", url, err)
	}
	text, err := tools.Search(context.Background(), "weather")
	if err != nil || text != "found it" {
		t.Fatalf("Search() = %q, %v", text, err)
	}
}
