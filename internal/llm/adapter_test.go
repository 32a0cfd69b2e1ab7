package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewAdapterAutoFallsBackToMockWithoutKeys(t *testing.T) {
	a, err := NewAdapter(Config{Backend: "auto"})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	resp, err := a.StreamResponse(context.Background(), Request{Input: "hello"}, nil)
	if err != nil {
		t.Fatalf("StreamResponse() error = %v", err)
	}
	if !strings.Contains(resp.Text, "I heard you: hello") {
		t.Fatalf("unexpected response text: %q", resp.Text)
	}
}

func TestNewAdapterAutoPrefersOpenAIWithAnthropicFallback(t *testing.T) {
	a, err := NewAdapter(Config{OpenAIKey: "sk-1", AnthropicKey: "ak-1"})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	fb, ok := a.(*FallbackAdapter)
	if !ok {
		t.Fatalf("adapter type = %T, want *FallbackAdapter", a)
	}
	if _, ok := fb.Primary().(*OpenAIAdapter); !ok {
		t.Fatalf("primary = %T", fb.Primary())
	}
	if _, ok := fb.Secondary().(*AnthropicAdapter); !ok {
		t.Fatalf("secondary = %T", fb.Secondary())
	}
}

func TestNewAdapterRejectsUnknownBackend(t *testing.T) {
	if _, err := NewAdapter(Config{Backend: "carrier-pigeon"}); err == nil {
		t.Fatalf("NewAdapter() error = nil")
	}
}

func TestExplicitBackendReportsMissingCredentialOnUse(t *testing.T) {
	for _, backend := range []string{BackendOpenAI, BackendAnthropic} {
		a, err := NewAdapter(Config{Backend: backend})
		if err != nil {
			t.Fatalf("NewAdapter(%s) error = %v", backend, err)
		}
		_, err = a.StreamResponse(context.Background(), Request{Input: "x"}, nil)
		if !errors.Is(err, ErrMissingCredential) {
			t.Fatalf("%s error = %v, want ErrMissingCredential", backend, err)
		}
	}
}

func TestNewToolsChoosesMockWithoutKey(t *testing.T) {
	if _, ok := NewTools(Config{}, "", "").(MockTools); !ok {
		t.Fatalf("NewTools() without key should be MockTools")
	}
	if _, ok := NewTools(Config{OpenAIKey: "sk"}, "", "").(*OpenAITools); !ok {
		t.Fatalf("NewTools() with key should be *OpenAITools")
	}
}

func TestMockAdapterStreamsWholeReply(t *testing.T) {
	var got strings.Builder
	resp, err := NewMockAdapter().StreamResponse(context.Background(), Request{Input: "a b c"}, func(d string) error {
		got.WriteString(d)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamResponse() error = %v", err)
	}
	if got.String() != resp.Text {
		t.Fatalf("streamed %q, final %q", got.String(), resp.Text)
	}
}

func TestFallbackAdapterUsesFallback(t *testing.T) {
	a := NewFallbackAdapter(errAdapter{}, okAdapter{text: "fallback"})
	resp, err := a.StreamResponse(context.Background(), Request{Input: "x", Model: "gpt-4o"}, nil)
	if err != nil {
		t.Fatalf("StreamResponse() error = %v", err)
	}
	if resp.Text != "fallback" {
		t.Fatalf("resp.Text = %q, want fallback", resp.Text)
	}
}

func TestFallbackAdapterSkipsFallbackOnCanceledContext(t *testing.T) {
	fb := &countingAdapter{text: "fallback"}
	a := NewFallbackAdapter(cancelAdapter{}, fb)
	_, err := a.StreamResponse(context.Background(), Request{Input: "x"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if fb.calls != 0 {
		t.Fatalf("fallback should not be called, calls = %d", fb.calls)
	}
}

func TestFallbackAdapterSkipsFallbackAfterStreaming(t *testing.T) {
	fb := &countingAdapter{text: "fallback"}
	a := NewFallbackAdapter(partialAdapter{}, fb)
	_, err := a.StreamResponse(context.Background(), Request{Input: "x"}, func(string) error { return nil })
	if err == nil {
		t.Fatalf("error = nil, want primary error")
	}
	if fb.calls != 0 {
		t.Fatalf("fallback should not be called after deltas, calls = %d", fb.calls)
	}
}

type errAdapter struct{}

func (errAdapter) StreamResponse(context.Context, Request, DeltaHandler) (Response, error) {
	return Response{}, errors.New("boom")
}

type okAdapter struct{ text string }

func (a okAdapter) StreamResponse(_ context.Context, req Request, _ DeltaHandler) (Response, error) {
	if req.Model != "" {
		return Response{}, errors.New("fallback received primary model")
	}
	return Response{Text: a.text}, nil
}

type cancelAdapter struct{}

func (cancelAdapter) StreamResponse(context.Context, Request, DeltaHandler) (Response, error) {
	return Response{}, context.Canceled
}

type partialAdapter struct{}

func (partialAdapter) StreamResponse(_ context.Context, _ Request, onDelta DeltaHandler) (Response, error) {
	if onDelta != nil {
		_ = onDelta("half a sent")
	}
	return Response{}, errors.New("connection reset")
}

type countingAdapter struct {
	text  string
	calls int
}

func (a *countingAdapter) StreamResponse(context.Context, Request, DeltaHandler) (Response, error) {
	a.calls++
	return Response{Text: a.text}, nil
}
