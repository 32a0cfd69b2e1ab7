package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter gives deterministic local replies when no backend key is set.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	text := buildMockReply(req)
	if onDelta != nil {
		for _, word := range strings.SplitAfter(text, " ") {
			if err := onDelta(word); err != nil {
				return Response{}, err
			}
		}
	}
	return Response{
		Text:  text,
		Model: BackendMock,
		Usage: Usage{InputTokens: len(strings.Fields(req.Instructions + " " + req.Input)), OutputTokens: len(strings.Fields(text))},
	}, nil
}

func buildMockReply(req Request) string {
	base := strings.TrimSpace(req.Input)
	if base == "" {
		base = "I am listening."
	}
	return fmt.Sprintf("I heard you: %s", base)
}

// MockTools answers /imagine and /search without any network access.
type MockTools struct{}

func (MockTools) GenerateImage(_ context.Context, prompt string) (string, error) {
	return "https://example.invalid/mock-image.png?prompt=" + strings.Join(strings.Fields(prompt), "+"), nil
}

func (MockTools) Search(_ context.Context, query string) (string, error) {
	return fmt.Sprintf("No search backend is configured, so nothing was found for %q.", query), nil
}
