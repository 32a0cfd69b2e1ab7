package llm

import (
	"context"
	"errors"
	"fmt"
)

// FallbackAdapter tries a primary adapter and falls back on error, as long
// as the primary has not streamed anything yet.
type FallbackAdapter struct {
	primary  Adapter
	fallback Adapter
}

func NewFallbackAdapter(primary Adapter, fallback Adapter) *FallbackAdapter {
	return &FallbackAdapter{primary: primary, fallback: fallback}
}

func (a *FallbackAdapter) Primary() Adapter {
	if a == nil {
		return nil
	}
	return a.primary
}

func (a *FallbackAdapter) Secondary() Adapter {
	if a == nil {
		return nil
	}
	return a.fallback
}

func (a *FallbackAdapter) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	if a == nil || a.primary == nil {
		if a != nil && a.fallback != nil {
			return a.fallback.StreamResponse(ctx, req, onDelta)
		}
		return Response{}, fmt.Errorf("fallback adapter misconfigured")
	}

	streamed := false
	var primaryDelta DeltaHandler
	if onDelta != nil {
		primaryDelta = func(delta string) error {
			streamed = true
			return onDelta(delta)
		}
	}

	resp, err := a.primary.StreamResponse(ctx, req, primaryDelta)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Response{}, err
	}
	if a.fallback == nil || streamed {
		return Response{}, err
	}
	// Model names are backend specific; let the fallback use its default.
	next := req
	next.Model = ""
	fallbackResp, fallbackErr := a.fallback.StreamResponse(ctx, next, onDelta)
	if fallbackErr != nil {
		return Response{}, fmt.Errorf("primary adapter error: %w; fallback adapter error: %v", err, fallbackErr)
	}
	return fallbackResp, nil
}
