package llm

import (
	"errors"
	"fmt"

	"github.com/cathedral/cathedral/internal/reliability"
)

// ErrMissingCredential means the backend's API key is not configured.
var ErrMissingCredential = errors.New("missing API credential")

// StatusError is a non-2xx answer from a backend. Body is kept verbatim so
// it can be forwarded to the caller.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Status, e.Body)
}

// Retryable reports whether re-submitting may succeed. Nothing retries
// automatically; clients get this as a hint.
func (e *StatusError) Retryable() bool {
	return reliability.IsRetryableHTTPStatus(e.Status)
}

func missingCredential(provider string) error {
	return fmt.Errorf("%w: %s API key is not set", ErrMissingCredential, provider)
}
