// Package reliability classifies upstream failures.
package reliability

import "net/http"

// IsRetryableHTTPStatus reports whether a vendor status is worth retrying
// later. Cathedral never retries itself; clients get this as a hint.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		529: // Anthropic overloaded
		return true
	default:
		return false
	}
}
