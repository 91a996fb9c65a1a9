package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	openai "github.com/sashabaranov/go-openai"
)

// ErrBackendUnavailable marks connectivity failures: the backend is
// unreachable, refused the connection, or timed out. Application-level
// failures (bad request, model missing) do not carry this mark.
var ErrBackendUnavailable = errors.New("llm backend unavailable")

// classifyErr wraps transport-level failures with ErrBackendUnavailable
// so callers can distinguish them from application errors via
// errors.Is.
func classifyErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isConnectivity(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrBackendUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	// go-openai wraps HTTP-level failures; 5xx from a proxy in front of
	// the backend still means "not reachable" for our purposes.
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}

	return false
}
