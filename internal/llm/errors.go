package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const maxErrorBody = 512

// ConfigurationError means the client cannot run at all, usually because the
// provider key is missing.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration: %s", e.Provider, e.Reason)
}

// UpstreamError is a non-success answer from the provider.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: upstream: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// TimeoutError means the provider did not answer within the client timeout.
type TimeoutError struct {
	Provider string
	After    time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no response after %s", e.Provider, e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// EmptyResponseError means the provider answered but carried no usable text.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s: response has no text", e.Provider)
}

func truncateBody(b []byte) string {
	if len(b) <= maxErrorBody {
		return string(b)
	}
	return string(b[:maxErrorBody]) + "..."
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
