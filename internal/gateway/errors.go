package gateway

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthRequired is returned before any network I/O when a protected
// endpoint is called without a session token.
var ErrAuthRequired = errors.New("gateway: authentication required")

// errDeadline is the cancellation cause attached to per-request timeouts.
var errDeadline = errors.New("gateway: request deadline exceeded")

// APIError is a non-2xx response from the remote API.
type APIError struct {
	Status   int
	Message  string
	Endpoint string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Endpoint, e.Status, e.Message)
}

// NetworkError is a connection-level failure.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError is returned when a request outside the soft-failure
// namespaces runs past its deadline.
type TimeoutError struct {
	Endpoint string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Endpoint, e.After)
}

// Message extracts a user-facing message from a gateway error, falling back
// to the generic text when the error carries nothing presentable.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericMessage
}

// GenericMessage is shown when no remote message is available.
const GenericMessage = "Something went wrong. Please try again later."
