package doubao

import (
	"errors"
	"fmt"
)

// Sentinel errors for node and registry operations.
// All use prefix "doubao:" for identification. Callers should use errors.Is/errors.As.
var (
	ErrValidation     = errors.New("doubao: invalid node input")
	ErrTransport      = errors.New("doubao: API request failed")
	ErrHTTPStatus     = errors.New("doubao: unexpected HTTP status")
	ErrResponseFormat = errors.New("doubao: unexpected API response format")
	ErrNodeNotFound   = errors.New("doubao: node not found in registry")
	ErrDuplicateNode  = errors.New("doubao: node already registered")
	ErrRegistrySealed = errors.New("doubao: registry is sealed")
)

// ValidationError reports a missing or out-of-range caller input.
// It is always returned before any network activity.
type ValidationError struct {
	Node   string
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("doubao: input %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("doubao: node %q input %q: %s", e.Node, e.Field, e.Reason)
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransportError wraps a DNS, connection or timeout failure at the HTTP layer.
type TransportError struct {
	Endpoint string
	Err      error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("doubao: API request to %s failed: %v", e.Endpoint, e.Err)
}

// Unwrap returns both ErrTransport and the underlying cause.
func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// StatusError carries a non-success HTTP status and the raw response body.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("doubao: API call failed with status code %d: %s", e.StatusCode, e.Body)
}

// Unwrap returns ErrHTTPStatus.
func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

// ResponseFormatError reports that the expected key path is absent from the
// response body, or that the body is not JSON.
type ResponseFormatError struct {
	Path string
	Body string
}

// Error implements error.
func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("doubao: failed to parse API response at %q, response body: %s", e.Path, e.Body)
}

// Unwrap returns ErrResponseFormat.
func (e *ResponseFormatError) Unwrap() error { return ErrResponseFormat }

// Compile-time checks that the error types implement error.
var (
	_ error = (*ValidationError)(nil)
	_ error = (*TransportError)(nil)
	_ error = (*StatusError)(nil)
	_ error = (*ResponseFormatError)(nil)
)
