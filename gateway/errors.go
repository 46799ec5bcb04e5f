package gateway

import "fmt"

// AuthError means no usable bearer token could be obtained, or the client
// credentials are absent from configuration. Payment endpoints are never
// contacted when it is returned.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway auth: %s: %v", e.Reason, e.Err)
	}
	return "gateway auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// GatewayError is a non-success, non-transient provider response. Callers
// must not retry it; 404 additionally drives endpoint-version fallback.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

// TransientError covers network failures and 5xx responses; callers retry
// these with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient gateway error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
