package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for failures that carry no payload. Callers match them with
// errors.Is.
var (
	// ErrNoRefreshToken is returned by Renew when no refresh credential is
	// stored. No network call is made in that case.
	ErrNoRefreshToken = errors.New("no refresh token stored")

	// ErrSessionExpired is returned after a failed renewal forced a local
	// logout. The credential store is already cleared when callers see it.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoDocumentsSelected is returned by chat sends that name no
	// documents. No network call is made in that case.
	ErrNoDocumentsSelected = errors.New("no documents selected")
)

// APIError is the uniform failure for any non-2xx response from the platform.
type APIError struct {
	Message    string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// NetworkError wraps a transport-level failure: no response was received, so
// there is no status code to report.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError is returned by login and register when the platform rejects the
// submitted credentials.
type AuthError struct {
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%d): %s", e.StatusCode, e.Message)
}

// RenewalError is returned when the platform rejects the refresh credential.
// It is fatal for the session: callers must re-authenticate.
type RenewalError struct {
	Err error
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("token renewal failed: %v", e.Err)
}

func (e *RenewalError) Unwrap() error { return e.Err }
