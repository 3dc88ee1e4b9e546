// Package driven defines the driven ports (outbound dependencies) of the
// poller: the Xert API, the OAuth token endpoint, credential persistence,
// and the Home Assistant webhook. It also carries the error taxonomy shared
// by those ports.
package driven

import "fmt"

// ErrorKind classifies a port failure for retry eligibility. Transient
// failures (network, 5xx, rate limit) may be retried once immediately;
// permanent failures propagate as-is.
type ErrorKind string

const (
	ErrorTransient ErrorKind = "transient"
	ErrorPermanent ErrorKind = "permanent"
)

// APIError is returned by XertClient when an upstream read fails.
// StatusCode is zero for network-level failures.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("xert api: %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("xert api: %s error: %v", e.Kind, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Transient reports whether the failure is eligible for a single immediate retry.
func (e *APIError) Transient() bool { return e.Kind == ErrorTransient }

// AuthError is returned when both the refresh and the password grant fail.
// The calling poll cycle is skipped; the process keeps running.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth %s: %v", e.Op, e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

// DispatchError is returned by WebhookSender when webhook delivery fails.
// StatusCode is zero for network-level failures. The sender never retries;
// an undelivered change is re-detected on the next poll cycle.
type DispatchError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook dispatch: %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("webhook dispatch: %s error: %v", e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// StoreError is returned by TokenStore on persistence failures. A failed
// save is logged but does not roll back the in-memory credential.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("token store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }
