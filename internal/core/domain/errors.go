package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors.
var (
	// ErrAuthentication is matched by every AuthenticationError.
	ErrAuthentication = errors.New("authentication failed")
	// ErrConfiguration is matched by every ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrSecretNotFound indicates the secret source has no value for the name.
	ErrSecretNotFound = errors.New("secret not found")
)

// StatusCoder is implemented by errors that carry an HTTP status for the caller.
type StatusCoder interface {
	StatusCode() int
}

// StatusOf returns the status carried by the first StatusCoder in err's chain,
// or 500 when there is none.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code > 0 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// AuthenticationError reports a missing or unusable inbound credential, a tenant
// that cannot be resolved, or a failed downstream token exchange.
type AuthenticationError struct {
	Reason   string
	TenantID string
	// Status is the exchange's own HTTP status, if it reported one.
	Status int
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

// StatusCode returns the exchange status, or 401.
func (e *AuthenticationError) StatusCode() int {
	if e.Status >= http.StatusBadRequest {
		return e.Status
	}
	return http.StatusUnauthorized
}

func (e *AuthenticationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuthentication}
	}
	return []error{ErrAuthentication, e.Err}
}

// UpstreamError reports a non-success response from the remote mail API.
type UpstreamError struct {
	Status int
	Body   string
	// Kind is a status sentinel, e.g. ErrNotFound from the connector package.
	Kind error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Graph error %d: %s", e.Status, e.Body)
}

// StatusCode returns the remote status.
func (e *UpstreamError) StatusCode() int {
	return e.Status
}

func (e *UpstreamError) Unwrap() error {
	return e.Kind
}

// ConfigurationError reports missing or invalid operator configuration.
// It always maps to a generic server error.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Setting == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Setting, e.Reason)
}

// StatusCode always returns 500.
func (e *ConfigurationError) StatusCode() int {
	return http.StatusInternalServerError
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
