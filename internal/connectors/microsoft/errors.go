package microsoft

import (
	"errors"
	"net/http"
	"strings"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
)

// Error types for Microsoft Graph API responses.
var (
	// ErrUnauthorised indicates the access token is invalid or expired.
	ErrUnauthorised = errors.New("microsoft: unauthorised")

	// ErrForbidden indicates the user lacks permission for the requested resource.
	ErrForbidden = errors.New("microsoft: forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("microsoft: not found")

	// ErrRateLimited indicates the request was throttled by Microsoft Graph.
	ErrRateLimited = errors.New("microsoft: rate limited")

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = errors.New("microsoft: bad request")

	// ErrServerError indicates a server-side error from Microsoft Graph.
	ErrServerError = errors.New("microsoft: server error")

	// ErrUnexpectedStatus covers any other non-success status.
	ErrUnexpectedStatus = errors.New("microsoft: unexpected status")
)

// WrapError converts an HTTP status code to an appropriate error.
// Success codes return nil.
func WrapError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorised
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		if statusCode >= 500 {
			return ErrServerError
		}
		if statusCode >= 200 && statusCode < 300 {
			return nil
		}
		return ErrUnexpectedStatus
	}
}

// newUpstreamError builds the error returned for a non-success Graph response.
// The body is kept verbatim apart from surrounding whitespace.
func newUpstreamError(statusCode int, body []byte) *domain.UpstreamError {
	return &domain.UpstreamError{
		Status: statusCode,
		Body:   strings.TrimSpace(string(body)),
		Kind:   WrapError(statusCode),
	}
}

// IsRateLimited checks if the status code indicates rate limiting.
func IsRateLimited(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests
}

// IsRetryable checks if the status is potentially transient. Nothing retries
// automatically; callers use it to tell operators whether trying again may help.
func IsRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}
