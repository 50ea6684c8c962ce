package falcon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tphakala/go-falcon/internal/auth"
)

// Sentinel errors for common failure modes.
var (
	ErrNoCredentials  = errors.New("falcon: no credentials configured")
	ErrNoBaseURL      = errors.New("falcon: no base URL configured")
	ErrCommandTimeout = errors.New("falcon: RTR command did not complete in time")
	ErrNoResources    = errors.New("falcon: response contains no resources")
)

// ErrorDetail is a single entry of the envelope "errors" array.
type ErrorDetail struct {
	Code    int    `json:"code"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// APIError represents a general Falcon API error.
type APIError struct {
	StatusCode int           `json:"status"`
	Message    string        `json:"message"`
	RequestID  string        `json:"trace_id,omitempty"`
	Errors     []ErrorDetail `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("falcon: API error %d: %s (trace_id=%s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("falcon: API error %d: %s", e.StatusCode, e.Message)
}

// AuthenticationError indicates authentication failure (401/403) or a
// failed token request.
type AuthenticationError struct {
	APIError
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("falcon: authentication failed: %s", e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *AuthenticationError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// NotFoundError indicates the requested resource was not found (404).
type NotFoundError struct {
	APIError
	ResourceType string
	ResourceID   string
}

func (e *NotFoundError) Error() string {
	if e.ResourceType != "" && e.ResourceID != "" {
		return fmt.Sprintf("falcon: %s not found: %s", e.ResourceType, e.ResourceID)
	}
	return fmt.Sprintf("falcon: resource not found: %s", e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *NotFoundError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// ValidationError indicates invalid request data, either rejected by the
// API (400) or by local argument checks before any request was sent.
type ValidationError struct {
	APIError
	Fields map[string]string `json:"fields,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("falcon: validation error: %s (fields: %v)", e.Message, e.Fields)
	}
	return fmt.Sprintf("falcon: validation error: %s", e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *ValidationError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// RateLimitError indicates the API rate limit was exceeded (429).
type RateLimitError struct {
	APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("falcon: rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "falcon: rate limit exceeded"
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *RateLimitError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// ServerError indicates an internal server error (5xx).
type ServerError struct {
	APIError
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("falcon: server error %d: %s", e.StatusCode, e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *ServerError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// invalidParam reports a local argument failure for key.
func invalidParam(key, reason string) *ValidationError {
	return &ValidationError{
		APIError: APIError{Message: fmt.Sprintf("%s %s", key, reason)},
		Fields:   map[string]string{key: reason},
	}
}

// newAPIError decodes the vendor error envelope out of a response body.
func newAPIError(statusCode int, body []byte, headers http.Header) APIError {
	base := APIError{
		StatusCode: statusCode,
		RequestID:  headers.Get("X-Cs-Traceid"),
	}

	var env struct {
		Meta struct {
			TraceID string `json:"trace_id"`
		} `json:"meta"`
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		base.Errors = env.Errors
		if base.RequestID == "" {
			base.RequestID = env.Meta.TraceID
		}
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		base.Message = strings.Join(msgs, "; ")
	}

	if base.Message == "" {
		// Fallback to raw body if not a vendor envelope
		base.Message = strings.TrimSpace(string(body))
	}
	if base.Message == "" {
		base.Message = http.StatusText(statusCode)
	}
	return base
}

// parseError converts an HTTP response into the appropriate error type.
func parseError(statusCode int, body []byte, headers http.Header) error {
	base := newAPIError(statusCode, body, headers)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &AuthenticationError{APIError: base}
	case statusCode == http.StatusNotFound:
		return &NotFoundError{APIError: base}
	case statusCode == http.StatusBadRequest:
		return &ValidationError{APIError: base}
	case statusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			APIError:   base,
			RetryAfter: retryAfter(headers),
		}
	case statusCode >= http.StatusInternalServerError:
		return &ServerError{APIError: base}
	default:
		return &base
	}
}

// wrapTransportError maps failures of the token endpoints onto the typed
// errors. Everything else is returned unchanged.
func wrapTransportError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := http.StatusUnauthorized
		headers := http.Header{}
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
			headers = retrieveErr.Response.Header
		}
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
			return parseError(status, retrieveErr.Body, headers)
		}
		return &AuthenticationError{APIError: newAPIError(status, retrieveErr.Body, headers)}
	}

	var revokeErr *auth.RevokeError
	if errors.As(err, &revokeErr) {
		return parseError(revokeErr.StatusCode, revokeErr.Body, revokeErr.Header)
	}

	return err
}

// retryAfter reads the vendor X-RateLimit-RetryAfter header (unix seconds)
// and falls back to the standard Retry-After header.
func retryAfter(headers http.Header) time.Duration {
	if v := headers.Get("X-RateLimit-RetryAfter"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Until(time.Unix(epoch, 0)); d > 0 {
				return d
			}
			return 0
		}
	}
	return parseRetryAfter(headers.Get("Retry-After"))
}

// parseRetryAfter parses the Retry-After header value.
// It handles both seconds (integer) and HTTP-date formats.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := time.Parse(time.RFC1123, value); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			return duration
		}
	}

	return 0
}
