// Package api provides low-level HTTP transport for Falcon API calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Rate limit headers returned on every API response.
const (
	HeaderRateLimit          = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
)

// TokenSource supplies bearer tokens to the transport.
type TokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	Refresh(ctx context.Context) (*oauth2.Token, error)
	Invalidate()
}

// Recorder receives request level measurements.
type Recorder interface {
	RequestDone(endpoint, method string, status int, elapsed time.Duration)
	TokenRefreshed(err error)
	RateLimit(limit, remaining int)
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) RequestDone(string, string, int, time.Duration) {}
func (NopRecorder) TokenRefreshed(error)                           {}
func (NopRecorder) RateLimit(int, int)                             {}

// Transport handles HTTP communication with the Falcon API.
type Transport struct {
	BaseURL    *url.URL
	HTTPClient *http.Client
	Tokens     TokenSource
	UserAgent  string
	Logger     *slog.Logger
	Metrics    Recorder

	// Limiter throttles outgoing requests when set.
	Limiter *rate.Limiter
}

// NewTransport creates a Transport with the given configuration.
func NewTransport(baseURL string, tokens TokenSource, httpClient *http.Client) (*Transport, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token source must be provided")
	}

	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}

	return &Transport{
		BaseURL:    u,
		HTTPClient: httpClient,
		Tokens:     tokens,
		UserAgent:  "go-falcon/1.0",
		Logger:     slog.New(slog.DiscardHandler),
		Metrics:    NopRecorder{},
	}, nil
}

// Request represents an API request.
//
// Data is placed according to the method: GET, DELETE and HEAD encode it
// into the query string, every other method sends it as a JSON body.
// Query is always encoded into the query string.
type Request struct {
	// Name labels the request in logs and metrics. Defaults to Path.
	Name    string
	Method  string
	Path    string
	Query   map[string]any
	Data    map[string]any
	Body    any
	Headers http.Header
}

// Response represents an API response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// DataInQuery reports whether Data is sent as query parameters for method.
func DataInQuery(method string) bool {
	switch strings.ToUpper(method) {
	case "", http.MethodGet, http.MethodDelete, http.MethodHead:
		return true
	default:
		return false
	}
}

// Do executes an API request and returns the raw response.
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	httpResp, err := t.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	// Limit response body size to prevent memory exhaustion
	limitedReader := io.LimitReader(httpResp.Body, defaultMaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if int64(len(body)) > defaultMaxBodySize {
		return nil, fmt.Errorf("response too large: exceeds %d bytes", defaultMaxBodySize)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
	}, nil
}

// DoJSON executes a request and unmarshals the JSON response into result.
// It only attempts to unmarshal on success status codes (< 400).
func (t *Transport) DoJSON(ctx context.Context, req *Request, result any) (*Response, error) {
	resp, err := t.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	if result != nil && len(resp.Body) > 0 && resp.StatusCode < 400 {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return resp, fmt.Errorf("unmarshaling response: %w", err)
		}
	}

	return resp, nil
}

// Stream executes a request and returns the live HTTP response. The caller
// must close the body. A 401 answer invalidates the token, refreshes it and
// retries the request exactly once; the second answer is returned as is.
func (t *Transport) Stream(ctx context.Context, req *Request) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, payload, err := t.encode(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.attempt(ctx, req, target, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, defaultMaxBodySize))
	_ = resp.Body.Close()

	t.Logger.Debug("access token rejected, refreshing", "endpoint", req.name())
	t.Tokens.Invalidate()
	if _, err := t.Tokens.Refresh(ctx); err != nil {
		return nil, err
	}

	return t.attempt(ctx, req, target, payload)
}

func (t *Transport) attempt(ctx context.Context, req *Request, target string, payload []byte) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", t.UserAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	maps.Copy(httpReq.Header, req.Headers)

	tok, err := t.Tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	tok.SetAuthHeader(httpReq)

	start := time.Now()
	resp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	elapsed := time.Since(start)

	t.metrics().RequestDone(req.name(), httpReq.Method, resp.StatusCode, elapsed)
	if limit, remaining, ok := ParseRateLimit(resp.Header); ok {
		t.metrics().RateLimit(limit, remaining)
	}

	t.Logger.Debug("api request",
		"endpoint", req.name(),
		"method", httpReq.Method,
		"status", resp.StatusCode,
		"elapsed", elapsed)

	return resp, nil
}

// encode builds the target URL and JSON payload once so that a retry sends
// the identical request.
func (t *Transport) encode(req *Request) (string, []byte, error) {
	u := t.BaseURL.JoinPath(req.Path)

	query := u.Query()
	if err := addValues(query, req.Query); err != nil {
		return "", nil, err
	}

	var body any
	switch {
	case req.Body != nil:
		body = req.Body
	case DataInQuery(req.Method):
		if err := addValues(query, req.Data); err != nil {
			return "", nil, err
		}
	case req.Data != nil:
		body = req.Data
	}
	u.RawQuery = query.Encode()

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return "", nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	return u.String(), payload, nil
}

func (t *Transport) metrics() Recorder {
	if t.Metrics == nil {
		return NopRecorder{}
	}
	return t.Metrics
}

func (r *Request) name() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Path
}

func addValues(q url.Values, data map[string]any) error {
	for _, key := range slices.Sorted(maps.Keys(data)) {
		values, err := EncodeValue(data[key])
		if err != nil {
			return fmt.Errorf("encoding query parameter %q: %w", key, err)
		}
		for _, v := range values {
			q.Add(key, v)
		}
	}
	return nil
}

// EncodeValue renders a parameter value as query string values. Lists
// become repeated keys.
func EncodeValue(v any) ([]string, error) {
	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case []string:
		return val, nil
	case int:
		return []string{strconv.Itoa(val)}, nil
	case int64:
		return []string{strconv.FormatInt(val, 10)}, nil
	case bool:
		return []string{strconv.FormatBool(val)}, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// ParseRateLimit extracts the rate limit headers. ok is false when either
// header is missing or malformed.
func ParseRateLimit(h http.Header) (limit, remaining int, ok bool) {
	l, err := strconv.Atoi(h.Get(HeaderRateLimit))
	if err != nil {
		return 0, 0, false
	}
	r, err := strconv.Atoi(h.Get(HeaderRateLimitRemaining))
	if err != nil {
		return 0, 0, false
	}
	return l, r, true
}
