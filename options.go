package falcon

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tphakala/go-falcon/internal/api"
)

// MetricsRecorder receives request, token and rate limit measurements.
// The metrics package provides a Prometheus implementation.
type MetricsRecorder = api.Recorder

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL       string
	clientID      string
	clientSecret  string
	memberCID     string
	httpClient    *http.Client
	timeout       time.Duration
	userAgent     string
	refreshMargin time.Duration
	logger        *slog.Logger
	metrics       MetricsRecorder
	limiter       *rate.Limiter

	tracing        bool
	tracerProvider trace.TracerProvider
}

// WithBaseURL sets the Falcon API base URL, e.g. CloudEU1.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithCredentials sets the OAuth2 API client credentials.
func WithCredentials(clientID, clientSecret string) ClientOption {
	return func(c *clientConfig) {
		c.clientID = clientID
		c.clientSecret = clientSecret
	}
}

// WithMemberCID requests tokens for a child CID with MSSP parent credentials.
func WithMemberCID(cid string) ClientOption {
	return func(c *clientConfig) {
		c.memberCID = cid
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the default request timeout.
// Note: This option is ignored when WithHTTPClient is used;
// set the timeout directly on the provided client instead.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithTokenRefreshMargin sets how much validity a cached token must have
// left to be reused. Defaults to 30 seconds.
func WithTokenRefreshMargin(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.refreshMargin = d
	}
}

// WithLogger sets the logger. Logging is discarded by default.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) ClientOption {
	return func(c *clientConfig) {
		c.metrics = m
	}
}

// WithRateLimit throttles the client to perMinute requests. The API
// reports its own limits in X-RateLimit headers but the client does not
// enforce them unless this option is set.
func WithRateLimit(perMinute int) ClientOption {
	return func(c *clientConfig) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1+perMinute/60)
	}
}

// WithTracing instruments outgoing requests with OpenTelemetry. A nil
// provider uses the global one.
func WithTracing(tp trace.TracerProvider) ClientOption {
	return func(c *clientConfig) {
		c.tracing = true
		c.tracerProvider = tp
	}
}

// WithConfig applies a Config loaded from the environment or a file.
// Empty fields leave the current settings untouched.
func WithConfig(cfg *Config) ClientOption {
	return func(c *clientConfig) {
		if cfg == nil {
			return
		}
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.ClientID != "" || cfg.ClientSecret != "" {
			c.clientID = cfg.ClientID
			c.clientSecret = cfg.ClientSecret
		}
		if cfg.MemberCID != "" {
			c.memberCID = cfg.MemberCID
		}
		if cfg.UserAgent != "" {
			c.userAgent = cfg.UserAgent
		}
		if cfg.Timeout > 0 {
			c.timeout = cfg.Timeout
		}
		if cfg.TokenRefreshMargin > 0 {
			c.refreshMargin = cfg.TokenRefreshMargin
		}
	}
}

// RequestOption configures individual API requests.
type RequestOption func(*requestConfig)

type requestConfig struct {
	headers http.Header
}

func newRequestConfig() *requestConfig {
	return &requestConfig{
		headers: make(http.Header),
	}
}

func (r *requestConfig) apply(opts ...RequestOption) {
	for _, opt := range opts {
		opt(r)
	}
}

// WithHeader adds a custom header to a request.
func WithHeader(key, value string) RequestOption {
	return func(r *requestConfig) {
		r.headers.Set(key, value)
	}
}

// WithHeaders adds multiple custom headers to a request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *requestConfig) {
		for k, v := range headers {
			r.headers.Set(k, v)
		}
	}
}

// WithRequestID sets the X-Request-ID header for tracing. A random ID is
// sent when this is not used.
func WithRequestID(id string) RequestOption {
	return WithHeader("X-Request-ID", id)
}
