package falcon

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/tphakala/go-falcon/internal/api"
	"github.com/tphakala/go-falcon/internal/auth"
)

// Default configuration values.
const defaultTimeout = 30 * time.Second

// Client is the Falcon API client. It is safe for concurrent use.
type Client struct {
	// Sensors provides sensor installer operations.
	Sensors SensorService

	// EventStreams provides event stream discovery.
	EventStreams EventStreamService

	// Detects provides detection operations.
	Detects DetectService

	// Hosts provides host inventory and actions.
	Hosts HostService

	// HostGroups provides host group management.
	HostGroups HostGroupService

	// Incidents provides incident and behavior operations.
	Incidents IncidentService

	// Intel provides threat intelligence lookups.
	Intel IntelService

	// RTR provides real time response sessions and commands.
	RTR RTRService

	transport *api.Transport
	tokens    *auth.TokenManager
}

// NewClient creates a new Falcon client with the given options. No
// network call is made until the first request.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.baseURL == "" {
		return nil, ErrNoBaseURL
	}

	creds := &auth.Credentials{
		ClientID:     cfg.clientID,
		ClientSecret: cfg.clientSecret,
		MemberCID:    cfg.memberCID,
	}
	if !creds.Valid() {
		return nil, ErrNoCredentials
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.timeout,
		}
	}
	if cfg.tracing {
		httpClient = instrument(httpClient, cfg.tracerProvider)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	metrics := cfg.metrics
	if metrics == nil {
		metrics = api.NopRecorder{}
	}

	tokens, err := auth.NewTokenManager(auth.Config{
		BaseURL:     cfg.baseURL,
		Credentials: creds,
		HTTPClient:  httpClient,
		Logger:      logger.With("component", "auth"),
		Margin:      cfg.refreshMargin,
		OnRefresh:   metrics.TokenRefreshed,
	})
	if err != nil {
		return nil, err
	}

	transport, err := api.NewTransport(cfg.baseURL, tokens, httpClient)
	if err != nil {
		return nil, err
	}

	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}
	transport.Logger = logger
	transport.Metrics = metrics
	transport.Limiter = cfg.limiter

	client := &Client{
		transport: transport,
		tokens:    tokens,
	}

	// Initialize services
	client.Sensors = newSensorService(transport)
	client.EventStreams = newEventStreamService(transport)
	client.Detects = newDetectService(transport)
	client.Hosts = newHostService(transport)
	client.HostGroups = newHostGroupService(transport)
	client.Incidents = newIncidentService(transport)
	client.Intel = newIntelService(transport)
	client.RTR = newRTRService(transport)

	return client, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

// Token returns the current bearer token, fetching one if none is cached
// or the cached one is within the refresh margin of expiry.
func (c *Client) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	return tok, nil
}

// RefreshToken fetches a new bearer token unconditionally.
func (c *Client) RefreshToken(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.tokens.Refresh(ctx)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	return tok, nil
}

// RevokeToken revokes the current bearer token. The next request acquires
// a new one.
func (c *Client) RevokeToken(ctx context.Context) error {
	if err := c.tokens.Revoke(ctx); err != nil {
		return wrapTransportError(err)
	}
	return nil
}

// instrument returns a copy of hc whose transport records OpenTelemetry spans.
func instrument(hc *http.Client, tp trace.TracerProvider) *http.Client {
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	var opts []otelhttp.Option
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}

	instrumented := *hc
	instrumented.Transport = otelhttp.NewTransport(base, opts...)
	return &instrumented
}
