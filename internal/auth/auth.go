// Package auth provides OAuth2 client credentials handling for the Falcon API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshMargin is how much validity a cached token must have left
// before it is handed out without a refresh.
const DefaultRefreshMargin = 30 * time.Second

const (
	tokenPath  = "/oauth2/token"
	revokePath = "/oauth2/revoke"

	maxErrorBodySize = 64 * 1024

	defaultTokenTimeout = 30 * time.Second
)

// ErrNoToken is returned by Revoke when nothing has been acquired yet.
var ErrNoToken = errors.New("no token to revoke")

// Credentials holds Falcon API client credentials.
type Credentials struct {
	ClientID     string
	ClientSecret string

	// MemberCID selects a child tenant for MSSP parent credentials.
	MemberCID string
}

// Valid reports whether credentials are configured.
func (c *Credentials) Valid() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != ""
}

// RevokeError is returned when the revoke endpoint answers with a non-2xx status.
type RevokeError struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

func (e *RevokeError) Error() string {
	return fmt.Sprintf("token revoke failed with status %d", e.StatusCode)
}

// Config configures a TokenManager.
type Config struct {
	BaseURL     string
	Credentials *Credentials
	HTTPClient  *http.Client
	Logger      *slog.Logger

	// Margin overrides DefaultRefreshMargin when positive.
	Margin time.Duration

	// OnRefresh is called after every token fetch attempt.
	OnRefresh func(err error)
}

// TokenManager acquires, caches and revokes bearer tokens. It holds at
// most one token and is safe for concurrent use.
type TokenManager struct {
	creds      *Credentials
	cc         *clientcredentials.Config
	revokeURL  string
	httpClient *http.Client
	logger     *slog.Logger
	margin     time.Duration
	onRefresh  func(error)
	now        func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
	group singleflight.Group
}

// NewTokenManager creates a TokenManager for the API at cfg.BaseURL.
func NewTokenManager(cfg Config) (*TokenManager, error) {
	if !cfg.Credentials.Valid() {
		return nil, fmt.Errorf("credentials must be provided")
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.Credentials.ClientID,
		ClientSecret: cfg.Credentials.ClientSecret,
		TokenURL:     base.JoinPath(tokenPath).String(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if cfg.Credentials.MemberCID != "" {
		cc.EndpointParams = url.Values{"member_cid": {cfg.Credentials.MemberCID}}
	}

	m := &TokenManager{
		creds:      cfg.Credentials,
		cc:         cc,
		revokeURL:  base.JoinPath(revokePath).String(),
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		margin:     DefaultRefreshMargin,
		onRefresh:  cfg.OnRefresh,
		now:        time.Now,
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{Timeout: defaultTokenTimeout}
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Margin > 0 {
		m.margin = cfg.Margin
	}
	return m, nil
}

// Token returns the cached token while it has more than the refresh margin
// of validity left, and fetches a new one otherwise.
func (m *TokenManager) Token(ctx context.Context) (*oauth2.Token, error) {
	if tok := m.cached(); tok != nil {
		return tok, nil
	}
	return m.fetch(ctx)
}

// Refresh fetches a new token regardless of the cached one.
func (m *TokenManager) Refresh(ctx context.Context) (*oauth2.Token, error) {
	m.Invalidate()
	return m.fetch(ctx)
}

// Invalidate drops the cached token.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}

// Revoke invalidates the current token on the server and drops it locally.
func (m *TokenManager) Revoke(ctx context.Context) error {
	m.mu.Lock()
	tok := m.token
	m.mu.Unlock()
	if tok == nil {
		return ErrNoToken
	}

	form := url.Values{"token": {tok.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating revoke request: %w", err)
	}
	req.SetBasicAuth(m.creds.ClientID, m.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RevokeError{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}
	}

	m.mu.Lock()
	if m.token == tok {
		m.token = nil
	}
	m.mu.Unlock()

	m.logger.Debug("revoked access token")
	return nil
}

func (m *TokenManager) cached() *oauth2.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid(m.token) {
		return m.token
	}
	return nil
}

func (m *TokenManager) valid(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return m.now().Add(m.margin).Before(tok.Expiry)
}

// fetch collapses concurrent fetches into one request to the token endpoint.
// The shared request is detached from the caller's cancellation and bounded
// by the HTTP client timeout; each caller stops waiting when its own ctx ends.
func (m *TokenManager) fetch(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fetchCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, m.httpClient)

	ch := m.group.DoChan("token", func() (any, error) {
		m.logger.Debug("requesting access token", "url", m.cc.TokenURL)

		tok, err := m.cc.Token(fetchCtx)
		if m.onRefresh != nil {
			m.onRefresh(err)
		}
		if err != nil {
			m.logger.Warn("access token request failed", "error", err)
			return nil, fmt.Errorf("fetching token: %w", err)
		}

		m.mu.Lock()
		m.token = tok
		m.mu.Unlock()

		m.logger.Debug("acquired access token", "expiry", tok.Expiry)
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	}
}
