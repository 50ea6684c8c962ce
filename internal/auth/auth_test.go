package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"access_token":"tok","expires_in":1799,"token_type":"bearer"}`))
		assert.NoError(t, err)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newManager(t *testing.T, baseURL string) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(Config{
		BaseURL:     baseURL,
		Credentials: &Credentials{ClientID: "id", ClientSecret: "secret"},
	})
	require.NoError(t, err)
	return m
}

func TestNewTokenManager(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		_, err := NewTokenManager(Config{BaseURL: "https://api.crowdstrike.com"})
		require.Error(t, err)

		_, err = NewTokenManager(Config{
			BaseURL:     "https://api.crowdstrike.com",
			Credentials: &Credentials{ClientID: "id"},
		})
		require.Error(t, err)
	})

	t.Run("endpoints", func(t *testing.T) {
		m := newManager(t, "https://api.eu-1.crowdstrike.com/")
		assert.Equal(t, "https://api.eu-1.crowdstrike.com/oauth2/token", m.cc.TokenURL)
		assert.Equal(t, "https://api.eu-1.crowdstrike.com/oauth2/revoke", m.revokeURL)
		assert.Equal(t, oauth2.AuthStyleInParams, m.cc.AuthStyle)
		assert.Equal(t, DefaultRefreshMargin, m.margin)
		assert.Empty(t, m.cc.EndpointParams)
	})

	t.Run("member CID", func(t *testing.T) {
		m, err := NewTokenManager(Config{
			BaseURL:     "https://api.crowdstrike.com",
			Credentials: &Credentials{ClientID: "id", ClientSecret: "secret", MemberCID: "child"},
			Margin:      time.Minute,
		})
		require.NoError(t, err)
		assert.Equal(t, "child", m.cc.EndpointParams.Get("member_cid"))
		assert.Equal(t, time.Minute, m.margin)
	})
}

func TestTokenManager_Margin(t *testing.T) {
	var calls atomic.Int32
	server := newTokenServer(t, &calls)
	m := newManager(t, server.URL)

	now := time.Now()
	m.now = func() time.Time { return now }

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	// Still more than the margin left.
	now = tok.Expiry.Add(-DefaultRefreshMargin - time.Second)
	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// Inside the margin.
	now = tok.Expiry.Add(-DefaultRefreshMargin)
	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenManager_Invalidate(t *testing.T) {
	var calls atomic.Int32
	server := newTokenServer(t, &calls)
	m := newManager(t, server.URL)

	_, err := m.Token(context.Background())
	require.NoError(t, err)

	m.Invalidate()
	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

// newBlockingTokenServer answers token requests only after release is called.
// arrived receives once per request as it reaches the handler.
func newBlockingTokenServer(t *testing.T, calls *atomic.Int32) (server *httptest.Server, arrived <-chan struct{}, release func()) {
	t.Helper()
	ch := make(chan struct{}, 64)
	gate := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		ch <- struct{}{}
		<-gate
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"access_token":"tok","expires_in":1799,"token_type":"bearer"}`))
		assert.NoError(t, err)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	release = sync.OnceFunc(func() { close(gate) })
	// Runs before server.Close so a failed test never leaves the handler blocked.
	t.Cleanup(release)
	return server, ch, release
}

func TestTokenManager_Concurrent(t *testing.T) {
	var calls atomic.Int32
	server, arrived, release := newBlockingTokenServer(t, &calls)
	m := newManager(t, server.URL)

	const callers = 20
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for range callers {
		go func() {
			defer done.Done()
			started.Done()
			tok, err := m.Token(context.Background())
			if assert.NoError(t, err) {
				assert.Equal(t, "tok", tok.AccessToken)
			}
		}()
	}

	started.Wait()
	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("token request never reached the server")
	}
	// Give the remaining callers time to join the request in flight.
	time.Sleep(50 * time.Millisecond)
	release()
	done.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenManager_CallerCancelDoesNotFailOthers(t *testing.T) {
	var calls atomic.Int32
	server, arrived, release := newBlockingTokenServer(t, &calls)
	m := newManager(t, server.URL)

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	shortErr := make(chan error, 1)
	go func() {
		_, err := m.Token(shortCtx)
		shortErr <- err
	}()

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("token request never reached the server")
	}

	type result struct {
		tok *oauth2.Token
		err error
	}
	joined := make(chan result, 1)
	go func() {
		tok, err := m.Token(context.Background())
		joined <- result{tok, err}
	}()

	// The first caller gives up while the shared request is still pending.
	require.ErrorIs(t, <-shortErr, context.DeadlineExceeded)
	release()

	select {
	case res := <-joined:
		require.NoError(t, res.err)
		assert.Equal(t, "tok", res.tok.AccessToken)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller never returned")
	}
	assert.Equal(t, int32(1), calls.Load())

	// The token fetched for the abandoned caller is cached.
	_, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenManager_CanceledContext(t *testing.T) {
	var calls atomic.Int32
	server := newTokenServer(t, &calls)
	m := newManager(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Token(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTokenManager_OnRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	var results []error
	m, err := NewTokenManager(Config{
		BaseURL:     server.URL,
		Credentials: &Credentials{ClientID: "id", ClientSecret: "bad"},
		OnRefresh:   func(err error) { results = append(results, err) },
	})
	require.NoError(t, err)

	_, err = m.Token(context.Background())
	require.Error(t, err)

	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, http.StatusUnauthorized, retrieveErr.Response.StatusCode)

	require.Len(t, results, 1)
	assert.Error(t, results[0])
}

func TestTokenManager_Revoke(t *testing.T) {
	t.Run("without token", func(t *testing.T) {
		m := newManager(t, "https://api.crowdstrike.com")
		assert.ErrorIs(t, m.Revoke(context.Background()), ErrNoToken)
	})

	t.Run("error status", func(t *testing.T) {
		var calls atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, err := w.Write([]byte(`{"access_token":"tok","expires_in":1799}`))
			assert.NoError(t, err)
		})
		mux.HandleFunc("POST /oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, err := w.Write([]byte("boom"))
			assert.NoError(t, err)
		})
		server := httptest.NewServer(mux)
		t.Cleanup(server.Close)

		m := newManager(t, server.URL)
		_, err := m.Token(context.Background())
		require.NoError(t, err)

		err = m.Revoke(context.Background())
		var revokeErr *RevokeError
		require.True(t, errors.As(err, &revokeErr))
		assert.Equal(t, http.StatusInternalServerError, revokeErr.StatusCode)
		assert.Equal(t, "boom", string(revokeErr.Body))

		// A failed revoke keeps the token.
		_, err = m.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}
