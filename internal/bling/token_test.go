package bling

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/garrettladley/adega/internal/storage"
)

type testProvider struct{}

func (testProvider) GetClientID() string     { return "client" }
func (testProvider) GetClientSecret() string { return "secret" }
func (testProvider) GetRedirectURL() string  { return "http://localhost:8080/auth/bling/callback" }

func tokenServer(t *testing.T, hits *atomic.Int32) *oauth2.Config {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","refresh_token":"r2","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)

	cfg := NewConfig(testProvider{})
	cfg.Endpoint.TokenURL = srv.URL
	return cfg
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(testProvider{})
	assert.Equal(t, "client", cfg.ClientID)
	assert.Equal(t, authURL, cfg.Endpoint.AuthURL)
	assert.Equal(t, oauth2.AuthStyleInHeader, cfg.Endpoint.AuthStyle)
	assert.Contains(t, cfg.AuthCodeURL("xyz"), "state=xyz")
}

func TestDBTokenSource_NoToken(t *testing.T) {
	t.Parallel()

	src := NewDBTokenSource(NewConfig(testProvider{}), storage.NewMemoryStore())

	has, err := src.HasToken(t.Context())
	require.NoError(t, err)
	assert.False(t, has)

	_, err = src.TokenContext(t.Context())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestDBTokenSource_ValidTokenServedWithoutRefresh(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	store := storage.NewMemoryStore()
	require.NoError(t, store.UpsertToken(t.Context(), storage.Token{
		AccessToken: "live",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))
	src := NewDBTokenSource(tokenServer(t, &hits), store)

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "live", tok.AccessToken)
	assert.Zero(t, hits.Load())

	has, err := src.HasToken(t.Context())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestDBTokenSource_ExpiredTokenRefreshedAndSaved(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	store := storage.NewMemoryStore()
	require.NoError(t, store.UpsertToken(t.Context(), storage.Token{
		AccessToken:  "stale",
		RefreshToken: "r1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Minute),
	}))
	src := NewDBTokenSource(tokenServer(t, &hits), store)

	tok, err := src.TokenContext(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, int32(1), hits.Load())

	stored, err := store.GetToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.AccessToken)
	assert.Equal(t, "r2", stored.RefreshToken)

	// cached now
	_, err = src.TokenContext(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDBTokenSource_ExpiredWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, store.UpsertToken(t.Context(), storage.Token{
		AccessToken: "stale",
		Expiry:      time.Now().Add(-time.Minute),
	}))
	src := NewDBTokenSource(NewConfig(testProvider{}), store)

	_, err := src.TokenContext(t.Context())
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestDBTokenSource_ForcedRefresh(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	store := storage.NewMemoryStore()
	require.NoError(t, store.UpsertToken(t.Context(), storage.Token{
		AccessToken:  "live",
		RefreshToken: "r1",
		Expiry:       time.Now().Add(time.Hour),
	}))
	src := NewDBTokenSource(tokenServer(t, &hits), store)

	tok, err := src.Refresh(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDBTokenSource_Exchange(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	store := storage.NewMemoryStore()
	src := NewDBTokenSource(tokenServer(t, &hits), store)

	tok, err := src.Exchange(t.Context(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)

	has, err := src.HasToken(t.Context())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGenerateState(t *testing.T) {
	t.Parallel()

	a, err := GenerateState()
	require.NoError(t, err)
	b, err := GenerateState()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}
