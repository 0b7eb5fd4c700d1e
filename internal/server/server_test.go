package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettladley/adega/internal/bling"
	"github.com/garrettladley/adega/internal/server/handler"
	"github.com/garrettladley/adega/internal/service/invoice"
	"github.com/garrettladley/adega/internal/service/webhook"
	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/xhttp"
	"github.com/garrettladley/adega/internal/xslog"
)

const (
	secret      = "s3cret"
	operatorKey = "op-key"
)

type blingProvider struct{}

func (blingProvider) GetClientID() string     { return "client" }
func (blingProvider) GetClientSecret() string { return "secret" }
func (blingProvider) GetRedirectURL() string  { return "http://localhost:8080/auth/bling/callback" }

type fixture struct {
	handler http.Handler
	store   *storage.MemoryStore
}

func newFixture(t *testing.T, withAuth bool, burst int) fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	backend := storage.NewMemoryBackend(1, burst)
	t.Cleanup(func() { _ = backend.Close() })

	processor := webhook.NewProcessor(
		webhook.Config{Secret: secret, Timeout: time.Second, LogTimeout: time.Second, DedupWindow: time.Hour},
		invoice.NewService(store),
		store,
		webhook.WithDedupStore(storage.NewAttemptDedupStore(store, time.Hour)),
	)

	deps := Deps{
		Logger:      xslog.Discard(),
		Webhook:     handler.NewWebhook(processor, true, nil),
		Logs:        handler.NewLogs(webhook.NewLogService(store)),
		Health:      handler.NewHealth(map[string]handler.Pinger{"database": store, "backend": backend}),
		Limiter:     backend,
		OperatorKey: operatorKey,
	}

	if withAuth {
		tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","refresh_token":"rt","expires_in":21600}`))
		}))
		t.Cleanup(tokenSrv.Close)

		cfg := bling.NewConfig(blingProvider{})
		cfg.Endpoint.TokenURL = tokenSrv.URL
		deps.Auth = handler.NewAuth(cfg, backend, bling.NewDBTokenSource(cfg, store))
	}

	return fixture{handler: Routes(deps), store: store}
}

func (f fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_DeliveriesAreNotRateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, 3)
	body := `{"eventId":"e1","event":"invoice.updated","data":{"id":7}}`

	for range 10 {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/bling", strings.NewReader(body))
		req.Header.Set(xhttp.XBlingSignature256, webhook.Sign([]byte(body), secret))
		rec := f.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get(xhttp.XRequestID))
		assert.Equal(t, "nosniff", rec.Header().Get(xhttp.XContentTypeOpts))
	}

	attempts := f.store.Attempts()
	require.Len(t, attempts, 10)
	assert.False(t, attempts[0].Duplicate)
	assert.True(t, attempts[9].Duplicate)
}

func TestRoutes_LogsRequireOperatorKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, 3)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/webhooks/logs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/logs?page=0", nil)
	req.Header.Set(xhttp.XAPIKey, operatorKey)
	rec = f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/webhooks/logs", nil)
	req.Header.Set(xhttp.XAPIKey, operatorKey)
	rec = f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// burst of 3 is spent
	req = httptest.NewRequest(http.MethodGet, "/webhooks/logs", nil)
	req.Header.Set(xhttp.XAPIKey, operatorKey)
	rec = f.do(req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRoutes_Health(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, 3)

	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/webhooks/bling", nil)).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(httptest.NewRequest(http.MethodDelete, "/webhooks/bling", nil)).Code)
}

func TestRoutes_AuthAbsentWithoutClient(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false, 3)
	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodGet, "/auth/bling/callback", nil)).Code)
}

func TestRoutes_ConnectFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true, 10)

	start := httptest.NewRequest(http.MethodGet, "/auth/bling/start", nil)
	start.Header.Set(xhttp.XAPIKey, operatorKey)
	rec := f.do(start)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "www.bling.com.br", location.Host)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	bad := f.do(httptest.NewRequest(http.MethodGet, "/auth/bling/callback?state=forged&code=c", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	cb := f.do(httptest.NewRequest(http.MethodGet, "/auth/bling/callback?state="+url.QueryEscape(state)+"&code=c", nil))
	require.Equal(t, http.StatusOK, cb.Code, cb.Body.String())

	tok, err := f.store.GetToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)

	replay := f.do(httptest.NewRequest(http.MethodGet, "/auth/bling/callback?state="+url.QueryEscape(state)+"&code=c", nil))
	assert.Equal(t, http.StatusBadRequest, replay.Code)
}
