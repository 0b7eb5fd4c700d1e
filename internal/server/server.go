package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/garrettladley/adega/internal/server/handler"
	servermw "github.com/garrettladley/adega/internal/server/middleware"
	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/xhttp/middleware"
)

// Deps are the handlers and guards the router is built from. Auth is nil when
// no Bling OAuth client is configured.
type Deps struct {
	Logger      *slog.Logger
	Webhook     *handler.Webhook
	Logs        *handler.Logs
	Health      *handler.Health
	Auth        *handler.Auth
	Limiter     storage.RateLimiter
	OperatorKey string
}

// Routes builds the full handler tree.
//
// Deliveries are never rate limited: the sender retries on 429 and a limit
// would only delay invoice state. The operator surface is limited per IP and
// optionally guarded by the operator key.
func Routes(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhooks/bling", d.Webhook.HandleWebhook)
	mux.HandleFunc("GET /webhooks/bling", d.Webhook.HandleHealth)
	mux.HandleFunc("GET /health", d.Health.HandleHealth)

	operatorMux := http.NewServeMux()
	operatorMux.HandleFunc("GET /webhooks/logs", d.Logs.HandleList)
	if d.Auth != nil {
		operatorMux.HandleFunc("GET /auth/bling/start", d.Auth.HandleAuthStart)
	}
	operator := middleware.Chain(operatorMux,
		servermw.RateLimitWithBackend(d.Limiter),
		servermw.OperatorKey(d.OperatorKey),
	)
	mux.Handle("GET /webhooks/logs", operator)

	if d.Auth != nil {
		mux.Handle("GET /auth/bling/start", operator)
		// the callback is reached by browser redirect and is bound by state
		mux.Handle("GET /auth/bling/callback", middleware.Chain(
			http.HandlerFunc(d.Auth.HandleAuthCallback),
			servermw.RateLimitWithBackend(d.Limiter),
		))
	}

	return middleware.Chain(mux,
		middleware.RequestID(middleware.WithTrustedHeader()),
		middleware.Logger(d.Logger),
		middleware.Recovery,
		middleware.Logging,
		middleware.SecurityHeaders,
	)
}

func New(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
