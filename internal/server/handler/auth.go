package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/garrettladley/adega/internal/bling"
	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/xerrors"
	"github.com/garrettladley/adega/internal/xhttp"
	"github.com/garrettladley/adega/internal/xslog"
)

const exchangeTimeout = 10 * time.Second

// Auth connects the service to a Bling account.
type Auth struct {
	config *oauth2.Config
	states storage.StateStore
	tokens *bling.DBTokenSource
}

func NewAuth(config *oauth2.Config, states storage.StateStore, tokens *bling.DBTokenSource) *Auth {
	return &Auth{config: config, states: states, tokens: tokens}
}

// HandleAuthStart handles GET /auth/bling/start requests.
func (h *Auth) HandleAuthStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := bling.GenerateState()
	if err != nil {
		xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithMessage("failed to generate state"), xerrors.WithCause(err)))
		return
	}

	if err := h.states.SetState(ctx, state, bling.StateTTL); err != nil {
		xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithMessage("failed to store state"), xerrors.WithCause(err)))
		return
	}

	http.Redirect(w, r, h.config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

type authResponse struct {
	Authorized bool      `json:"authorized"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// HandleAuthCallback handles GET /auth/bling/callback requests.
func (h *Auth) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xslog.FromContext(ctx)
	query := r.URL.Query()

	state := query.Get("state")
	if state == "" {
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("missing state parameter")))
		return
	}

	err := h.states.ConsumeState(ctx, state)
	if errors.Is(err, storage.ErrNotFound) {
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("invalid or expired state parameter")))
		return
	}
	if err != nil {
		xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithMessage("failed to retrieve state"), xerrors.WithCause(err)))
		return
	}

	if errParam := query.Get("error"); errParam != "" {
		logger.WarnContext(ctx, "authorization denied",
			xslog.Error(errors.New(errParam+": "+query.Get("error_description"))))
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("authorization denied")))
		return
	}

	code := query.Get("code")
	if code == "" {
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("missing authorization code")))
		return
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	token, err := h.tokens.Exchange(exchangeCtx, code)
	if err != nil {
		xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithMessage("failed to exchange authorization code"), xerrors.WithCause(err)))
		return
	}

	logger.InfoContext(ctx, "bling account connected")
	xhttp.WriteOK(w, authResponse{Authorized: true, ExpiresAt: token.Expiry.UTC()})
}
