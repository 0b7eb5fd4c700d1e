package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/garrettladley/adega/internal/xerrors"
	"github.com/garrettladley/adega/internal/xhttp"
	"github.com/garrettladley/adega/internal/xslog"
)

// OperatorKey guards operator routes with a static API key. An empty key
// leaves the routes open.
func OperatorKey(key string) func(http.Handler) http.Handler {
	if key == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	want := hashSecret(key)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := xslog.FromContext(ctx)

			got := xhttp.GetRequestHeaderAPIKey(r)
			if got == "" {
				logger.WarnContext(ctx, "missing API key header", xslog.RequestPath(r))
				xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("missing API key")))
				return
			}

			gotHash := hashSecret(got)
			if subtle.ConstantTimeCompare(gotHash[:], want[:]) != 1 {
				logger.WarnContext(ctx, "invalid API key", xslog.RequestPath(r), xslog.RequestIP(r))
				xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("invalid API key")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// hashSecret makes the comparison length-independent.
func hashSecret(s string) [sha256.Size]byte {
	return sha256.Sum256([]byte(s))
}
