package middleware

import (
	"net/http"
	"strings"

	"github.com/garrettladley/adega/internal/xcontext"
	"github.com/garrettladley/adega/internal/xhttp"
	"github.com/google/uuid"
)

const maxInboundRequestIDLen = 128

type RequestIDMiddleware struct {
	IDFunc func(*http.Request) string
}

type RequestIDOption func(*RequestIDMiddleware)

// WithTrustedHeader reuses an inbound X-Request-ID when it looks sane, so
// traces line up with the calling proxy.
func WithTrustedHeader() RequestIDOption {
	return func(m *RequestIDMiddleware) {
		generate := m.IDFunc
		m.IDFunc = func(r *http.Request) string {
			id := strings.TrimSpace(r.Header.Get(xhttp.XRequestID))
			if id == "" || len(id) > maxInboundRequestIDLen {
				return generate(r)
			}
			return id
		}
	}
}

func RequestID(opts ...RequestIDOption) func(http.Handler) http.Handler {
	middleware := &RequestIDMiddleware{
		IDFunc: func(_ *http.Request) string {
			return uuid.New().String()
		},
	}

	for _, opt := range opts {
		opt(middleware)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := middleware.IDFunc(r)
			ctx := xcontext.SetRequestID(r.Context(), id)
			xhttp.SetHeaderRequestID(w, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
