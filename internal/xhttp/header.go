package xhttp

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	XForwardedFor    = "X-Forwarded-For"
	XRealIP          = "X-Real-Ip"
	XContentTypeOpts = "X-Content-Type-Options"
	XFrameOpts       = "X-Frame-Options"
	XXSSProtection   = "X-Xss-Protection"
	ReferrerPolicy   = "Referrer-Policy"
	XRateLimitReason = "X-Ratelimit-Reason"
	XAPIKey          = "X-Api-Key"
	XRequestID       = "X-Request-Id"
)

const (
	XBlingSignature256 = "X-Bling-Signature-256"
	XRetryAttempt      = "X-Retry-Attempt"
)

const (
	ContentType   = "Content-Type"
	Authorization = "Authorization"
	Accept        = "Accept"
	UserAgent     = "User-Agent"
)

const applicationJSON = "application/json"

func SetHeaderRequestID(w http.ResponseWriter, requestID string) {
	w.Header().Set(XRequestID, requestID)
}

func SetHeaderContentTypeApplicationJSON(w http.ResponseWriter) {
	w.Header().Set(ContentType, applicationJSON)
}

func SetRequestHeaderContentTypeApplicationJSON(r *http.Request) {
	r.Header.Set(ContentType, applicationJSON)
}

func SetHeaderRetryAfter(w http.ResponseWriter, retryAfter time.Duration) {
	const retryAfterHeader = "Retry-After"
	retryAfterSeconds := int(retryAfter.Seconds())
	w.Header().Set(retryAfterHeader, fmt.Sprintf("%d", retryAfterSeconds))
}

func GetRequestHeaderAPIKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(XAPIKey))
}

// GetRequestHeaderSignature returns the Bling signature header. Header lookup is
// canonicalized so any case variant of the name matches.
func GetRequestHeaderSignature(r *http.Request) string {
	return r.Header.Get(XBlingSignature256)
}

// GetRequestHeaderRetryAttempt returns the sender-declared retry counter, or 0
// when the header is absent, unparseable or negative.
func GetRequestHeaderRetryAttempt(r *http.Request) int {
	raw := strings.TrimSpace(r.Header.Get(XRetryAttempt))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
