package xhttp

import (
	"net"
	"net/http"
	"strings"
)

// GetRequestIP resolves the caller address. The first X-Forwarded-For entry wins,
// then X-Real-IP, then the connection's remote address.
func GetRequestIP(r *http.Request) string {
	if xff := r.Header.Get(XForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := stripPort(strings.TrimSpace(first)); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get(XRealIP)); realIP != "" {
		return stripPort(realIP)
	}
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	if ip, _, err := net.SplitHostPort(addr); err == nil {
		return ip
	}
	return addr
}
