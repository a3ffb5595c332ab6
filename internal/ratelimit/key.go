package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/placegw/internal/auth"
)

// Key prefixes.
const (
	userKeyPrefix = "user:"
	ipKeyPrefix   = "ip:"
)

// KeyFromRequest returns the bucket key for r. The caller's user id is used
// when present and trusted, the client address otherwise.
func KeyFromRequest(r *http.Request, trustIdentityHeader bool) string {
	if trustIdentityHeader {
		if userID := strings.TrimSpace(r.Header.Get(auth.HeaderUserID)); userID != "" {
			return userKeyPrefix + userID
		}
	}
	return ipKeyPrefix + ClientIP(r)
}

// ClientIP extracts the client address from the request, preferring
// proxy-supplied headers over the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}
