package middleware

import (
	"net"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// DeviceTypeHeader carries an explicit device class hint from clients.
const DeviceTypeHeader = "X-Device-Type"

// RequestMetadata copies the user agent, device hint and client address into
// the request context so that session issuance can record them.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := goSession.WithUserAgent(r.Context(), r.UserAgent())
		ctx = goSession.WithDeviceHint(ctx, r.Header.Get(DeviceTypeHeader))
		ctx = goSession.WithClientIP(ctx, ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr. Proxy headers are trusted as-is.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
