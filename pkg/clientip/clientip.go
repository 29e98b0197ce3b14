package clientip

import (
	"net"
	"net/http"
	"strings"
)

// TrustProxyHeaders makes RealClientIP honour X-Forwarded-For and X-Real-IP.
// Only enable it behind a proxy that overwrites those headers.
var TrustProxyHeaders = false

// RealClientIP returns the client IP used for rate limiting, logging and
// challenge verification. Without TrustProxyHeaders it is r.RemoteAddr.
func RealClientIP(r *http.Request) string {
	if TrustProxyHeaders {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}
