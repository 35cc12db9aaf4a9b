package httpserver

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// withIPLimit admits a request only while the caller's IP is under its
// window allowance. Limiter nil means no limiting, which tests rely on.
func (s *Server) withIPLimit(next http.HandlerFunc) http.HandlerFunc {
	if s.ipLimiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining := s.ipLimiter.Allow(resolveClientIP(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.ipLimiter.Max()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.ipLimiter.Window().Seconds())))
			s.logger.Warn("request rate limited",
				"event", "http_ip_rate_limited",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"path", r.URL.Path,
			)
			writeMiningError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next(w, r)
	}
}

// allowWalletClicks enforces the per-wallet submission cadence on /api/mine.
// Faster than any human can click means a script.
func (s *Server) allowWalletClicks(w http.ResponseWriter, wallet string) bool {
	if s.walletLimiter == nil || wallet == "" {
		return true
	}
	allowed, _ := s.walletLimiter.Allow(wallet)
	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.walletLimiter.Window().Seconds())))
		writeMiningError(w, http.StatusTooManyRequests, "clicks_too_fast", "point submissions arriving too fast")
		return false
	}
	return true
}

func resolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
