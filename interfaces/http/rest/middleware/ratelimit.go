package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"conduit-backend/pkg/auth"
	"conduit-backend/pkg/common"
	pkgerrors "conduit-backend/pkg/errors"
)

// RateLimit refuses requests over the per-client limit with 429. Clients
// are keyed by IP; chi's RealIP middleware must run earlier so RemoteAddr
// reflects the forwarded client address. limit is echoed in the refusal
// and must match what the limiter enforces per minute.
func RateLimit(limiter auth.RateLimiter, limit int, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				// Fail open: an unreachable limiter should not take the
				// endpoint down with it.
				logger.Warn("rate limiter check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				common.RespondAppError(w, pkgerrors.NewRateLimitError(limit, "minute"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
