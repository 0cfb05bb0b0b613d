package middleware

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"blogify/pkg/common"
	pkgerrors "blogify/pkg/errors"
	"blogify/pkg/ratelimit"
)

// RateLimit rejects callers over their budget with 429. Keys are client
// addresses. Limiter failures are logged and the request proceeds.
func RateLimit(limiter ratelimit.Limiter, window string, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := common.GetClientIP(r.Context())
			if !ok {
				key = clientIP(r)
			}

			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter unavailable", zap.String("key", key), zap.Error(err))
				decision.Allowed = true
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.ResetAt.IsZero() {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
			}

			if !decision.Allowed {
				errs.Handle(w, r, pkgerrors.NewRateLimitError(decision.Limit, window))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
