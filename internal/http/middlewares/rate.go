package middlewares

import (
	"net/http"
	"strconv"

	httpx "github.com/atdock/atdock/internal/http"
	"github.com/atdock/atdock/internal/observability/logger"
	"github.com/atdock/atdock/internal/rate"
)

// WithRateLimit limita requests por IP de cliente. Pensado para endpoints
// que disparan trabajo caro aguas arriba (login). Si el limiter falla, el
// request pasa: perder disponibilidad por un redis caído es peor que perder
// la cuota un rato.
func WithRateLimit(limiter rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				retry := int(res.RetryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httpx.WriteError(w, http.StatusTooManyRequests, httpx.CodeRateLimited, "demasiados intentos, probá más tarde")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
