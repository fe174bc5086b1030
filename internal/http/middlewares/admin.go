package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	httpx "github.com/atdock/atdock/internal/http"
	"github.com/atdock/atdock/internal/observability/logger"
)

// RequireAPIKey protege las rutas administrativas con una API key estática.
// Si no hay key configurada, las rutas admin quedan cerradas (fail closed).
func RequireAPIKey(apiKey string) Middleware {
	key := []byte(strings.TrimSpace(apiKey))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "admin API deshabilitada")
				return
			}
			got := []byte(strings.TrimSpace(r.Header.Get("X-API-Key")))
			if len(got) == 0 || subtle.ConstantTimeCompare(key, got) != 1 {
				logger.From(r.Context()).Warn("admin API key rejected",
					logger.ClientIP(clientIP(r)))
				httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "API key inválida")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
