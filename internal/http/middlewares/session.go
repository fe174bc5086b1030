package middlewares

import (
	"net/http"
	"strings"
	"time"

	httpx "github.com/atdock/atdock/internal/http"
	"github.com/atdock/atdock/internal/observability/logger"
	"github.com/atdock/atdock/internal/session"
)

// CookieConfig describe cómo viaja la credencial de sesión en cookies.
type CookieConfig struct {
	Name     string
	Domain   string
	SameSite string
	Secure   bool
}

func ParseSameSite(s string) http.SameSite {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// cookieCarrier implementa session.Carrier sobre el par request/response.
// Leer toma la cookie entrante; escribir setea Set-Cookie en la respuesta.
type cookieCarrier struct {
	cfg CookieConfig
	r   *http.Request
	w   http.ResponseWriter
}

func (c *cookieCarrier) Token() (string, bool) {
	ck, err := c.r.Cookie(c.cfg.Name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

func (c *cookieCarrier) SetToken(token string, expires time.Time) {
	ck := &http.Cookie{
		Name:     c.cfg.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: ParseSameSite(c.cfg.SameSite),
		Expires:  expires.UTC(),
		MaxAge:   int(time.Until(expires).Seconds()),
	}
	if strings.TrimSpace(c.cfg.Domain) != "" {
		ck.Domain = c.cfg.Domain
	}
	http.SetCookie(c.w, ck)
}

func (c *cookieCarrier) ClearToken() {
	ck := &http.Cookie{
		Name:     c.cfg.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: ParseSameSite(c.cfg.SameSite),
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
	if strings.TrimSpace(c.cfg.Domain) != "" {
		ck.Domain = c.cfg.Domain
	}
	http.SetCookie(c.w, ck)
}

// WithSessionCarrier inyecta un session.Carrier basado en cookies en el
// contexto. Va antes que cualquier handler que toque sesiones.
func WithSessionCarrier(cfg CookieConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			carrier := &cookieCarrier{cfg: cfg, r: r, w: w}
			ctx := session.WithCarrier(r.Context(), carrier)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rechaza requests sin credencial verificable y expone el DID
// en el contexto. Solo valida la firma local; la revalidación contra el
// provider es responsabilidad del endpoint de validación explícita.
func RequireSession(mgr *session.Manager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := mgr.Get(r.Context())
			if err != nil {
				logger.From(r.Context()).Debug("request without valid session",
					logger.ClientIP(clientIP(r)))
				httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeSessionNotFound, "sesión requerida")
				return
			}
			ctx := setSessionDID(r.Context(), data.DID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
