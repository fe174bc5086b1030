// Package router define las rutas HTTP del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	adminctrl "github.com/atdock/atdock/internal/http/controllers/admin"
	authctrl "github.com/atdock/atdock/internal/http/controllers/auth"
	connctrl "github.com/atdock/atdock/internal/http/controllers/connection"
	healthctrl "github.com/atdock/atdock/internal/http/controllers/health"
	userctrl "github.com/atdock/atdock/internal/http/controllers/user"
	mw "github.com/atdock/atdock/internal/http/middlewares"
	"github.com/atdock/atdock/internal/rate"
	"github.com/atdock/atdock/internal/session"
)

// Deps contiene las dependencias para armar el router.
type Deps struct {
	Auth        *authctrl.Controller
	Connections *connctrl.Controller
	Users       *userctrl.Controller
	Admin       *adminctrl.Controller
	Health      *healthctrl.Controller

	Sessions *session.Manager
	Cookies  mw.CookieConfig

	CORSAllowedOrigins []string
	AdminAPIKey        string

	// LoginLimiter acota intentos de login por IP (nil para deshabilitar).
	LoginLimiter rate.Limiter

	// Metrics es el handler de /metrics (nil para deshabilitar).
	Metrics http.Handler
	// WithMetrics instrumenta cada request (nil para deshabilitar).
	WithMetrics func(http.Handler) http.Handler
}

// New arma el router completo con middlewares globales y rutas versionadas.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Middlewares globales. El carrier de sesión va antes que cualquier
	// handler que toque cookies.
	r.Use(
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithCORS(d.CORSAllowedOrigins),
		mw.WithSessionCarrier(d.Cookies),
	)
	if d.WithMetrics != nil {
		r.Use(d.WithMetrics)
	}

	// Probes y métricas, fuera del versionado.
	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if d.LoginLimiter != nil {
				r.With(mw.WithRateLimit(d.LoginLimiter)).Post("/login", d.Auth.Login)
			} else {
				r.Post("/login", d.Auth.Login)
			}
			r.Get("/callback", d.Auth.Callback)
			r.Post("/logout", d.Auth.Logout)
			r.Get("/me", d.Auth.Me)
		})

		// Rutas que requieren credencial verificable.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireSession(d.Sessions))

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", d.Users.Get)
				r.Patch("/", d.Users.Update)
				r.Delete("/", d.Users.Delete)
			})

			r.Route("/connections/github", func(r chi.Router) {
				r.Post("/", d.Connections.Connect)
				r.Get("/", d.Connections.Get)
				r.Delete("/", d.Connections.Disconnect)
				r.Get("/installations", d.Connections.Installations)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireAPIKey(d.AdminAPIKey))
			r.Get("/users/{did}", d.Admin.GetUser)
			r.Delete("/users/{did}", d.Admin.DeleteUser)
			r.Delete("/users/{did}/connection", d.Admin.DisconnectUser)
		})
	})

	return r
}
