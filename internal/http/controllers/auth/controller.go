// Package auth exposes the sign-in lifecycle over HTTP.
package auth

import (
	"errors"
	"net/http"

	httpx "github.com/atdock/atdock/internal/http"
	svc "github.com/atdock/atdock/internal/http/services/auth"
	"github.com/atdock/atdock/internal/observability/logger"
)

// Controller handles the login, callback, session and logout endpoints.
type Controller struct {
	service svc.Service
}

func NewController(service svc.Service) *Controller {
	return &Controller{service: service}
}

type loginRequest struct {
	Handle string `json:"handle"`
}

type loginResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// Login handles POST /v1/auth/login. It resolves the handle and returns the
// provider URL the client must redirect the user to.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.Login"))

	var req loginRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	if req.Handle == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "handle requerido")
		return
	}

	redirect, err := c.service.StartLogin(ctx, req.Handle)
	if err != nil {
		log.Warn("login start rejected", logger.Handle(req.Handle), logger.Err(err))
		httpx.WriteError(w, http.StatusBadGateway, httpx.CodeAuthorizationFailed, "no se pudo iniciar el login")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{RedirectURL: redirect})
}

// Callback handles GET /v1/auth/callback: the provider redirects here with
// code and state. On success the session cookie is set and the client gets
// the account it is now signed in as.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.Callback"))

	user, err := c.service.HandleCallback(ctx, r.URL.Query())
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrCallbackInvalidState):
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidState, "state inválido o expirado")
		case errors.Is(err, svc.ErrCallbackFailed):
			httpx.WriteError(w, http.StatusBadGateway, httpx.CodeCallbackFailed, "el provider rechazó el callback")
		default:
			log.Error("callback error", logger.Err(err))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "no se pudo crear la sesión")
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// Me handles GET /v1/auth/me. It revalidates the session against the
// provider and returns the current account.
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.Me"))

	user, err := c.service.ValidateSession(ctx)
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrSessionNotFound):
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeSessionNotFound, "sesión requerida")
		case errors.Is(err, svc.ErrSessionValidationFailed):
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeSessionInvalid, "la sesión ya no es válida")
		default:
			log.Error("session validation error", logger.Err(err))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "error validando la sesión")
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout handles POST /v1/auth/logout. Always clears the cookie; logging out
// twice is fine.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.Logout"))

	if err := c.service.Logout(ctx); err != nil {
		log.Error("logout error", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "no se pudo cerrar la sesión")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
