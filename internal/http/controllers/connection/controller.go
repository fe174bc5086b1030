// Package connection exposes the GitHub connection endpoints.
package connection

import (
	"errors"
	"net/http"
	"time"

	"github.com/atdock/atdock/internal/domain/repository"
	"github.com/atdock/atdock/internal/githubapp"
	httpx "github.com/atdock/atdock/internal/http"
	"github.com/atdock/atdock/internal/http/middlewares"
	svc "github.com/atdock/atdock/internal/http/services/connection"
	usersvc "github.com/atdock/atdock/internal/http/services/user"
	"github.com/atdock/atdock/internal/observability/logger"
)

// Controller handles connect, disconnect, get and installations.
type Controller struct {
	connections svc.Service
	users       usersvc.Service
}

func NewController(connections svc.Service, users usersvc.Service) *Controller {
	return &Controller{connections: connections, users: users}
}

// currentUser resolves the session DID placed by RequireSession to an account.
func (c *Controller) currentUser(w http.ResponseWriter, r *http.Request) (*repository.User, bool) {
	did := middlewares.GetSessionDID(r.Context())
	user, err := c.users.GetByDID(r.Context(), did)
	if err != nil {
		if errors.Is(err, usersvc.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeSessionInvalid, "la cuenta ya no existe")
		} else {
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "error resolviendo la cuenta")
		}
		return nil, false
	}
	return user, true
}

type connectRequest struct {
	Code string `json:"code"`
}

type connectionResponse struct {
	Provider  string    `json:"provider"`
	Connected bool      `json:"connected"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Connect handles POST /v1/connections/github.
func (c *Controller) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("connection.Connect"))

	user, ok := c.currentUser(w, r)
	if !ok {
		return
	}

	var req connectRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "code requerido")
		return
	}

	conn, err := c.connections.Connect(ctx, user.ID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrAlreadyConnected):
			httpx.WriteError(w, http.StatusConflict, httpx.CodeAlreadyConnected, "la cuenta ya está conectada")
		case errors.Is(err, svc.ErrConnectFailed):
			log.Warn("connect rejected", logger.UserID(user.ID), logger.Err(err))
			httpx.WriteError(w, http.StatusBadGateway, httpx.CodeConnectionFailed, "GitHub rechazó el código")
		default:
			log.Error("connect error", logger.Err(err))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "no se pudo conectar la cuenta")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, connectionResponse{
		Provider:  githubapp.ProviderName,
		Connected: true,
		CreatedAt: conn.CreatedAt,
		UpdatedAt: conn.UpdatedAt,
	})
}

// Get handles GET /v1/connections/github.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := c.currentUser(w, r)
	if !ok {
		return
	}

	conn, err := c.connections.Get(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, svc.ErrNotConnected) {
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotConnected, "la cuenta no está conectada")
			return
		}
		logger.From(r.Context()).Error("connection get error", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "error consultando la conexión")
		return
	}

	// Los tokens nunca salen por la API.
	httpx.WriteJSON(w, http.StatusOK, connectionResponse{
		Provider:  githubapp.ProviderName,
		Connected: true,
		CreatedAt: conn.CreatedAt,
		UpdatedAt: conn.UpdatedAt,
	})
}

// Installations handles GET /v1/connections/github/installations.
func (c *Controller) Installations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("connection.Installations"))

	user, ok := c.currentUser(w, r)
	if !ok {
		return
	}

	installs, err := c.connections.Installations(ctx, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrNotConnected):
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotConnected, "la cuenta no está conectada")
		case errors.Is(err, svc.ErrInstallationsFailed):
			log.Warn("installations fetch failed", logger.UserID(user.ID), logger.Err(err))
			httpx.WriteError(w, http.StatusBadGateway, httpx.CodeUpstreamUnavailable, "GitHub no respondió")
		default:
			log.Error("installations error", logger.Err(err))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "error listando instalaciones")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"installations": installs})
}

// Disconnect handles DELETE /v1/connections/github.
func (c *Controller) Disconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("connection.Disconnect"))

	user, ok := c.currentUser(w, r)
	if !ok {
		return
	}

	if err := c.connections.Disconnect(ctx, user.ID); err != nil {
		log.Error("disconnect error", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "no se pudo desconectar la cuenta")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
