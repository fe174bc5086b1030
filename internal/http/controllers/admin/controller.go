// Package admin exposes operator endpoints, protected by API key.
package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atdock/atdock/internal/domain/repository"
	httpx "github.com/atdock/atdock/internal/http"
	connsvc "github.com/atdock/atdock/internal/http/services/connection"
	svc "github.com/atdock/atdock/internal/http/services/user"
	"github.com/atdock/atdock/internal/observability/logger"
)

// Controller handles user lookup, forced deletion and forced disconnection
// for operators.
type Controller struct {
	users       svc.Service
	connections connsvc.Service
}

func NewController(users svc.Service, connections connsvc.Service) *Controller {
	return &Controller{users: users, connections: connections}
}

type userResponse struct {
	ID          string    `json:"id"`
	DID         string    `json:"did"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toUserResponse(u *repository.User) userResponse {
	return userResponse{
		ID:          u.ID,
		DID:         u.DID,
		DisplayName: u.Profile.DisplayName,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// GetUser handles GET /v1/admin/users/{did}.
func (c *Controller) GetUser(w http.ResponseWriter, r *http.Request) {
	did := chi.URLParam(r, "did")
	user, err := c.users.GetByDID(r.Context(), did)
	if err != nil {
		if errors.Is(err, svc.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeUserNotFound, "usuario no encontrado")
			return
		}
		logger.From(r.Context()).Error("admin user lookup error", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "error buscando el usuario")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// DeleteUser handles DELETE /v1/admin/users/{did}. Deleting an account that
// is already gone responds 204 all the same.
func (c *Controller) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.DeleteUser"))

	did := chi.URLParam(r, "did")
	user, err := c.users.GetByDID(ctx, did)
	if err != nil {
		if errors.Is(err, svc.ErrUserNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		log.Error("admin user lookup error", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "error buscando el usuario")
		return
	}

	if err := c.users.Delete(ctx, user.ID); err != nil {
		log.Error("admin user delete error", logger.DID(did), logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "no se pudo borrar el usuario")
		return
	}
	log.Info("user deleted by operator", logger.DID(did))
	w.WriteHeader(http.StatusNoContent)
}

// DisconnectUser handles DELETE /v1/admin/users/{did}/connection. Revokes the
// stored provider link without touching the account. Idempotent.
func (c *Controller) DisconnectUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.DisconnectUser"))

	did := chi.URLParam(r, "did")
	user, err := c.users.GetByDID(ctx, did)
	if err != nil {
		if errors.Is(err, svc.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeUserNotFound, "usuario no encontrado")
			return
		}
		log.Error("admin user lookup error", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "error buscando el usuario")
		return
	}

	if err := c.connections.Disconnect(ctx, user.ID); err != nil {
		log.Error("admin disconnect error", logger.DID(did), logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "no se pudo desconectar la cuenta")
		return
	}
	log.Info("connection revoked by operator", logger.DID(did))
	w.WriteHeader(http.StatusNoContent)
}
