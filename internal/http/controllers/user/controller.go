// Package user exposes the account endpoints.
package user

import (
	"errors"
	"net/http"
	"time"

	"github.com/atdock/atdock/internal/domain/repository"
	httpx "github.com/atdock/atdock/internal/http"
	"github.com/atdock/atdock/internal/http/middlewares"
	svc "github.com/atdock/atdock/internal/http/services/user"
	"github.com/atdock/atdock/internal/observability/logger"
	"github.com/atdock/atdock/internal/session"
)

// Controller handles profile reads, profile patches and account deletion.
type Controller struct {
	users    svc.Service
	sessions *session.Manager
}

func NewController(users svc.Service, sessions *session.Manager) *Controller {
	return &Controller{users: users, sessions: sessions}
}

type profileResponse struct {
	DisplayName string  `json:"display_name"`
	Description *string `json:"description,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	BannerURL   *string `json:"banner_url,omitempty"`
}

type userResponse struct {
	ID        string          `json:"id"`
	DID       string          `json:"did"`
	Profile   profileResponse `json:"profile"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toUserResponse(u *repository.User) userResponse {
	return userResponse{
		ID:  u.ID,
		DID: u.DID,
		Profile: profileResponse{
			DisplayName: u.Profile.DisplayName,
			Description: u.Profile.Description,
			AvatarURL:   u.Profile.AvatarURL,
			BannerURL:   u.Profile.BannerURL,
		},
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (c *Controller) currentUser(w http.ResponseWriter, r *http.Request) (*repository.User, bool) {
	did := middlewares.GetSessionDID(r.Context())
	user, err := c.users.GetByDID(r.Context(), did)
	if err != nil {
		if errors.Is(err, svc.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeSessionInvalid, "la cuenta ya no existe")
		} else {
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "error resolviendo la cuenta")
		}
		return nil, false
	}
	return user, true
}

// Get handles GET /v1/users/me.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := c.currentUser(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

type updateRequest struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatar_url"`
	BannerURL   *string `json:"banner_url"`
}

// Update handles PATCH /v1/users/me. Absent fields keep their value.
func (c *Controller) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("user.Update"))

	user, ok := c.currentUser(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	updated, err := c.users.UpdateProfile(ctx, user.ID, repository.UpdateUserInput{
		DisplayName: req.DisplayName,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
		BannerURL:   req.BannerURL,
	})
	if err != nil {
		if errors.Is(err, svc.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound, httpx.CodeUserNotFound, "la cuenta ya no existe")
			return
		}
		log.Error("profile update error", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "no se pudo actualizar el perfil")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

// Delete handles DELETE /v1/users/me. The account, its connection and the
// session cookie all go away.
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("user.Delete"))

	user, ok := c.currentUser(w, r)
	if !ok {
		return
	}

	if err := c.users.Delete(ctx, user.ID); err != nil {
		log.Error("account delete error", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternalError, "no se pudo borrar la cuenta")
		return
	}
	_ = c.sessions.Remove(ctx)
	w.WriteHeader(http.StatusNoContent)
}
