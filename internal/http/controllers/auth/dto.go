package auth

import (
	"time"

	"github.com/atdock/atdock/internal/domain/repository"
)

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
