package repository

import (
	"context"
	"time"
)

// Profile contiene los datos públicos de perfil de un usuario.
// DisplayName es el único campo obligatorio; el resto puede ser nil.
type Profile struct {
	DisplayName string
	Description *string
	AvatarURL   *string
	BannerURL   *string
}

// User representa un usuario del sistema.
// El DID es la clave de federación: único, inmutable, emitido por el
// identity provider externo.
type User struct {
	ID        string
	DID       string
	Profile   Profile
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateUserInput contiene los campos actualizables del perfil.
// Solo los punteros no-nil se aplican.
type UpdateUserInput struct {
	DisplayName *string
	Description *string
	AvatarURL   *string
	BannerURL   *string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// Create crea un usuario nuevo para un DID.
	// Retorna ErrConflict si ya existe un usuario con ese DID.
	Create(ctx context.Context, did string, profile Profile) (*User, error)

	// GetByDID busca un usuario por DID.
	// Retorna ErrNotFound si no existe.
	GetByDID(ctx context.Context, did string) (*User, error)

	// GetByID busca un usuario por ID interno.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// Update aplica un patch de perfil y retorna el usuario actualizado.
	// Retorna ErrNotFound si no existe.
	Update(ctx context.Context, id string, input UpdateUserInput) (*User, error)

	// Delete elimina un usuario por ID.
	// Retorna ErrNotFound si no existe; la política de idempotencia
	// se decide en la capa de servicio, no acá.
	Delete(ctx context.Context, id string) error
}
