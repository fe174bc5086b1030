package repository

import (
	"context"
	"time"
)

// TokenPair es el par de tokens delegados que entrega el provider
// secundario (GitHub App) al completar el intercambio de código.
type TokenPair struct {
	AccessToken  string
	RefreshToken *string
}

// Connection vincula a un usuario con los tokens de acceso delegado
// del provider secundario. A lo sumo una Connection por usuario
// (constraint UNIQUE en user_id).
type Connection struct {
	ID           string
	UserID       string
	AccessToken  string
	RefreshToken *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConnectionRepository define operaciones sobre conexiones.
type ConnectionRepository interface {
	// Create crea la conexión de un usuario.
	// Retorna ErrConflict si el usuario ya tiene una conexión.
	Create(ctx context.Context, userID string, tokens TokenPair) (*Connection, error)

	// GetByUserID busca la conexión de un usuario.
	// Retorna ErrNotFound si no existe.
	GetByUserID(ctx context.Context, userID string) (*Connection, error)

	// Update persiste un par de tokens rotado (post-refresh).
	// Retorna ErrNotFound si la conexión ya no existe.
	Update(ctx context.Context, conn *Connection) (*Connection, error)

	// DeleteByUserID elimina la conexión de un usuario.
	// Es idempotente: borrar una conexión inexistente NO es error.
	// Decisión deliberada: disconnect se invoca especulativamente
	// (ej: durante el borrado de cuenta) y el caller no debe
	// pre-chequear existencia.
	DeleteByUserID(ctx context.Context, userID string) error
}
