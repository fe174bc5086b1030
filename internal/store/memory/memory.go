// Package memory implementa los repositorios en memoria.
// Para desarrollo y tests; replica la semántica de constraints del driver
// postgres (unique did, unique user_id) para que los tests de servicios
// ejerciten los mismos caminos de error.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atdock/atdock/internal/domain/repository"
)

// UserRepository es la implementación en memoria de repository.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	byID  map[string]*repository.User
	byDID map[string]string // did -> id
}

// NewUserRepository crea el repositorio de usuarios.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:  make(map[string]*repository.User),
		byDID: make(map[string]string),
	}
}

func (r *UserRepository) Create(ctx context.Context, did string, profile repository.Profile) (*repository.User, error) {
	if did == "" || profile.DisplayName == "" {
		return nil, repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Equivalente al unique constraint sobre did.
	if _, exists := r.byDID[did]; exists {
		return nil, repository.ErrConflict
	}

	now := time.Now().UTC()
	u := &repository.User{
		ID:        uuid.NewString(),
		DID:       did,
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.byID[u.ID] = u
	r.byDID[did] = u.ID
	return cloneUser(u), nil
}

func (r *UserRepository) GetByDID(ctx context.Context, did string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byDID[did]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) Update(ctx context.Context, id string, input repository.UpdateUserInput) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if input.DisplayName != nil {
		if *input.DisplayName == "" {
			return nil, repository.ErrInvalidInput
		}
		u.Profile.DisplayName = *input.DisplayName
	}
	if input.Description != nil {
		u.Profile.Description = input.Description
	}
	if input.AvatarURL != nil {
		u.Profile.AvatarURL = input.AvatarURL
	}
	if input.BannerURL != nil {
		u.Profile.BannerURL = input.BannerURL
	}
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.byDID, u.DID)
	delete(r.byID, id)
	return nil
}

func cloneUser(u *repository.User) *repository.User {
	cp := *u
	cp.Profile.Description = clonePtr(u.Profile.Description)
	cp.Profile.AvatarURL = clonePtr(u.Profile.AvatarURL)
	cp.Profile.BannerURL = clonePtr(u.Profile.BannerURL)
	return &cp
}

// ConnectionRepository es la implementación en memoria de
// repository.ConnectionRepository.
type ConnectionRepository struct {
	mu       sync.RWMutex
	byUserID map[string]*repository.Connection
}

// NewConnectionRepository crea el repositorio de conexiones.
func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{
		byUserID: make(map[string]*repository.Connection),
	}
}

func (r *ConnectionRepository) Create(ctx context.Context, userID string, tokens repository.TokenPair) (*repository.Connection, error) {
	if userID == "" || tokens.AccessToken == "" {
		return nil, repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Equivalente al unique constraint sobre user_id.
	if _, exists := r.byUserID[userID]; exists {
		return nil, repository.ErrConflict
	}

	now := time.Now().UTC()
	c := &repository.Connection{
		ID:           uuid.NewString(),
		UserID:       userID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: clonePtr(tokens.RefreshToken),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byUserID[userID] = c
	return cloneConnection(c), nil
}

func (r *ConnectionRepository) GetByUserID(ctx context.Context, userID string) (*repository.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byUserID[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneConnection(c), nil
}

func (r *ConnectionRepository) Update(ctx context.Context, conn *repository.Connection) (*repository.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byUserID[conn.UserID]
	if !ok || cur.ID != conn.ID {
		return nil, repository.ErrNotFound
	}
	cur.AccessToken = conn.AccessToken
	cur.RefreshToken = clonePtr(conn.RefreshToken)
	cur.UpdatedAt = time.Now().UTC()
	return cloneConnection(cur), nil
}

func (r *ConnectionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Idempotente: borrar lo inexistente es éxito.
	delete(r.byUserID, userID)
	return nil
}

func cloneConnection(c *repository.Connection) *repository.Connection {
	cp := *c
	cp.RefreshToken = clonePtr(c.RefreshToken)
	return &cp
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
