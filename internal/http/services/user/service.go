// Package user exposes account-level operations: profile reads, profile
// patches and account deletion.
package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/atdock/atdock/internal/domain/repository"
	"github.com/atdock/atdock/internal/observability/logger"
)

// Errors
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUpdateFailed = errors.New("failed to update profile")
	ErrDeleteFailed = errors.New("failed to delete account")
)

// Service account operations.
type Service interface {
	// Get returns a user by internal ID.
	Get(ctx context.Context, id string) (*repository.User, error)
	// GetByDID returns a user by DID.
	GetByDID(ctx context.Context, did string) (*repository.User, error)
	// UpdateProfile applies a partial profile patch; nil fields keep their
	// stored value.
	UpdateProfile(ctx context.Context, id string, input repository.UpdateUserInput) (*repository.User, error)
	// Delete removes the account and its connection. Deleting an account
	// that is already gone succeeds.
	Delete(ctx context.Context, id string) error
}

// Deps dependencies.
type Deps struct {
	Users       repository.UserRepository
	Connections repository.ConnectionRepository
}

type service struct {
	users       repository.UserRepository
	connections repository.ConnectionRepository
}

func NewService(d Deps) Service {
	return &service{users: d.Users, connections: d.Connections}
}

func (s *service) Get(ctx context.Context, id string) (*repository.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *service) GetByDID(ctx context.Context, did string) (*repository.User, error) {
	user, err := s.users.GetByDID(ctx, did)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *service) UpdateProfile(ctx context.Context, id string, input repository.UpdateUserInput) (*repository.User, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("user.update"), logger.UserID(id))

	user, err := s.users.Update(ctx, id, input)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		log.Error("profile update failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	log.Info("profile updated")
	return user, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("user.delete"), logger.UserID(id))

	// Orden: primero la conexión, después la cuenta. Con postgres el
	// CASCADE ya la cubre; el borrado explícito mantiene la misma
	// semántica sobre el backend memory.
	if err := s.connections.DeleteByUserID(ctx, id); err != nil {
		log.Error("connection cleanup failed", logger.Err(err))
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			// Ya no existe: mismo estado final, mismo resultado.
			return nil
		}
		log.Error("account delete failed", logger.Err(err))
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	log.Info("account deleted")
	return nil
}
