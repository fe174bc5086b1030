// Package connection manages the secondary GitHub link of an account:
// connecting via the app's OAuth code, listing installations and
// disconnecting. Tokens live encrypted in the repository; rotation happens
// transparently when GitHub rejects a stale access token.
package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/atdock/atdock/internal/domain/repository"
	"github.com/atdock/atdock/internal/githubapp"
	"github.com/atdock/atdock/internal/observability/logger"
	"github.com/atdock/atdock/internal/provider"
)

// Errors
var (
	ErrConnectFailed       = errors.New("failed to connect account")
	ErrNotConnected        = errors.New("account not connected")
	ErrDisconnectFailed    = errors.New("failed to disconnect account")
	ErrInstallationsFailed = errors.New("failed to list installations")
)

// ErrAlreadyConnected refina ErrConnectFailed: errors.Is matchea ambos
// cuando el unique sobre user_id rechaza un segundo Connect.
var ErrAlreadyConnected = fmt.Errorf("%w: account already connected", ErrConnectFailed)

// GitHubProvider is the slice of the GitHub app client this service needs.
type GitHubProvider interface {
	GetAccessToken(ctx context.Context, code string) (*githubapp.TokenPair, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*githubapp.TokenPair, error)
	GetInstallations(ctx context.Context, accessToken string) ([]githubapp.Installation, error)
}

var _ GitHubProvider = (*githubapp.Client)(nil)

// Service operations over a user's GitHub connection.
type Service interface {
	// Connect exchanges the OAuth code and stores the resulting tokens.
	// A user holds at most one connection; a second Connect fails with
	// ErrAlreadyConnected and leaves the existing link untouched.
	Connect(ctx context.Context, userID, code string) (*repository.Connection, error)
	// Get returns the user's connection or ErrNotConnected.
	Get(ctx context.Context, userID string) (*repository.Connection, error)
	// Installations lists the GitHub App installations reachable with the
	// stored token, refreshing it once if GitHub rejects it.
	Installations(ctx context.Context, userID string) ([]githubapp.Installation, error)
	// Disconnect removes the connection. Disconnecting an unconnected user
	// succeeds.
	Disconnect(ctx context.Context, userID string) error
}

// Deps dependencies.
type Deps struct {
	GitHub      GitHubProvider
	Connections repository.ConnectionRepository
}

type service struct {
	github      GitHubProvider
	connections repository.ConnectionRepository
}

func NewService(d Deps) Service {
	return &service{github: d.GitHub, connections: d.Connections}
}

func (s *service) Connect(ctx context.Context, userID, code string) (*repository.Connection, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("connection.connect"), logger.UserID(userID))

	pair, err := s.github.GetAccessToken(ctx, code)
	if err != nil {
		log.Warn("token exchange failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	conn, err := s.connections.Create(ctx, userID, toStoredPair(pair))
	if err != nil {
		if repository.IsConflict(err) {
			// El unique sobre user_id decide la carrera; el perdedor no pisa
			// los tokens del ganador.
			return nil, fmt.Errorf("%w: %w", ErrAlreadyConnected, err)
		}
		log.Error("connection persist failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	log.Info("account connected", logger.Provider(githubapp.ProviderName))
	return conn, nil
}

func (s *service) Get(ctx context.Context, userID string) (*repository.Connection, error) {
	conn, err := s.connections.GetByUserID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	return conn, nil
}

func (s *service) Installations(ctx context.Context, userID string) ([]githubapp.Installation, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("connection.installations"), logger.UserID(userID))

	conn, err := s.connections.GetByUserID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("%w: %w", ErrInstallationsFailed, err)
	}

	installs, err := s.github.GetInstallations(ctx, conn.AccessToken)
	if err == nil {
		return installs, nil
	}
	if !provider.IsAuthenticationFailed(err) || conn.RefreshToken == nil {
		log.Warn("installations fetch failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrInstallationsFailed, err)
	}

	// The access token went stale. Rotate once and retry; a failed refresh
	// leaves the stored connection as-is so a later attempt can still work.
	pair, err := s.github.RefreshAccessToken(ctx, *conn.RefreshToken)
	if err != nil {
		log.Warn("token refresh failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrInstallationsFailed, err)
	}

	rotated := toStoredPair(pair)
	conn.AccessToken = rotated.AccessToken
	conn.RefreshToken = rotated.RefreshToken
	if conn, err = s.connections.Update(ctx, conn); err != nil {
		log.Error("rotated tokens persist failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrInstallationsFailed, err)
	}
	log.Info("tokens rotated", logger.Provider(githubapp.ProviderName))

	installs, err = s.github.GetInstallations(ctx, conn.AccessToken)
	if err != nil {
		log.Warn("installations fetch failed after refresh", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrInstallationsFailed, err)
	}
	return installs, nil
}

func (s *service) Disconnect(ctx context.Context, userID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("connection.disconnect"), logger.UserID(userID))

	if err := s.connections.DeleteByUserID(ctx, userID); err != nil {
		log.Error("connection delete failed", logger.Err(err))
		return fmt.Errorf("%w: %w", ErrDisconnectFailed, err)
	}
	log.Info("account disconnected", logger.Provider(githubapp.ProviderName))
	return nil
}

func toStoredPair(p *githubapp.TokenPair) repository.TokenPair {
	out := repository.TokenPair{AccessToken: p.AccessToken}
	if p.RefreshToken != "" {
		rt := p.RefreshToken
		out.RefreshToken = &rt
	}
	return out
}
