package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/atdock/atdock/internal/atproto"
	"github.com/atdock/atdock/internal/domain/repository"
	"github.com/atdock/atdock/internal/observability/logger"
	"github.com/atdock/atdock/internal/session"
)

// Service drives the sign-in lifecycle: redirect out, callback in, session
// validation and logout.
type Service interface {
	// StartLogin resolves the handle and returns the provider redirect URL.
	StartLogin(ctx context.Context, handle string) (string, error)
	// HandleCallback consumes the state, exchanges the code, finds or creates
	// the account and establishes the session.
	HandleCallback(ctx context.Context, params url.Values) (*repository.User, error)
	// ValidateSession checks the presented credential and revalidates the DID
	// against the provider. On provider rejection the session is cleared.
	ValidateSession(ctx context.Context) (*repository.User, error)
	// Logout clears the session. Absent sessions are not an error.
	Logout(ctx context.Context) error
}

// Deps dependencies.
type Deps struct {
	Provider IdentityProvider
	Users    repository.UserRepository
	Sessions *session.Manager
	States   *StateStore
}

type service struct {
	provider IdentityProvider
	users    repository.UserRepository
	sessions *session.Manager
	states   *StateStore

	// sf evita crear la misma cuenta en paralelo dentro del proceso; entre
	// procesos decide el unique sobre did.
	sf singleflight.Group
}

func NewService(d Deps) Service {
	return &service{
		provider: d.Provider,
		users:    d.Users,
		sessions: d.Sessions,
		states:   d.States,
	}
}

func (s *service) StartLogin(ctx context.Context, handle string) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("auth.start"))

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", fmt.Errorf("%w: empty handle", ErrAuthorizationFailed)
	}

	state, err := s.states.Save(ctx, handle)
	if err != nil {
		log.Error("state save failed", logger.Err(err))
		return "", fmt.Errorf("%w: %w", ErrAuthorizationFailed, err)
	}

	redirect, err := s.provider.Authorize(ctx, handle, state)
	if err != nil {
		log.Warn("provider authorize failed", logger.Handle(handle), logger.Err(err))
		return "", fmt.Errorf("%w: %w", ErrAuthorizationFailed, err)
	}

	log.Info("login started", logger.Handle(handle))
	return redirect, nil
}

func (s *service) HandleCallback(ctx context.Context, params url.Values) (*repository.User, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("auth.callback"))

	// State first. An unknown or replayed state never reaches the provider.
	if _, err := s.states.Consume(ctx, params.Get("state")); err != nil {
		if errors.Is(err, ErrCallbackInvalidState) {
			log.Warn("state rejected")
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCallbackFailed, err)
	}

	did, err := s.provider.Callback(ctx, params)
	if err != nil {
		log.Warn("code exchange failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrCallbackFailed, err)
	}

	user, err := s.findOrCreate(ctx, did)
	if err != nil {
		log.Error("account resolution failed", logger.DID(did), logger.Err(err))
		// Un fallo del provider ya viene clasificado como callback fallido;
		// lo demás es un problema nuestro creando la sesión.
		if errors.Is(err, ErrCallbackFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	if err := s.sessions.Set(ctx, session.Data{DID: user.DID}); err != nil {
		log.Error("session issue failed", logger.DID(did), logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	log.Info("login completed", logger.DID(user.DID), logger.UserID(user.ID))
	return user, nil
}

// findOrCreate resolves the DID to a local account, creating one on first
// login. The race between two first logins is settled by the unique DID
// constraint: the loser gets ErrConflict and re-fetches the winner's row.
func (s *service) findOrCreate(ctx context.Context, did string) (*repository.User, error) {
	v, err, _ := s.sf.Do(did, func() (any, error) {
		return s.resolveAccount(ctx, did)
	})
	if err != nil {
		return nil, err
	}
	return v.(*repository.User), nil
}

func (s *service) resolveAccount(ctx context.Context, did string) (*repository.User, error) {
	user, err := s.users.GetByDID(ctx, did)
	if err == nil {
		return user, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	// Sin perfil no hay cuenta: un provider que no responde aborta el
	// callback en vez de degradar a una cuenta a medio armar.
	p, err := s.provider.GetProfile(ctx, did)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCallbackFailed, err)
	}

	user, err = s.users.Create(ctx, did, profileFrom(p))
	if err != nil {
		if repository.IsConflict(err) {
			return s.users.GetByDID(ctx, did)
		}
		return nil, err
	}
	return user, nil
}

func (s *service) ValidateSession(ctx context.Context) (*repository.User, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("auth.validate"))

	data, err := s.sessions.Get(ctx)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	// The credential is fine locally; the provider has the last word on
	// whether the DID is still live.
	if err := s.provider.ValidateSession(ctx, data.DID); err != nil {
		log.Warn("provider rejected session", logger.DID(data.DID), logger.Err(err))
		_ = s.sessions.Remove(ctx)
		return nil, fmt.Errorf("%w: %w", ErrSessionValidationFailed, err)
	}

	user, err := s.users.GetByDID(ctx, data.DID)
	if err != nil {
		log.Error("session user missing", logger.DID(data.DID), logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrSessionValidationFailed, err)
	}
	return user, nil
}

func (s *service) Logout(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("auth.logout"))

	if err := s.sessions.Remove(ctx); err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrNoCarrier) {
			return nil
		}
		log.Error("session removal failed", logger.Err(err))
		return fmt.Errorf("%w: %w", ErrSessionRevocationFailed, err)
	}
	log.Info("logout completed")
	return nil
}

func profileFrom(p *atproto.Profile) repository.Profile {
	out := repository.Profile{DisplayName: p.DisplayName}
	if out.DisplayName == "" {
		out.DisplayName = p.Handle
	}
	if p.Description != "" {
		out.Description = &p.Description
	}
	if p.Avatar != "" {
		out.AvatarURL = &p.Avatar
	}
	if p.Banner != "" {
		out.BannerURL = &p.Banner
	}
	return out
}
