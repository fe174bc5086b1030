package auth

import (
	"context"
	"net/url"

	"github.com/atdock/atdock/internal/atproto"
)

// IdentityProvider is the upstream identity surface the auth flows need.
// *atproto.Client satisfies it; tests inject fakes.
type IdentityProvider interface {
	// Authorize builds the provider redirect URL for a handle, threading the
	// anti-forgery state through the round trip.
	Authorize(ctx context.Context, handle, state string) (string, error)
	// Callback exchanges the provider callback params for the account DID.
	Callback(ctx context.Context, params url.Values) (string, error)
	// GetProfile fetches the provider-side profile snapshot for a DID.
	GetProfile(ctx context.Context, did string) (*atproto.Profile, error)
	// ValidateSession checks the DID is still live on the provider side.
	ValidateSession(ctx context.Context, did string) error
}

var _ IdentityProvider = (*atproto.Client)(nil)
