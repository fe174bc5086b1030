package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atdock/atdock/internal/cache"
	tokens "github.com/atdock/atdock/internal/security/token"
)

const statePrefix = "authstate:"

// statePayload is what we park in cache while the user is at the provider.
type statePayload struct {
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
}

// StateStore persists single-use authorization state in cache. Keys are
// hashed so a cache dump never yields replayable state values, and Consume
// uses GetDel so exactly one caller wins even across processes.
type StateStore struct {
	cache cache.Client
	ttl   time.Duration
}

func NewStateStore(c cache.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{cache: c, ttl: ttl}
}

// Save generates a fresh state value, stores its payload and returns the
// value to embed in the redirect URL.
func (s *StateStore) Save(ctx context.Context, handle string) (string, error) {
	state, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	raw, err := json.Marshal(statePayload{Handle: handle, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	key := statePrefix + tokens.SHA256Base64URL(state)
	if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return state, nil
}

// Consume atomically retrieves and deletes the payload for a state value.
// A second call with the same value fails: replay protection lives here.
func (s *StateStore) Consume(ctx context.Context, state string) (*statePayload, error) {
	if state == "" {
		return nil, ErrCallbackInvalidState
	}
	key := statePrefix + tokens.SHA256Base64URL(state)
	raw, err := s.cache.GetDel(ctx, key)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrCallbackInvalidState
		}
		return nil, fmt.Errorf("consume state: %w", err)
	}
	var payload statePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, ErrCallbackInvalidState
	}
	return &payload, nil
}
