// Package session issues, reads, and removes the opaque session credential.
// The credential is a signed, tamper-evident token carrying the DID and an
// expiry; transport is abstracted behind a Carrier injected into the request
// context, so the manager never touches cookies or headers directly.
package session

import (
	"context"
	"errors"
	"time"
)

// Data is the minimal payload carried by the session credential.
// A readable credential does NOT imply current validity; callers that need
// proof of liveness must go through the validate use case.
type Data struct {
	DID string
}

// ErrNotFound indica que no hay credencial legible en el contexto
// (ausente, inválida o expirada).
var ErrNotFound = errors.New("session not found")

// ErrNoCarrier indica que el contexto no tiene transporte de sesión;
// es un error de wiring, no de autenticación.
var ErrNoCarrier = errors.New("session carrier missing from context")

// Carrier abstrae el transporte del token (cookie HTTP, header, test fake).
type Carrier interface {
	// Token retorna el token crudo si está presente.
	Token() (string, bool)
	// SetToken escribe el token con su expiración.
	SetToken(token string, expiresAt time.Time)
	// ClearToken elimina el token del transporte.
	ClearToken()
}

type carrierKey struct{}

// WithCarrier inyecta el carrier en el contexto (lo hace el middleware HTTP).
func WithCarrier(ctx context.Context, c Carrier) context.Context {
	return context.WithValue(ctx, carrierKey{}, c)
}

func carrierFrom(ctx context.Context) (Carrier, bool) {
	c, ok := ctx.Value(carrierKey{}).(Carrier)
	return c, ok
}

// Manager implementa set/get/remove sobre el carrier del contexto.
type Manager struct {
	signer *Signer
	ttl    time.Duration
}

// NewManager crea un Manager.
func NewManager(signer *Signer, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{signer: signer, ttl: ttl}
}

// Set firma una credencial para los datos y la escribe en el carrier.
func (m *Manager) Set(ctx context.Context, data Data) error {
	c, ok := carrierFrom(ctx)
	if !ok {
		return ErrNoCarrier
	}
	token, exp, err := m.signer.Sign(data.DID, m.ttl)
	if err != nil {
		return err
	}
	c.SetToken(token, exp)
	return nil
}

// Get lee y verifica la credencial del carrier.
// Retorna ErrNotFound para credencial ausente, inválida o expirada:
// el caller no distingue esos casos (todos fuerzan re-login).
func (m *Manager) Get(ctx context.Context) (Data, error) {
	c, ok := carrierFrom(ctx)
	if !ok {
		return Data{}, ErrNotFound
	}
	raw, ok := c.Token()
	if !ok || raw == "" {
		return Data{}, ErrNotFound
	}
	did, err := m.signer.Parse(raw)
	if err != nil {
		return Data{}, ErrNotFound
	}
	return Data{DID: did}, nil
}

// Remove elimina la credencial del carrier. Idempotente.
func (m *Manager) Remove(ctx context.Context) error {
	c, ok := carrierFrom(ctx)
	if !ok {
		return ErrNoCarrier
	}
	c.ClearToken()
	return nil
}
