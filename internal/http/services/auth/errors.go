package auth

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrAuthorizationFailed     = errors.New("authorization failed")
	ErrCallbackFailed          = errors.New("callback failed")
	ErrSessionCreationFailed   = errors.New("failed to create session")
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionValidationFailed = errors.New("session validation failed")
	ErrSessionRevocationFailed = errors.New("failed to revoke session")
)

// ErrCallbackInvalidState refina ErrCallbackFailed: errors.Is matchea ambos
// para un state desconocido, expirado o repetido.
var ErrCallbackInvalidState = fmt.Errorf("%w: invalid or expired state", ErrCallbackFailed)
