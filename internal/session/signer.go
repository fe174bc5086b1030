package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Audience expected on session credentials.
const Audience = "atdock-session"

// Errors for credential parsing.
var (
	ErrTokenInvalid = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session token expired")
)

// Signer signs and verifies the session credential: an Ed25519 JWT carrying
// the DID as subject. Tamper evidence and expiry live in the token itself,
// so no server-side session table is needed.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	iss  string
}

// NewSigner creates a Signer from a base64 ed25519 seed (32 bytes).
// An empty seed generates an ephemeral key: sessions die with the process,
// acceptable only in dev.
func NewSigner(seedB64, issuer string) (*Signer, error) {
	var priv ed25519.PrivateKey
	if strings.TrimSpace(seedB64) == "" {
		_, p, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		priv = p
	} else {
		seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(seedB64))
		if err != nil {
			return nil, fmt.Errorf("session: decode signing key: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("session: signing key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}
	return &Signer{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
		iss:  issuer,
	}, nil
}

// Sign issues a credential for the DID with the given TTL.
func (s *Signer) Sign(did string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwtv5.RegisteredClaims{
		Issuer:    s.iss,
		Subject:   did,
		Audience:  jwtv5.ClaimStrings{Audience},
		ExpiresAt: jwtv5.NewNumericDate(exp),
		IssuedAt:  jwtv5.NewNumericDate(now),
		NotBefore: jwtv5.NewNumericDate(now),
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	signed, err := tok.SignedString(s.priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature, expiry, audience, and issuer, and returns the
// embedded DID. Validity here is only local: the caller still owes the
// provider-side check (ValidateService).
func (s *Signer) Parse(tokenString string) (string, error) {
	var claims jwtv5.RegisteredClaims
	tk, err := jwtv5.ParseWithClaims(tokenString, &claims, func(*jwtv5.Token) (any, error) {
		return s.pub, nil
	},
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithAudience(Audience),
		jwtv5.WithIssuer(s.iss),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !tk.Valid || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
