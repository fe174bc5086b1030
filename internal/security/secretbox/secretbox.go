// Package secretbox cifra secretos chicos (tokens delegados) con AES-256-GCM.
// El formato en reposo es base64(nonce)|base64(ciphertext).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSizeGCM      = 12  // AES-GCM nonce recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var ErrInvalidCiphertext = errors.New("secretbox: invalid ciphertext")

// Box cifra y descifra con una clave maestra fija.
// Se inyecta por constructor; no hay estado global.
type Box struct {
	key []byte
}

// New crea un Box a partir de la clave maestra en base64.
// La clave debe decodificar a exactamente 32 bytes
// (generar con: openssl rand -base64 32).
func New(masterKeyB64 string) (*Box, error) {
	k, err := base64.StdEncoding.DecodeString(strings.TrimSpace(masterKeyB64))
	if err != nil {
		return nil, fmt.Errorf("secretbox: decode master key: %w", err)
	}
	if len(k) != requiredKeyLength {
		return nil, fmt.Errorf("secretbox: master key must be %d bytes, got %d", requiredKeyLength, len(k))
	}
	key := make([]byte, len(k))
	copy(key, k)
	return &Box{key: key}, nil
}

// NewRandom crea un Box con una clave efímera. Solo para dev/tests:
// lo cifrado no sobrevive al proceso.
func NewRandom() (*Box, error) {
	k := make([]byte, requiredKeyLength)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, err
	}
	return &Box{key: k}, nil
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext).
func (b *Box) Encrypt(plainText string) (string, error) {
	aesgcm, err := b.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secretbox: nonce random: %w", err)
	}

	ct := aesgcm.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt revierte Encrypt. Retorna ErrInvalidCiphertext si el formato es
// inválido o la autenticación GCM falla (clave equivocada, datos alterados).
func (b *Box) Decrypt(boxed string) (string, error) {
	parts := strings.SplitN(boxed, sep, 2)
	if len(parts) != 2 {
		return "", ErrInvalidCiphertext
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSizeGCM {
		return "", ErrInvalidCiphertext
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	aesgcm, err := b.aead()
	if err != nil {
		return "", err
	}
	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(pt), nil
}

func (b *Box) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: aes.NewCipher: %w", err)
	}
	return cipher.NewGCM(block)
}
