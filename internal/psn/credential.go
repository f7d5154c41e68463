// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package psn

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/chacha20poly1305"
)

// AccessCredential is a bearer token for the upstream service, with the
// expiry extracted from the token itself when it is JWT-shaped.
type AccessCredential struct {
	Token     string
	ExpiresAt time.Time // zero when the token carries no readable expiry
}

// NewAccessCredential wraps a bearer token. If the token parses as a
// JWT its exp claim is recorded so expiry can be detected locally
// before spending a rate-limited call on a guaranteed 401. The
// signature is deliberately not verified: we are the token's bearer,
// not its audience.
func NewAccessCredential(token string) AccessCredential {
	cred := AccessCredential{Token: token}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return cred
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		cred.ExpiresAt = exp.Time
	}
	return cred
}

// Expired reports whether the credential is known to be expired at now.
// Tokens without a readable expiry are never reported expired locally;
// the upstream 401 is the fallback signal.
func (c AccessCredential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Vault encrypts credentials at rest with ChaCha20-Poly1305. Tokens
// are sealed before they reach the store and opened only on the call
// path, so a copied database file does not leak usable credentials.
type Vault struct {
	key []byte
}

// NewVault creates a Vault from a hex-encoded 256-bit key.
func NewVault(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding vault key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Vault{key: key}, nil
}

// Seal encrypts a token for storage. The random nonce is prepended to
// the ciphertext.
func (v *Vault) Seal(token string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(token)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, []byte(token), nil), nil
}

// Open decrypts a sealed token.
func (v *Vault) Open(sealed []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", errors.New("sealed credential too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("opening sealed credential: %w", err)
	}
	return string(plain), nil
}
