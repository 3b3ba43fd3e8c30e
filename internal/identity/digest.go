// Package identity derives the stored form of opaque scanner tokens.
package identity

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrEmptySecret is returned when a Digester is built without a key.
	ErrEmptySecret = errors.New("identity: token secret must not be empty")
	// ErrEmptyToken is returned when an empty token is digested.
	ErrEmptyToken = errors.New("identity: token must not be empty")
)

// Digester computes keyed BLAKE2b-256 digests of biometric tokens.
type Digester struct {
	key [blake2b.Size256]byte
}

// NewDigester derives the digest key from secret.
func NewDigester(secret string) (*Digester, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	// blake2b keys are limited to 64 bytes, so the secret is condensed first.
	return &Digester{key: blake2b.Sum256([]byte(secret))}, nil
}

// Digest returns the lowercase hex digest of token. Surrounding whitespace is ignored.
func (d *Digester) Digest(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	h, err := blake2b.New256(d.key[:])
	if err != nil {
		return "", err
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil)), nil
}
