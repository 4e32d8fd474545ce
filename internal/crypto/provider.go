package crypto

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrAuthentication = errors.New("token authentication failed")
	ErrFormat         = errors.New("not an encrypted token")
	ErrInvalidKey     = errors.New("invalid key size")
	ErrEmptyPassword  = errors.New("password must not be empty")
)

// CryptoProvider combines key derivation and the token codec behind
// password-level operations.
type CryptoProvider struct {
	codec *Codec
}

// NewProvider creates a crypto provider.
func NewProvider(opts ...CodecOpt) Provider {
	return &CryptoProvider{
		codec: NewCodec(opts...),
	}
}

// DeriveKey derives the seal key for a password.
func (p *CryptoProvider) DeriveKey(password string) (DerivedKey, error) {
	return DeriveKey(password)
}

// Encrypt seals plaintext with an already derived key.
func (p *CryptoProvider) Encrypt(plaintext string, key DerivedKey) (string, error) {
	return p.codec.Encrypt(plaintext, key)
}

// Decrypt opens a token with an already derived key.
func (p *CryptoProvider) Decrypt(token string, key DerivedKey) (string, error) {
	return p.codec.Decrypt(token, key)
}

// Seal derives the key for password and encrypts plaintext.
func (p *CryptoProvider) Seal(plaintext, password string) (string, error) {
	key, err := DeriveKey(password)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	defer key.Clear()

	return p.codec.Encrypt(plaintext, key)
}

// Unseal derives the key for password and opens token.
func (p *CryptoProvider) Unseal(token, password string) (*Envelope, error) {
	key, err := DeriveKey(password)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer key.Clear()

	return p.codec.Open(token, key)
}
