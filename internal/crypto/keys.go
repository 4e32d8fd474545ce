package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the derived key length: 16 bytes signing + 16 bytes AES-128.
	KeySize = 32

	// DefaultIterations is the PBKDF2 work factor. Changing it invalidates
	// every seal issued so far.
	DefaultIterations = 100000
)

// keySalt is shared by every deployment. A fixed salt exposes all seals to a
// single precomputed dictionary; it is kept so that sender and receiver need
// nothing but the password.
var keySalt = []byte("echoseal/static-salt/v1")

// DerivedKey is the symmetric key produced from a password.
type DerivedKey [KeySize]byte

// DeriveKey turns a password into a DerivedKey. The result depends only on
// the password.
func DeriveKey(password string) (DerivedKey, error) {
	var key DerivedKey
	if password == "" {
		return key, ErrEmptyPassword
	}

	raw := pbkdf2.Key([]byte(password), keySalt, DefaultIterations, KeySize, sha256.New)
	copy(key[:], raw)
	clearBytes(raw)

	return key, nil
}

// ParseKey decodes a URL-safe base64 key as produced by DerivedKey.String.
func ParseKey(s string) (DerivedKey, error) {
	var key DerivedKey

	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != KeySize {
		return key, ErrInvalidKey
	}

	copy(key[:], raw)
	return key, nil
}

// String renders the key as URL-safe base64.
func (k DerivedKey) String() string {
	return base64.URLEncoding.EncodeToString(k[:])
}

func (k *DerivedKey) signingKey() []byte {
	return k[:KeySize/2]
}

func (k *DerivedKey) encryptionKey() []byte {
	return k[KeySize/2:]
}

// Clear zeroes the key in place.
func (k *DerivedKey) Clear() {
	clearBytes(k[:])
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
