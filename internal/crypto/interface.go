package crypto

// Provider defines the interface for cryptographic operations.
type Provider interface {
	// DeriveKey derives the seal key from a password.
	DeriveKey(password string) (DerivedKey, error)

	// Encrypt seals plaintext into a token.
	Encrypt(plaintext string, key DerivedKey) (string, error)

	// Decrypt opens a token.
	Decrypt(token string, key DerivedKey) (string, error)

	// Seal encrypts plaintext under a password.
	Seal(plaintext, password string) (string, error)

	// Unseal decrypts a token under a password.
	Unseal(token, password string) (*Envelope, error)
}
