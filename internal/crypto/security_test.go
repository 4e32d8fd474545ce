package crypto_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/echoseal/internal/crypto"
)

func TestSecurityRequirements(t *testing.T) {
	codec := crypto.NewCodec()

	t.Run("key derivation uses sufficient iterations", func(t *testing.T) {
		assert.GreaterOrEqual(t, crypto.DefaultIterations, 100000)
	})

	t.Run("key size is 256 bits", func(t *testing.T) {
		assert.Equal(t, 32, crypto.KeySize)
	})

	t.Run("iv is random for each encryption", func(t *testing.T) {
		var key crypto.DerivedKey
		_, err := rand.Read(key[:])
		require.NoError(t, err)

		token1, err := codec.Encrypt("test message", key)
		require.NoError(t, err)

		token2, err := codec.Encrypt("test message", key)
		require.NoError(t, err)

		assert.NotEqual(t, token1, token2)

		plain1, err := codec.Decrypt(token1, key)
		require.NoError(t, err)

		plain2, err := codec.Decrypt(token2, key)
		require.NoError(t, err)

		assert.Equal(t, "test message", plain1)
		assert.Equal(t, "test message", plain2)
	})

	t.Run("any flipped byte is rejected", func(t *testing.T) {
		key, err := crypto.DeriveKey("swordfish")
		require.NoError(t, err)

		token, err := codec.Encrypt("meet at dawn", key)
		require.NoError(t, err)

		for i := 0; i < len(token); i++ {
			tampered := []byte(token)
			tampered[i] ^= 0x01

			plain, err := codec.Decrypt(string(tampered), key)
			require.Error(t, err, "byte %d accepted, got %q", i, plain)

			if i < len(crypto.TokenPrefix) {
				assert.ErrorIs(t, err, crypto.ErrFormat, "byte %d", i)
			} else {
				assert.ErrorIs(t, err, crypto.ErrAuthentication, "byte %d", i)
			}
		}
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		right, err := crypto.DeriveKey("swordfish")
		require.NoError(t, err)
		wrong, err := crypto.DeriveKey("wrong")
		require.NoError(t, err)

		token, err := codec.Encrypt("meet at dawn", right)
		require.NoError(t, err)

		_, err = codec.Decrypt(token, wrong)
		assert.ErrorIs(t, err, crypto.ErrAuthentication)
	})

	t.Run("token alphabet is qr safe", func(t *testing.T) {
		var key crypto.DerivedKey
		_, err := rand.Read(key[:])
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			token, err := codec.Encrypt("alphabet check", key)
			require.NoError(t, err)

			for _, r := range token {
				ok := (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') ||
					(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '='
				require.True(t, ok, "unexpected rune %q in %s", r, token)
			}
		}
	})

	t.Run("clear zeroes key", func(t *testing.T) {
		key, err := crypto.DeriveKey("swordfish")
		require.NoError(t, err)

		key.Clear()
		assert.Equal(t, crypto.DerivedKey{}, key)
	})
}
