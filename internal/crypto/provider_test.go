package crypto_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/echoseal/internal/crypto"
	"github.com/TheMichaelB/echoseal/internal/crypto/testdata"
)

func TestDeriveKey(t *testing.T) {
	for _, tv := range testdata.KeyVectors {
		t.Run(tv.Name, func(t *testing.T) {
			key, err := crypto.DeriveKey(tv.Password)
			require.NoError(t, err)
			assert.Equal(t, tv.Key, key.String())

			// Verify deterministic
			key2, err := crypto.DeriveKey(tv.Password)
			require.NoError(t, err)
			assert.Equal(t, key, key2)
		})
	}

	t.Run("distinct passwords give distinct keys", func(t *testing.T) {
		seen := make(map[crypto.DerivedKey]string)
		for _, tv := range testdata.KeyVectors {
			key, err := crypto.DeriveKey(tv.Password)
			require.NoError(t, err)

			if prev, ok := seen[key]; ok {
				t.Fatalf("passwords %q and %q derived the same key", prev, tv.Password)
			}
			seen[key] = tv.Password
		}
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := crypto.DeriveKey("")
		assert.ErrorIs(t, err, crypto.ErrEmptyPassword)
	})
}

func TestParseKey(t *testing.T) {
	key, err := crypto.DeriveKey("swordfish")
	require.NoError(t, err)

	parsed, err := crypto.ParseKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = crypto.ParseKey("c2hvcnQ=")
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)

	_, err = crypto.ParseKey("not base64!")
	assert.Error(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := crypto.NewCodec()
	key, err := crypto.DeriveKey("swordfish")
	require.NoError(t, err)

	messages := []string{
		"meet at dawn",
		"",
		"a",
		"exactly sixteen!",
		"Привет, мир! 🌍",
		strings.Repeat("long message ", 100),
	}

	for _, msg := range messages {
		token, err := codec.Encrypt(msg, key)
		require.NoError(t, err)
		assert.True(t, crypto.IsToken(token), "token %q lacks marker", token)
		assert.Len(t, token, crypto.EncodedLen(len(msg)))

		plain, err := codec.Decrypt(token, key)
		require.NoError(t, err)
		assert.Equal(t, msg, plain)
	}
}

func TestCodec_Timestamp(t *testing.T) {
	issued := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	codec := crypto.NewCodec(crypto.WithClock(func() time.Time { return issued }))

	key, err := crypto.DeriveKey("swordfish")
	require.NoError(t, err)

	token, err := codec.Encrypt("meet at dawn", key)
	require.NoError(t, err)

	// A codec with a different clock still reports the issue time.
	env, err := crypto.NewCodec().Open(token, key)
	require.NoError(t, err)
	assert.Equal(t, crypto.EnvelopeVersion, env.Version)
	assert.True(t, issued.Equal(env.Timestamp))
	assert.Equal(t, "meet at dawn", env.Plaintext)
}

func TestCodec_ReferenceVectors(t *testing.T) {
	for _, tv := range testdata.TokenVectors {
		t.Run(tv.Name, func(t *testing.T) {
			key, err := crypto.ParseKey(tv.Key)
			require.NoError(t, err)

			t.Run("decrypt", func(t *testing.T) {
				env, err := crypto.NewCodec().Open(tv.Token, key)
				require.NoError(t, err)
				assert.Equal(t, tv.Plaintext, env.Plaintext)
				assert.Equal(t, tv.Unix, env.Timestamp.Unix())
			})

			t.Run("encrypt", func(t *testing.T) {
				codec := crypto.NewCodec(
					crypto.WithClock(func() time.Time { return time.Unix(tv.Unix, 0) }),
					crypto.WithRandom(bytes.NewReader(tv.IV)),
				)

				token, err := codec.Encrypt(tv.Plaintext, key)
				require.NoError(t, err)
				assert.Equal(t, tv.Token, token)
			})
		})
	}
}

func TestCodec_DecryptErrors(t *testing.T) {
	codec := crypto.NewCodec()
	key, err := crypto.DeriveKey("swordfish")
	require.NoError(t, err)

	valid, err := codec.Encrypt("meet at dawn", key)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"plain text", "meet at dawn", crypto.ErrFormat},
		{"empty", "", crypto.ErrFormat},
		{"marker only", crypto.TokenPrefix, crypto.ErrAuthentication},
		{"invalid alphabet", crypto.TokenPrefix + "!!!!", crypto.ErrAuthentication},
		{"truncated", valid[:40], crypto.ErrAuthentication},
		{"trailing garbage", valid + "AAAA", crypto.ErrAuthentication},
		{"standard base64 alphabet", strings.NewReplacer("-", "+", "_", "/").Replace(valid), crypto.ErrAuthentication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.token == valid {
				t.Skip("replacement left token unchanged")
			}
			_, err := codec.Decrypt(tt.token, key)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProvider_SealUnseal(t *testing.T) {
	provider := crypto.NewProvider()

	token, err := provider.Seal("meet at dawn", "swordfish")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, crypto.TokenPrefix))

	env, err := provider.Unseal(token, "swordfish")
	require.NoError(t, err)
	assert.Equal(t, "meet at dawn", env.Plaintext)

	_, err = provider.Unseal(token, "wrong")
	assert.ErrorIs(t, err, crypto.ErrAuthentication)

	_, err = provider.Seal("meet at dawn", "")
	assert.ErrorIs(t, err, crypto.ErrEmptyPassword)
}

func TestProvider_KeyLevel(t *testing.T) {
	provider := crypto.NewProvider()

	key, err := provider.DeriveKey("swordfish")
	require.NoError(t, err)

	token, err := provider.Encrypt("meet at dawn", key)
	require.NoError(t, err)

	plain, err := provider.Decrypt(token, key)
	require.NoError(t, err)
	assert.Equal(t, "meet at dawn", plain)

	// Password-level and key-level operations interoperate.
	env, err := provider.Unseal(token, "swordfish")
	require.NoError(t, err)
	assert.Equal(t, plain, env.Plaintext)
}
