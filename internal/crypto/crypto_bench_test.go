package crypto_test

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/TheMichaelB/echoseal/internal/crypto"
)

func BenchmarkKeyDerivation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := crypto.DeriveKey("password123"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncrypt(b *testing.B) {
	codec := crypto.NewCodec()
	var key crypto.DerivedKey
	if _, err := rand.Read(key[:]); err != nil {
		b.Fatal(err)
	}

	msg := strings.Repeat("x", 256)

	b.ResetTimer()
	b.SetBytes(int64(len(msg)))

	for i := 0; i < b.N; i++ {
		if _, err := codec.Encrypt(msg, key); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecrypt(b *testing.B) {
	codec := crypto.NewCodec()
	var key crypto.DerivedKey
	if _, err := rand.Read(key[:]); err != nil {
		b.Fatal(err)
	}

	msg := strings.Repeat("x", 256)
	token, err := codec.Encrypt(msg, key)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.SetBytes(int64(len(msg)))

	for i := 0; i < b.N; i++ {
		if _, err := codec.Decrypt(token, key); err != nil {
			b.Fatal(err)
		}
	}
}
