package crypto_test

import (
	"fmt"

	"github.com/TheMichaelB/echoseal/internal/crypto"
)

func ExampleDeriveKey() {
	key, err := crypto.DeriveKey("swordfish")
	if err != nil {
		panic(err)
	}

	fmt.Println(key)
	// Output: ObestRjBFV4rdGQP9GO_OF8e4gUtDlXhKjjRtGtjeD4=
}

func ExampleCodec_Decrypt() {
	codec := crypto.NewCodec()

	key, err := crypto.DeriveKey("swordfish")
	if err != nil {
		panic(err)
	}

	token, err := codec.Encrypt("meet at dawn", key)
	if err != nil {
		fmt.Printf("Encryption failed: %v\n", err)
		return
	}

	plain, err := codec.Decrypt(token, key)
	if err != nil {
		fmt.Printf("Decryption failed: %v\n", err)
		return
	}

	fmt.Printf("Marker: %v\n", crypto.IsToken(token))
	fmt.Printf("Decrypted: %s\n", plain)
	// Output:
	// Marker: true
	// Decrypted: meet at dawn
}
