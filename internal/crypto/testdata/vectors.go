package testdata

// KeyVector is a password and the key it must derive to.
type KeyVector struct {
	Name     string
	Password string
	Key      string // URL-safe base64
}

// KeyVectors were computed with an independent PBKDF2-HMAC-SHA256
// implementation using the fixed salt and 100000 iterations.
var KeyVectors = []KeyVector{
	{
		Name:     "ascii password",
		Password: "swordfish",
		Key:      "ObestRjBFV4rdGQP9GO_OF8e4gUtDlXhKjjRtGtjeD4=",
	},
	{
		Name:     "second ascii password",
		Password: "wrong",
		Key:      "ONcYqRjJ1MbrqOIlrO-1kddnhPbNdylX_mfsf6MtJ6c=",
	},
	{
		Name:     "passphrase with spaces",
		Password: "correct horse battery staple",
		Key:      "7TIiPsSCFqqWBXoalLcXDXTwLnG_GzGpb0CMBO-f3hk=",
	},
	{
		Name:     "unicode password",
		Password: "пароль123",
		Key:      "bsa3J3j61vTFNZz1LlIYDZk1YpTAGMbmJYjAnnkDXIE=",
	},
}

// TokenVector is a token produced by another implementation of the same
// envelope format.
type TokenVector struct {
	Name      string
	Key       string // URL-safe base64
	Token     string
	Plaintext string
	Unix      int64
	IV        []byte
}

// TokenVectors holds the published reference vector of the envelope format.
var TokenVectors = []TokenVector{
	{
		Name:      "reference hello",
		Key:       "cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4=",
		Token:     "gAAAAAAdwJ6wAAECAwQFBgcICQoLDA0ODy021cpGVWKZ_eEwCGM4BLLF_5CV9dOPmrhuVUPgJobwOz7JcbmrR64jVmpU4IwqDA==",
		Plaintext: "hello",
		Unix:      499162800,
		IV:        []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	},
}
