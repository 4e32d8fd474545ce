package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// EnvelopeVersion is the first byte of every envelope.
	EnvelopeVersion byte = 0x80

	// TokenPrefix is what every encoded envelope starts with: the version
	// byte followed by the high (zero) bytes of the timestamp.
	TokenPrefix = "gAAAA"

	IVSize        = aes.BlockSize
	TimestampSize = 8
	MACSize       = sha256.Size

	headerSize      = 1 + TimestampSize + IVSize
	minEnvelopeSize = headerSize + aes.BlockSize + MACSize
)

var tokenEncoding = base64.URLEncoding.Strict()

// Envelope is the authenticated content of a token.
type Envelope struct {
	Version   byte
	Timestamp time.Time
	Plaintext string
}

// Codec seals and opens tokens. It is safe for concurrent use.
type Codec struct {
	now    func() time.Time
	random io.Reader
}

// CodecOpt configures a Codec.
type CodecOpt = func(*Codec)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) CodecOpt {
	return func(c *Codec) {
		c.now = now
	}
}

// WithRandom overrides the IV source.
func WithRandom(r io.Reader) CodecOpt {
	return func(c *Codec) {
		c.random = r
	}
}

// NewCodec creates a codec using crypto/rand and the wall clock.
func NewCodec(opts ...CodecOpt) *Codec {
	c := &Codec{
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsToken reports whether s carries the envelope marker.
func IsToken(s string) bool {
	return strings.HasPrefix(s, TokenPrefix)
}

// Encrypt seals plaintext into a URL-safe token. Every call draws a fresh IV,
// so equal inputs give different tokens.
func (c *Codec) Encrypt(plaintext string, key DerivedKey) (string, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	block, err := aes.NewCipher(key.encryptionKey())
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	padded := pad([]byte(plaintext))
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	envelope := make([]byte, 0, headerSize+len(ciphertext)+MACSize)
	envelope = append(envelope, EnvelopeVersion)
	envelope = binary.BigEndian.AppendUint64(envelope, uint64(c.now().Unix()))
	envelope = append(envelope, iv...)
	envelope = append(envelope, ciphertext...)
	envelope = append(envelope, sign(key.signingKey(), envelope)...)

	return tokenEncoding.EncodeToString(envelope), nil
}

// Decrypt opens a token and returns the plaintext.
func (c *Codec) Decrypt(token string, key DerivedKey) (string, error) {
	env, err := c.Open(token, key)
	if err != nil {
		return "", err
	}
	return env.Plaintext, nil
}

// Open verifies and decrypts a token. A token without the marker fails with
// ErrFormat; any other defect fails with ErrAuthentication.
func (c *Codec) Open(token string, key DerivedKey) (*Envelope, error) {
	if !IsToken(token) {
		return nil, ErrFormat
	}

	data, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed encoding", ErrAuthentication)
	}

	if len(data) < minEnvelopeSize || (len(data)-headerSize-MACSize)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: malformed envelope", ErrAuthentication)
	}

	if data[0] != EnvelopeVersion {
		return nil, fmt.Errorf("%w: unknown version 0x%02x", ErrAuthentication, data[0])
	}

	signed, mac := data[:len(data)-MACSize], data[len(data)-MACSize:]
	if !hmac.Equal(mac, sign(key.signingKey(), signed)) {
		return nil, ErrAuthentication
	}

	timestamp := binary.BigEndian.Uint64(data[1 : 1+TimestampSize])
	iv := data[1+TimestampSize : headerSize]
	ciphertext := data[headerSize : len(data)-MACSize]

	block, err := aes.NewCipher(key.encryptionKey())
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = unpad(plaintext)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Version:   data[0],
		Timestamp: time.Unix(int64(timestamp), 0).UTC(),
		Plaintext: string(plaintext),
	}, nil
}

// EncodedLen is the token length for a plaintext of n bytes.
func EncodedLen(n int) int {
	padded := (n/aes.BlockSize + 1) * aes.BlockSize
	return tokenEncoding.EncodedLen(headerSize + padded + MACSize)
}

func sign(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// pad applies PKCS#7 padding.
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrAuthentication)
	}

	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrAuthentication)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrAuthentication)
		}
	}

	return data[:len(data)-n], nil
}
