package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/TheMichaelB/echoseal/internal/crypto"
)

// RecordKind says whether a history record describes an issued or a read seal.
type RecordKind string

const (
	KindCreated   RecordKind = "created"
	KindRecovered RecordKind = "recovered"
)

// SealRecord is one entry of the seal history. It never holds the message,
// the token or the password.
type SealRecord struct {
	ID          string        `json:"id"`
	Kind        RecordKind    `json:"kind"`
	File        string        `json:"file,omitempty"`
	Protected   bool          `json:"protected"`
	TokenLength int           `json:"token_length"`
	Fingerprint string        `json:"fingerprint"`
	Strategy    string        `json:"strategy,omitempty"`
	Outcome     RecoveryState `json:"outcome,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Fingerprint identifies a token in logs and history without revealing it.
// Plaintext payloads get no fingerprint: a bare hash of a short message
// would let anyone holding the history confirm a guess.
func Fingerprint(token string) string {
	if !crypto.IsToken(token) {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
