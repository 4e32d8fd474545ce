package models

import "errors"

// RecoveryState is a step of reading a seal.
type RecoveryState string

const (
	StateScanning         RecoveryState = "scanning"
	StateNotFound         RecoveryState = "not_found"
	StateTokenFound       RecoveryState = "token_found"
	StatePlaintextReady   RecoveryState = "plaintext_ready"
	StateAwaitingPassword RecoveryState = "awaiting_password"
	StateDecrypted        RecoveryState = "decrypted"
	StateAccessDenied     RecoveryState = "access_denied"
)

var recoveryTransitions = map[RecoveryState][]RecoveryState{
	StateScanning:         {StateNotFound, StateTokenFound},
	StateTokenFound:       {StatePlaintextReady, StateAwaitingPassword},
	StateAwaitingPassword: {StateDecrypted, StateAccessDenied},
}

// CanTransition reports whether next may follow s.
func (s RecoveryState) CanTransition(next RecoveryState) bool {
	for _, allowed := range recoveryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no state can follow s.
func (s RecoveryState) Terminal() bool {
	return len(recoveryTransitions[s]) == 0
}

// Succeeded reports whether s ends with a readable message.
func (s RecoveryState) Succeeded() bool {
	return s == StatePlaintextReady || s == StateDecrypted
}

// OutcomeOf returns the terminal state a failed recovery ended in, or
// StateScanning when err is not a seal outcome.
func OutcomeOf(err error) RecoveryState {
	switch {
	case errors.Is(err, ErrNoCodeFound):
		return StateNotFound
	case errors.Is(err, ErrWrongPassword):
		return StateAccessDenied
	default:
		return StateScanning
	}
}
