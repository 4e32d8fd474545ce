package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeNoCodeFound    = "NO_CODE_FOUND"
	ErrCodeWrongPassword  = "WRONG_PASSWORD"
	ErrCodePayloadTooBig  = "PAYLOAD_TOO_LARGE"
	ErrCodeTranscription  = "TRANSCRIPTION_UNAVAILABLE"
	ErrCodeCamera         = "CAMERA_UNAVAILABLE"
	ErrCodeInvalidImage   = "INVALID_IMAGE"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeStorage        = "STORAGE_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// Sentinel errors
var (
	ErrNoCodeFound              = errors.New("no QR code found in image")
	ErrWrongPassword            = errors.New("incorrect password or corrupted data")
	ErrPayloadTooLarge          = errors.New("message too large for a QR seal")
	ErrTranscriptionUnavailable = errors.New("could not transcribe audio")
	ErrCameraUnavailable        = errors.New("could not access the camera")
	ErrInvalidImage             = errors.New("could not read image")
	ErrEmptyMessage             = errors.New("message is empty")
	ErrSealNotFound             = errors.New("seal file not found")
)

// SealError ties a failure to the step of the seal flow that produced it.
type SealError struct {
	Code  string
	Phase string
	Err   error
}

func (e *SealError) Error() string {
	return fmt.Sprintf("seal %s [%s]: %v", e.Phase, e.Code, e.Err)
}

func (e *SealError) Unwrap() error {
	return e.Err
}

// ErrorCode maps an error to its code. Unknown errors are internal.
func ErrorCode(err error) string {
	var sealErr *SealError
	if errors.As(err, &sealErr) && sealErr.Code != "" {
		return sealErr.Code
	}

	switch {
	case errors.Is(err, ErrNoCodeFound):
		return ErrCodeNoCodeFound
	case errors.Is(err, ErrWrongPassword):
		return ErrCodeWrongPassword
	case errors.Is(err, ErrPayloadTooLarge):
		return ErrCodePayloadTooBig
	case errors.Is(err, ErrTranscriptionUnavailable):
		return ErrCodeTranscription
	case errors.Is(err, ErrCameraUnavailable):
		return ErrCodeCamera
	case errors.Is(err, ErrInvalidImage):
		return ErrCodeInvalidImage
	case errors.Is(err, ErrEmptyMessage):
		return ErrCodeInvalidRequest
	case errors.Is(err, ErrSealNotFound):
		return ErrCodeNotFound
	default:
		return ErrCodeInternal
	}
}

// APIError is the JSON error body of the seal HTTP API.
type APIError struct {
	Success    bool   `json:"success"`
	Code       string `json:"code"`
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap returns the sentinel matching the error code, so remote failures
// can be tested with errors.Is like local ones.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case ErrCodeNoCodeFound:
		return ErrNoCodeFound
	case ErrCodeWrongPassword:
		return ErrWrongPassword
	case ErrCodePayloadTooBig:
		return ErrPayloadTooLarge
	case ErrCodeTranscription:
		return ErrTranscriptionUnavailable
	case ErrCodeInvalidImage:
		return ErrInvalidImage
	case ErrCodeNotFound:
		return ErrSealNotFound
	default:
		return nil
	}
}
