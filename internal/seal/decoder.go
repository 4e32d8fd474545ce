package seal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/TheMichaelB/echoseal/internal/crypto"
	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
)

// PasswordProvider supplies the password for a protected seal. It is only
// consulted once a token has been found.
type PasswordProvider interface {
	Password(ctx context.Context) (string, error)
}

// PasswordFunc adapts a function to PasswordProvider.
type PasswordFunc func(ctx context.Context) (string, error)

// Password calls f(ctx).
func (f PasswordFunc) Password(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticPassword returns a provider that always answers password.
func StaticPassword(password string) PasswordProvider {
	return PasswordFunc(func(context.Context) (string, error) {
		return password, nil
	})
}

// Locator finds a seal in an image.
type Locator interface {
	Locate(img image.Image) (*qr.Result, bool)
}

// Recovery is a successfully read seal.
type Recovery struct {
	Message   string
	Protected bool
	// CreatedAt is the token's timestamp; zero for plaintext seals.
	CreatedAt   time.Time
	Strategy    string
	Polygon     []image.Point
	Fingerprint string
	TokenLength int
	State       models.RecoveryState
}

// Decoder reads seals: locate, then decrypt when the payload is a token.
// It is safe for concurrent use.
type Decoder struct {
	locator Locator
	crypto  crypto.Provider
}

// NewDecoder creates a decoder.
func NewDecoder(locator Locator, provider crypto.Provider) *Decoder {
	return &Decoder{
		locator: locator,
		crypto:  provider,
	}
}

// Recover locates the seal in img and returns its message. Plaintext seals
// are returned without consulting passwords. Failures wrap
// models.ErrNoCodeFound or models.ErrWrongPassword.
func (d *Decoder) Recover(ctx context.Context, img image.Image, passwords PasswordProvider) (*Recovery, error) {
	logger := events.FromContext(ctx)

	res, ok := d.locator.Locate(img)
	if !ok {
		logger.Debug("No seal found in image")
		return nil, &models.SealError{
			Code:  models.ErrCodeNoCodeFound,
			Phase: "locate",
			Err:   models.ErrNoCodeFound,
		}
	}

	logger.WithField("strategy", res.Strategy).Debug("Seal located")

	rec, err := d.RecoverToken(ctx, res.Text, passwords)
	if err != nil {
		return nil, err
	}

	rec.Strategy = res.Strategy
	rec.Polygon = res.Polygon
	return rec, nil
}

// RecoverToken runs the decrypt half of Recover on an already located
// payload.
func (d *Decoder) RecoverToken(ctx context.Context, text string, passwords PasswordProvider) (*Recovery, error) {
	logger := events.FromContext(ctx).WithFields(map[string]interface{}{
		"fingerprint":  models.Fingerprint(text),
		"token_length": len(text),
	})

	rec := &Recovery{
		Fingerprint: models.Fingerprint(text),
		TokenLength: len(text),
	}

	if !crypto.IsToken(text) {
		logger.Info("Plaintext seal read")
		rec.Message = text
		rec.State = models.StatePlaintextReady
		return rec, nil
	}

	rec.Protected = true
	if passwords == nil {
		return nil, &models.SealError{
			Code:  models.ErrCodeWrongPassword,
			Phase: "password",
			Err:   models.ErrWrongPassword,
		}
	}

	password, err := passwords.Password(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain password: %w", err)
	}

	env, err := d.crypto.Unseal(text, password)
	if err != nil {
		if isAccessDenied(err) {
			logger.Warn("Seal access denied")
			return nil, &models.SealError{
				Code:  models.ErrCodeWrongPassword,
				Phase: "decrypt",
				Err:   models.ErrWrongPassword,
			}
		}
		return nil, fmt.Errorf("decrypt seal: %w", err)
	}

	logger.Info("Seal decrypted")
	rec.Message = env.Plaintext
	rec.CreatedAt = env.Timestamp
	rec.State = models.StateDecrypted
	return rec, nil
}

func isAccessDenied(err error) bool {
	return errors.Is(err, crypto.ErrAuthentication) ||
		errors.Is(err, crypto.ErrFormat) ||
		errors.Is(err, crypto.ErrEmptyPassword)
}

// Locate finds the seal payload without decrypting it.
func (d *Decoder) Locate(img image.Image) (*qr.Result, bool) {
	return d.locator.Locate(img)
}
