package seal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TheMichaelB/echoseal/internal/crypto"
	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
)

// ErrAmbiguousMessage rejects plaintext that would be read back as a token.
var ErrAmbiguousMessage = errors.New("message looks like an encrypted token")

// CreateRequest describes a seal to issue. Message wins over Audio.
type CreateRequest struct {
	Message string
	Audio   io.Reader
	// Password protects the seal; empty issues a plaintext seal.
	Password   string
	Background image.Image
}

// Seal is an issued seal.
type Seal struct {
	ID        string
	Token     string
	Protected bool
	Image     *image.NRGBA
	CreatedAt time.Time
}

// Record returns the history entry for s.
func (s *Seal) Record(file string) models.SealRecord {
	return models.SealRecord{
		ID:          s.ID,
		Kind:        models.KindCreated,
		File:        file,
		Protected:   s.Protected,
		TokenLength: len(s.Token),
		Fingerprint: models.Fingerprint(s.Token),
		CreatedAt:   s.CreatedAt,
	}
}

// Creator issues seals.
type Creator struct {
	crypto      crypto.Provider
	renderer    *qr.Renderer
	transcriber Transcriber
	now         func() time.Time
}

// CreatorOption configures a Creator.
type CreatorOption func(*Creator)

// WithRenderer replaces the default renderer.
func WithRenderer(r *qr.Renderer) CreatorOption {
	return func(c *Creator) {
		c.renderer = r
	}
}

// WithTranscriber enables audio messages.
func WithTranscriber(t Transcriber) CreatorOption {
	return func(c *Creator) {
		c.transcriber = t
	}
}

// WithCreatorClock sets the time source for CreatedAt.
func WithCreatorClock(now func() time.Time) CreatorOption {
	return func(c *Creator) {
		c.now = now
	}
}

// NewCreator creates a seal creator rendering level L codes, 15 px per
// module with a two module border.
func NewCreator(provider crypto.Provider, opts ...CreatorOption) *Creator {
	c := &Creator{
		crypto:   provider,
		renderer: qr.NewRenderer(qr.LevelL, 15, 2),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Create resolves the message, encrypts it when a password is given and
// renders the code over the background.
func (c *Creator) Create(ctx context.Context, req CreateRequest) (*Seal, error) {
	message, err := c.message(ctx, req)
	if err != nil {
		return nil, err
	}

	s := &Seal{
		ID:        uuid.NewString(),
		Token:     message,
		CreatedAt: c.now().UTC(),
	}

	logger := events.FromContext(ctx).WithField("seal_id", s.ID)

	if req.Password == "" && crypto.IsToken(message) {
		return nil, &models.SealError{
			Code:  models.ErrCodeInvalidRequest,
			Phase: "message",
			Err:   fmt.Errorf("%w: an unprotected message may not start with %q", ErrAmbiguousMessage, crypto.TokenPrefix),
		}
	}

	if req.Password != "" {
		token, err := c.crypto.Seal(message, req.Password)
		if err != nil {
			return nil, &models.SealError{Code: models.ErrCodeInternal, Phase: "encrypt", Err: err}
		}
		s.Token = token
		s.Protected = true
	}

	if limit := qr.Capacity(c.renderer.Level); len(s.Token) > limit {
		return nil, &models.SealError{
			Code:  models.ErrCodePayloadTooBig,
			Phase: "render",
			Err:   fmt.Errorf("%w: %d bytes, limit %d", models.ErrPayloadTooLarge, len(s.Token), limit),
		}
	}

	code, err := c.renderer.Render(s.Token)
	if err != nil {
		if errors.Is(err, qr.ErrCapacity) {
			return nil, &models.SealError{Code: models.ErrCodePayloadTooBig, Phase: "render", Err: models.ErrPayloadTooLarge}
		}
		return nil, &models.SealError{Code: models.ErrCodeInternal, Phase: "render", Err: err}
	}

	s.Image = qr.Compose(code, req.Background)

	logger.WithFields(map[string]interface{}{
		"protected":    s.Protected,
		"token_length": len(s.Token),
		"fingerprint":  models.Fingerprint(s.Token),
	}).Info("Seal created")

	return s, nil
}

func (c *Creator) message(ctx context.Context, req CreateRequest) (string, error) {
	if msg := strings.TrimSpace(req.Message); msg != "" {
		return msg, nil
	}

	if req.Audio == nil {
		return "", &models.SealError{Code: models.ErrCodeInvalidRequest, Phase: "message", Err: models.ErrEmptyMessage}
	}

	if c.transcriber == nil {
		return "", &models.SealError{Code: models.ErrCodeTranscription, Phase: "transcribe", Err: models.ErrTranscriptionUnavailable}
	}

	text, err := c.transcriber.Transcribe(ctx, req.Audio)
	if err != nil {
		return "", &models.SealError{
			Code:  models.ErrCodeTranscription,
			Phase: "transcribe",
			Err:   fmt.Errorf("%w: %v", models.ErrTranscriptionUnavailable, err),
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &models.SealError{Code: models.ErrCodeTranscription, Phase: "transcribe", Err: models.ErrTranscriptionUnavailable}
	}

	return text, nil
}
