package seal

import (
	"context"
	"errors"
	"time"

	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
)

// ScanEvent reports one delivered payload: either a Recovery or the error
// reading it.
type ScanEvent struct {
	Frame    string
	Recovery *Recovery
	Err      error
	At       time.Time
}

// Scanner watches a FrameSource and announces every new seal it sees.
type Scanner struct {
	source    FrameSource
	decoder   *Decoder
	passwords PasswordProvider
	speaker   Speaker
	latch     *Latch
	interval  time.Duration
	cooldown  time.Duration
	handler   func(ScanEvent)
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithPasswords sets the provider asked for protected seals.
func WithPasswords(p PasswordProvider) ScannerOption {
	return func(s *Scanner) {
		s.passwords = p
	}
}

// WithSpeaker sets the speaker for recovered messages.
func WithSpeaker(sp Speaker) ScannerOption {
	return func(s *Scanner) {
		s.speaker = sp
	}
}

// WithPollInterval sets the wait between empty frames.
func WithPollInterval(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		s.interval = d
	}
}

// WithCooldown sets the pause after each delivered payload.
func WithCooldown(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		s.cooldown = d
	}
}

// WithHandler registers a callback for every ScanEvent.
func WithHandler(fn func(ScanEvent)) ScannerOption {
	return func(s *Scanner) {
		s.handler = fn
	}
}

// NewScanner creates a scanner polling every 200ms with a 2s cooldown.
func NewScanner(source FrameSource, decoder *Decoder, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		source:   source,
		decoder:  decoder,
		latch:    &Latch{},
		interval: 200 * time.Millisecond,
		cooldown: 2 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run scans until ctx is done or the camera becomes unavailable.
func (s *Scanner) Run(ctx context.Context) error {
	logger := events.FromContext(ctx)
	logger.Info("Scanner started")

	for {
		delivered, err := s.Step(ctx)
		if err != nil {
			return err
		}

		wait := s.interval
		if delivered {
			logger.Debug("Ready for next code")
			wait = s.cooldown
		}

		select {
		case <-ctx.Done():
			logger.Info("Scanner stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// Step processes one frame and reports whether a new payload was
// delivered. Only camera loss is returned as an error; per-frame failures
// are logged or reported through the handler.
func (s *Scanner) Step(ctx context.Context) (bool, error) {
	logger := events.FromContext(ctx)

	frame, err := s.source.Next(ctx)
	if err != nil {
		if errors.Is(err, models.ErrCameraUnavailable) {
			return false, err
		}
		if ctx.Err() != nil {
			return false, nil
		}
		logger.WithError(err).Debug("Skipping unreadable frame")
		return false, nil
	}
	if frame == nil {
		return false, nil
	}

	res, ok := s.decoder.Locate(frame.Image)
	if !ok || !s.latch.Observe(res.Text) {
		return false, nil
	}

	logger = logger.WithFields(map[string]interface{}{
		"frame":    frame.Name,
		"strategy": res.Strategy,
	})

	ev := ScanEvent{Frame: frame.Name, At: time.Now().UTC()}

	rec, err := s.decoder.RecoverToken(ctx, res.Text, s.passwords)
	if err != nil {
		logger.WithError(err).Warn("Seal could not be read")
		ev.Err = err
		s.emit(ev)
		return true, nil
	}

	rec.Strategy = res.Strategy
	rec.Polygon = res.Polygon
	ev.Recovery = rec

	if s.speaker != nil {
		if err := s.speaker.Speak(ctx, Announcement(rec.Message)); err != nil {
			logger.WithError(err).Warn("Speaker failed")
		}
	}

	s.emit(ev)
	return true, nil
}

func (s *Scanner) emit(ev ScanEvent) {
	if s.handler != nil {
		s.handler(ev)
	}
}
