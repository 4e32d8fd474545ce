package seal_test

import (
	"context"
	"image"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/TheMichaelB/echoseal/internal/qr"
)

type mockPasswords struct {
	mock.Mock
}

func (m *mockPasswords) Password(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// textImage is a frame that "contains" a code reading as text.
type textImage struct {
	image.Image
	text string
}

func frameOf(text string) image.Image {
	return textImage{Image: image.NewGray(image.Rect(0, 0, 1, 1)), text: text}
}

// textLocator reads textImage frames without real QR decoding.
type textLocator struct{}

func (textLocator) Locate(img image.Image) (*qr.Result, bool) {
	ti, ok := img.(textImage)
	if !ok || ti.text == "" {
		return nil, false
	}
	return &qr.Result{Text: ti.text, Strategy: qr.StrategyDirect}, true
}

type recordingSpeaker struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
	return nil
}

func (s *recordingSpeaker) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}
