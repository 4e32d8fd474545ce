package seal_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/echoseal/internal/crypto"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/seal"
)

// scriptedSource plays back frames, then reports nothing new or the
// configured terminal error.
type scriptedSource struct {
	mu     sync.Mutex
	frames []string
	end    error
}

func (s *scriptedSource) Next(context.Context) (*seal.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return nil, s.end
	}
	text := s.frames[0]
	s.frames = s.frames[1:]
	return &seal.Frame{Name: fmt.Sprintf("frame-%d", len(s.frames)), Image: frameOf(text)}, nil
}

func TestScannerStep(t *testing.T) {
	provider := crypto.NewProvider()
	token, err := provider.Seal("meet at dawn", "swordfish")
	require.NoError(t, err)

	src := &scriptedSource{frames: []string{"hello", "hello", "", token, "hello"}}
	speaker := &recordingSpeaker{}
	var got []seal.ScanEvent

	sc := seal.NewScanner(src, seal.NewDecoder(textLocator{}, provider),
		seal.WithPasswords(seal.StaticPassword("swordfish")),
		seal.WithSpeaker(speaker),
		seal.WithHandler(func(ev seal.ScanEvent) { got = append(got, ev) }),
	)

	ctx := context.Background()
	var delivered []bool
	for i := 0; i < 6; i++ {
		ok, err := sc.Step(ctx)
		require.NoError(t, err)
		delivered = append(delivered, ok)
	}

	assert.Equal(t, []bool{true, false, false, true, true, false}, delivered)
	assert.Equal(t, []string{
		"Incoming transmission: hello",
		"Incoming transmission: meet at dawn",
		"Incoming transmission: hello",
	}, speaker.Lines())

	require.Len(t, got, 3)
	assert.True(t, got[1].Recovery.Protected)
	assert.Equal(t, models.StateDecrypted, got[1].Recovery.State)
}

func TestScannerWrongPasswordIsNotSpoken(t *testing.T) {
	provider := crypto.NewProvider()
	token, err := provider.Seal("meet at dawn", "swordfish")
	require.NoError(t, err)

	speaker := &recordingSpeaker{}
	var got []seal.ScanEvent

	sc := seal.NewScanner(&scriptedSource{frames: []string{token, token}}, seal.NewDecoder(textLocator{}, provider),
		seal.WithPasswords(seal.StaticPassword("wrong")),
		seal.WithSpeaker(speaker),
		seal.WithHandler(func(ev seal.ScanEvent) { got = append(got, ev) }),
	)

	ok, err := sc.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	// Same code again does not re-prompt.
	ok, err = sc.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Empty(t, speaker.Lines())
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].Err, models.ErrWrongPassword)
}

func TestScannerRunStopsOnCameraLoss(t *testing.T) {
	src := &scriptedSource{
		frames: []string{"one", "two"},
		end:    fmt.Errorf("%w: unplugged", models.ErrCameraUnavailable),
	}
	speaker := &recordingSpeaker{}

	sc := seal.NewScanner(src, seal.NewDecoder(textLocator{}, crypto.NewProvider()),
		seal.WithSpeaker(speaker),
		seal.WithPollInterval(time.Millisecond),
		seal.WithCooldown(time.Millisecond),
	)

	err := sc.Run(context.Background())
	assert.ErrorIs(t, err, models.ErrCameraUnavailable)
	assert.Len(t, speaker.Lines(), 2)
}

func TestScannerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sc := seal.NewScanner(&scriptedSource{}, seal.NewDecoder(textLocator{}, crypto.NewProvider()),
		seal.WithPollInterval(5*time.Millisecond),
	)

	assert.NoError(t, sc.Run(ctx))
}
