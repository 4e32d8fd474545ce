package testutil

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/echoseal/internal/crypto"
	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/qr"
	"github.com/TheMichaelB/echoseal/internal/seal"
)

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// SealFixture is a rendered seal with the inputs that produced it.
type SealFixture struct {
	Message  string
	Password string
	Token    string
	PNG      []byte
}

// NewSealFixture renders a seal. An empty password gives a plaintext seal.
func NewSealFixture(tb testing.TB, message, password string) *SealFixture {
	tb.Helper()

	s, err := seal.NewCreator(crypto.NewProvider()).Create(context.Background(), seal.CreateRequest{
		Message:  message,
		Password: password,
	})
	require.NoError(tb, err)

	var buf bytes.Buffer
	require.NoError(tb, qr.EncodePNG(&buf, s.Image))

	return &SealFixture{
		Message:  message,
		Password: password,
		Token:    s.Token,
		PNG:      buf.Bytes(),
	}
}

// WriteFrame drops png into dir as a camera frame and dates it at, so
// frames order deterministically.
func WriteFrame(tb testing.TB, dir, name string, png []byte, at time.Time) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	require.NoError(tb, os.WriteFile(path, png, 0644))
	require.NoError(tb, os.Chtimes(path, at, at))
	return path
}

// BlankPNG is an image without any code.
func BlankPNG(tb testing.TB) []byte {
	tb.Helper()

	var buf bytes.Buffer
	require.NoError(tb, qr.EncodePNG(&buf, imaging.New(240, 240, color.White)))
	return buf.Bytes()
}

// WAVHeader is enough of a RIFF header for uploads to sniff as audio.
var WAVHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00")
