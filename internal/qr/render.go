package qr

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/boombuler/barcode"
	bqr "github.com/boombuler/barcode/qr"
	"github.com/disintegration/imaging"
)

// ErrCapacity is returned when content does not fit the largest QR version
// at the requested error correction level.
var ErrCapacity = errors.New("content exceeds QR capacity")

// Level is a QR error correction level.
type Level = bqr.ErrorCorrectionLevel

// Error correction levels.
const (
	LevelL = bqr.L
	LevelM = bqr.M
	LevelQ = bqr.Q
	LevelH = bqr.H
)

// byte-mode capacity of version 40
var capacities = map[Level]int{
	LevelL: 2953,
	LevelM: 2331,
	LevelQ: 1663,
	LevelH: 1273,
}

// ParseLevel maps "L", "M", "Q" or "H" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L":
		return LevelL, nil
	case "M":
		return LevelM, nil
	case "Q":
		return LevelQ, nil
	case "H":
		return LevelH, nil
	default:
		return LevelL, fmt.Errorf("unknown error correction level %q", s)
	}
}

// Capacity returns the largest byte payload a code at level can carry.
func Capacity(level Level) int {
	return capacities[level]
}

// Renderer draws QR codes as images.
type Renderer struct {
	Level      Level
	BoxSize    int // pixels per module
	Border     int // quiet zone in modules
	Foreground color.Color
	Background color.Color
}

// NewRenderer returns the seal look: white modules on a transparent field,
// ready to be composited over a background.
func NewRenderer(level Level, boxSize, border int) *Renderer {
	return &Renderer{
		Level:      level,
		BoxSize:    boxSize,
		Border:     border,
		Foreground: color.White,
		Background: color.Transparent,
	}
}

// Render encodes content in the smallest version that fits.
func (r *Renderer) Render(content string) (*image.NRGBA, error) {
	if r.BoxSize <= 0 {
		return nil, fmt.Errorf("invalid box size %d", r.BoxSize)
	}
	if len(content) > Capacity(r.Level) {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrCapacity, len(content), Capacity(r.Level))
	}

	code, err := bqr.Encode(content, r.Level, bqr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	modules := code.Bounds().Dx()
	scaled, err := barcode.Scale(code, modules*r.BoxSize, modules*r.BoxSize)
	if err != nil {
		return nil, fmt.Errorf("scale qr: %w", err)
	}

	quiet := r.Border * r.BoxSize
	side := modules*r.BoxSize + 2*quiet

	fg := color.NRGBAModel.Convert(r.Foreground).(color.NRGBA)
	bg := color.NRGBAModel.Convert(r.Background).(color.NRGBA)

	img := imaging.New(side, side, bg)
	sb := scaled.Bounds()
	for y := sb.Min.Y; y < sb.Max.Y; y++ {
		for x := sb.Min.X; x < sb.Max.X; x++ {
			if dark(scaled.At(x, y)) {
				img.SetNRGBA(quiet+x-sb.Min.X, quiet+y-sb.Min.Y, fg)
			}
		}
	}

	return img, nil
}

// Modules reports the module count per side for content at the renderer's
// level, i.e. the QR version's size.
func (r *Renderer) Modules(content string) (int, error) {
	code, err := bqr.Encode(content, r.Level, bqr.Auto)
	if err != nil {
		return 0, fmt.Errorf("encode qr: %w", err)
	}
	return code.Bounds().Dx(), nil
}

func dark(c color.Color) bool {
	g := color.GrayModel.Convert(c).(color.Gray)
	return g.Y < 128
}
