package qr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// CanvasColor fills a seal that has no background image.
var CanvasColor = color.NRGBA{R: 16, G: 16, B: 24, A: 255}

// Compose lays code over background, resizing the background to the code's
// size. A nil background gives a plain dark canvas. The result is opaque.
func Compose(code, background image.Image) *image.NRGBA {
	b := code.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), CanvasColor)

	if background != nil && !background.Bounds().Empty() {
		resized := imaging.Resize(background, b.Dx(), b.Dy(), imaging.Lanczos)
		canvas = imaging.Overlay(canvas, resized, image.Pt(0, 0), 1.0)
	}

	return imaging.Overlay(canvas, code, image.Pt(0, 0), 1.0)
}
