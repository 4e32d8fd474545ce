package qr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Pad surrounds img with a uniform white border width pixels wide,
// restoring the quiet zone a tightly cropped photo loses.
func Pad(img image.Image, width int) *image.NRGBA {
	b := img.Bounds()
	if width <= 0 {
		return imaging.Clone(img)
	}

	canvas := imaging.New(b.Dx()+2*width, b.Dy()+2*width, color.White)
	return imaging.Paste(canvas, img, image.Pt(width, width))
}

// Binarize converts img to grayscale, applies a global threshold and
// inverts polarity, so light modules on a dark background become dark
// modules on light. Pixels brighter than threshold count as light.
func Binarize(img image.Image, threshold int) *image.NRGBA {
	gray := imaging.Grayscale(img)

	bw := imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		if int(c.R) > threshold {
			return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.NRGBA{A: 255}
	})

	return imaging.Invert(bw)
}
