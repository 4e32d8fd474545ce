package qr

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"

	"github.com/disintegration/imaging"

	"github.com/TheMichaelB/echoseal/internal/models"
)

// DecodeImage reads a PNG, JPEG, GIF, BMP or TIFF image, honouring EXIF
// orientation so phone photos are upright.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidImage, err)
	}
	return img, nil
}

// OpenImage decodes the image file at path.
func OpenImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open image: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidImage, err)
	}
	return img, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
