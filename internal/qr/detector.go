package qr

import (
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Detection is a single decoded code as reported by a Detector. Points are
// relative to the top-left corner of the image the detector was given.
type Detection struct {
	Text   string
	Points []image.Point
}

// Detector finds and decodes one QR code in an image.
type Detector interface {
	Detect(img image.Image) (Detection, bool)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(img image.Image) (Detection, bool)

// Detect calls f(img).
func (f DetectorFunc) Detect(img image.Image) (Detection, bool) {
	return f(img)
}

// ZXingDetector decodes QR codes with the gozxing port of ZXing.
type ZXingDetector struct {
	tryHarder bool
}

// NewZXingDetector creates a detector. tryHarder trades speed for accuracy
// on busy images.
func NewZXingDetector(tryHarder bool) *ZXingDetector {
	return &ZXingDetector{tryHarder: tryHarder}
}

// Detect returns the decoded text and finder points. Any decoder failure
// is reported as not found.
func (d *ZXingDetector) Detect(img image.Image) (Detection, bool) {
	if img == nil || img.Bounds().Empty() {
		return Detection{}, false
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Detection{}, false
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if d.tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	// Readers keep per-call state, so each Detect gets its own.
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil || result == nil || result.GetText() == "" {
		return Detection{}, false
	}

	points := make([]image.Point, 0, len(result.GetResultPoints()))
	for _, p := range result.GetResultPoints() {
		if p == nil {
			continue
		}
		points = append(points, image.Pt(
			int(math.Round(p.GetX())),
			int(math.Round(p.GetY())),
		))
	}

	return Detection{Text: result.GetText(), Points: points}, true
}
