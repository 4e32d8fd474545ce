package qr

import (
	"image"
)

// Strategy names, in the order the default chain applies them.
const (
	StrategyDirect    = "direct"
	StrategyPadded    = "padded"
	StrategyBinarized = "binarized"
)

// Default transform parameters.
const (
	DefaultPadWidth  = 50
	DefaultThreshold = 200
)

// Transform derives the image a strategy hands to the detector from the
// previous strategy's image.
type Transform func(img image.Image) image.Image

// Strategy is one step of the fallback chain. Offset is the translation
// the transform applies to image coordinates.
type Strategy struct {
	Name      string
	Transform Transform
	Offset    image.Point
}

// Result is a located code.
type Result struct {
	// Text is the decoded payload, untouched.
	Text string
	// Polygon holds the detector's finder points in source image coordinates.
	Polygon []image.Point
	// Strategy names the step that produced the decode.
	Strategy string
}

// Locator runs an ordered chain of strategies against an image and stops at
// the first one that decodes. It holds no mutable state.
type Locator struct {
	detector   Detector
	strategies []Strategy

	padWidth  int
	threshold int
	tryHarder bool
}

// Option configures a Locator.
type Option func(*Locator)

// WithDetector replaces the ZXing detector.
func WithDetector(d Detector) Option {
	return func(l *Locator) {
		l.detector = d
	}
}

// WithPadWidth sets the border the padded strategy adds.
func WithPadWidth(px int) Option {
	return func(l *Locator) {
		l.padWidth = px
	}
}

// WithThreshold sets the binarized strategy's cut-off.
func WithThreshold(t int) Option {
	return func(l *Locator) {
		l.threshold = t
	}
}

// WithTryHarder enables the detector's slow path.
func WithTryHarder(on bool) Option {
	return func(l *Locator) {
		l.tryHarder = on
	}
}

// WithStrategies replaces the default chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(l *Locator) {
		l.strategies = strategies
	}
}

// NewLocator creates a locator with the direct, padded, binarized chain.
func NewLocator(opts ...Option) *Locator {
	l := &Locator{
		padWidth:  DefaultPadWidth,
		threshold: DefaultThreshold,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.detector == nil {
		l.detector = NewZXingDetector(l.tryHarder)
	}
	if l.strategies == nil {
		l.strategies = DefaultStrategies(l.padWidth, l.threshold)
	}

	return l
}

// DefaultStrategies returns the standard chain. Each transform receives the
// previous step's output, so binarization runs on the padded image.
func DefaultStrategies(padWidth, threshold int) []Strategy {
	return []Strategy{
		{
			Name:      StrategyDirect,
			Transform: func(img image.Image) image.Image { return img },
		},
		{
			Name:      StrategyPadded,
			Transform: func(img image.Image) image.Image { return Pad(img, padWidth) },
			Offset:    image.Pt(padWidth, padWidth),
		},
		{
			Name:      StrategyBinarized,
			Transform: func(img image.Image) image.Image { return Binarize(img, threshold) },
		},
	}
}

// Strategies returns the chain's strategy names in order.
func (l *Locator) Strategies() []string {
	names := make([]string, len(l.strategies))
	for i, s := range l.strategies {
		names[i] = s.Name
	}
	return names
}

// Locate tries each strategy in order. Exhausting the chain is reported as
// (nil, false), never as an error.
func (l *Locator) Locate(img image.Image) (*Result, bool) {
	return l.run(img, "")
}

// LocateWith applies the chain up to and including the named strategy and
// runs detection only on that step's image.
func (l *Locator) LocateWith(img image.Image, name string) (*Result, bool) {
	if !l.has(name) {
		return nil, false
	}
	return l.run(img, name)
}

func (l *Locator) run(img image.Image, only string) (*Result, bool) {
	if img == nil {
		return nil, false
	}

	current := img
	// Transforms produce zero-origin images; the source may be a sub-image.
	offset := img.Bounds().Min.Mul(-1)

	for _, s := range l.strategies {
		if s.Transform != nil {
			current = s.Transform(current)
		}
		offset = offset.Add(s.Offset)

		if only != "" && s.Name != only {
			continue
		}

		det, ok := l.detector.Detect(current)
		if ok && det.Text != "" {
			return &Result{
				Text:     det.Text,
				Polygon:  translate(det.Points, offset),
				Strategy: s.Name,
			}, true
		}

		if s.Name == only {
			break
		}
	}

	return nil, false
}

func (l *Locator) has(name string) bool {
	for _, s := range l.strategies {
		if s.Name == name {
			return true
		}
	}
	return false
}

func translate(points []image.Point, offset image.Point) []image.Point {
	if len(points) == 0 {
		return nil
	}
	out := make([]image.Point, len(points))
	for i, p := range points {
		out[i] = p.Sub(offset)
	}
	return out
}
