package ocr

import (
	"fmt"
	"image/png"
	"os"
)

// Normalizer converts recognized line geometry from rendered-image pixels
// into document points. The vertical axis flips: image origin is top-left,
// document origin is bottom-left. The flip uses the rendered image's own
// pixel height, so pages of differing sizes normalize correctly.
type Normalizer struct {
	DPI int
}

// scale is the pixel-to-point factor for the normalizer's DPI.
func (n Normalizer) scale() float64 { return 72.0 / float64(n.DPI) }

// Point maps one image-pixel coordinate into document points given the
// image pixel height.
func (n Normalizer) Point(x, y, imageHeight float64) (float64, float64) {
	s := n.scale()
	return x * s, (imageHeight - y) * s
}

// Normalize converts recognized lines from the given page image into
// annotations in document points. The image is consulted only for its
// dimensions.
func (n Normalizer) Normalize(imagePath string, lines []Line) ([]Annotation, error) {
	if n.DPI <= 0 {
		return nil, fmt.Errorf("normalizer dpi %d must be positive", n.DPI)
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open page image: %w", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode page image header: %w", err)
	}
	return n.normalize(float64(cfg.Height), lines), nil
}

func (n Normalizer) normalize(imageHeight float64, lines []Line) []Annotation {
	s := n.scale()
	anns := make([]Annotation, 0, len(lines))
	for _, line := range lines {
		b := line.Polygon.Bounds()
		anns = append(anns, Annotation{
			Text:       line.Text,
			Confidence: line.Confidence,
			X:          b.X1 * s,
			Y:          (imageHeight - b.Y2) * s,
			Width:      (b.X2 - b.X1) * s,
			Height:     (b.Y2 - b.Y1) * s,
		})
	}
	return anns
}
