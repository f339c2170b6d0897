// Package encode serializes decoded page images to compressed PNG buffers.
package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// Encoder serializes one decoded page image.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

// PNG encodes pages at a fixed compression level. The default is zlib's
// moderate level rather than best compression: encode CPU multiplies by page
// count per request, and the size win at max effort is small.
type PNG struct {
	Level png.CompressionLevel
}

// NewPNG returns an encoder at the default compression level.
func NewPNG() *PNG {
	return &PNG{Level: png.DefaultCompression}
}

// Encode serializes img to PNG bytes.
func (p *PNG) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(p.Level)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
