package responsive

import (
	"image"
	"io"

	"gallery-tools/internal/models"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
)

// Encoder writes a resized image in one output format.
type Encoder interface {
	Encoding() models.Encoding
	Encode(w io.Writer, img image.Image) error
}

// JPEGEncoder is the fallback format every browser understands.
type JPEGEncoder struct {
	Quality int
}

func (e JPEGEncoder) Encoding() models.Encoding { return models.EncodingJPEG }

func (e JPEGEncoder) Encode(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(e.Quality))
}

// WebPEncoder produces lossy WebP without cgo.
type WebPEncoder struct {
	Quality int
}

func (e WebPEncoder) Encoding() models.Encoding { return models.EncodingWebP }

func (e WebPEncoder) Encode(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, webp.Options{Quality: e.Quality, Method: 4})
}

// DefaultEncoders returns the modern format first, then the fallback.
func DefaultEncoders(webpQuality, jpegQuality int) []Encoder {
	return []Encoder{
		WebPEncoder{Quality: webpQuality},
		JPEGEncoder{Quality: jpegQuality},
	}
}
