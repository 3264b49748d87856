// Package media prepares captured photos for upload: compression to a
// bounded size and content-addressed local staging.
package media

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
	"github.com/theonlywayisdigital/donedex-sub004/internal/logging"
)

const (
	// DefaultMaxDimension bounds the longer image side after compression.
	DefaultMaxDimension = 1920
	// DefaultJPEGQuality is the re-encode quality.
	DefaultJPEGQuality = 80
)

// Result is a compressed photo ready for upload.
type Result struct {
	Data   []byte
	Width  int
	Height int
}

// Compressor downscales and re-encodes photos as JPEG. Inputs may be
// jpeg, png, gif, or webp; EXIF orientation is applied during decode.
type Compressor struct {
	maxDimension int
	quality      int
}

// NewCompressor returns a compressor. Non-positive arguments take the
// defaults.
func NewCompressor(maxDimension, quality int) *Compressor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Compressor{maxDimension: maxDimension, quality: quality}
}

// Compress decodes, downscales to the max dimension with Lanczos, and
// re-encodes as JPEG. A JPEG source whose re-encode came out larger is
// returned as-is; non-JPEG sources keep the conversion regardless,
// because the upload path names the blob with a .jpg extension.
func (c *Compressor) Compress(r io.Reader) (*Result, error) {
	original, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrMediaDecodeFailed, "failed to read photo", err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(original))
	if err != nil {
		return nil, errors.Wrap(errors.ErrMediaDecodeFailed, "unrecognized photo format", err)
	}
	img, err := imaging.Decode(bytes.NewReader(original), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrMediaDecodeFailed, "failed to decode photo", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > c.maxDimension || bounds.Dy() > c.maxDimension {
		img = imaging.Fit(img, c.maxDimension, c.maxDimension, imaging.Lanczos)
		bounds = img.Bounds()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, errors.Wrap(errors.ErrMediaDecodeFailed, "failed to encode photo", err)
	}

	if format == "jpeg" && buf.Len() >= len(original) {
		logging.Debug("photo compression skipped, original smaller", map[string]interface{}{
			"original_bytes": len(original),
			"encoded_bytes":  buf.Len(),
		})
		return &Result{Data: original, Width: bounds.Dx(), Height: bounds.Dy()}, nil
	}

	logging.Debug("photo compressed", map[string]interface{}{
		"original_bytes":   len(original),
		"compressed_bytes": buf.Len(),
		"width":            bounds.Dx(),
		"height":           bounds.Dy(),
		"source_format":    format,
	})
	return &Result{Data: buf.Bytes(), Width: bounds.Dx(), Height: bounds.Dy()}, nil
}
