// Package signature decodes captured signature images and detects blank
// canvases before anything is uploaded.
package signature

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
)

var (
	// ErrEmpty means the canvas carries no stroke.
	ErrEmpty = errors.New("signature is empty")
	// ErrInvalid means the payload is not a PNG or JPEG image.
	ErrInvalid = errors.New("signature is not a valid image")
	// ErrTooLarge means the image declares dimensions beyond MaxSide.
	ErrTooLarge = errors.New("signature image too large")
)

// MaxSide bounds each dimension of a decoded signature. The header is
// checked before any pixel buffer is allocated.
const MaxSide = 4096

// Image is a decoded, non-blank signature ready to upload.
type Image struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Extension returns the file extension matching ContentType.
func (i Image) Extension() string {
	if i.ContentType == "image/jpeg" {
		return ".jpg"
	}
	return ".png"
}

// ParseDataURL decodes a "data:image/png;base64,..." string as produced by
// canvas.toDataURL and validates it with Decode.
func ParseDataURL(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Image{}, ErrEmpty
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return Image{}, fmt.Errorf("%w: expected base64 data url", ErrInvalid)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Decode(data)
}

// Decode sniffs and decodes raw image bytes and rejects blank canvases.
func Decode(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmpty
	}
	contentType := http.DetectContentType(data)
	if contentType != "image/png" && contentType != "image/jpeg" {
		return Image{}, fmt.Errorf("%w: detected %s", ErrInvalid, contentType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.Width > MaxSide || cfg.Height > MaxSide {
		return Image{}, fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrTooLarge, cfg.Width, cfg.Height, MaxSide, MaxSide)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	bounds := img.Bounds()
	if bounds.Empty() || Blank(img) {
		return Image{}, ErrEmpty
	}
	return Image{Data: data, ContentType: contentType, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// inkThreshold is how far below full white (per 16-bit channel) a pixel must
// be to count as ink. JPEG noise on a white canvas stays above it.
const inkThreshold = 0xffff - 0x1000

// Blank reports whether every pixel is transparent or near-white.
func Blank(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			// RGBA is alpha-premultiplied; composite over white before comparing.
			bg := 0xffff - a
			if r+bg < inkThreshold || g+bg < inkThreshold || bl+bg < inkThreshold {
				return false
			}
		}
	}
	return true
}
