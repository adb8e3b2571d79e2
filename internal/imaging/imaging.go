// Package imaging turns picked images into compact base64 payloads that can be
// embedded inline in note markup.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"strings"
	"unicode"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Defaults for embedded images.
const (
	DefaultMaxDimension = 800
	DefaultQuality      = 80
)

// ErrUnsupportedImage is returned for sources that cannot be decoded.
var ErrUnsupportedImage = errors.New("imaging: unsupported or corrupt image")

// Encoder downscales and recompresses images.
type Encoder struct {
	MaxDimension int
	Quality      int
}

// Payload is an encoded image ready for embedding.
type Payload struct {
	Data   string
	Width  int
	Height int
}

// NewEncoder returns an Encoder, substituting defaults for non-positive values.
func NewEncoder(maxDimension, quality int) *Encoder {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Encoder{MaxDimension: maxDimension, Quality: quality}
}

// Encode decodes src, scales it so neither side exceeds MaxDimension and
// returns it as a base64 JPEG.
func (e *Encoder) Encode(src io.Reader) (Payload, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	img = e.scale(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.Quality}); err != nil {
		return Payload{}, fmt.Errorf("imaging: encode jpeg: %w", err)
	}
	b := img.Bounds()
	return Payload{
		Data:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

func (e *Encoder) scale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy(), e.MaxDimension)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Fit returns w×h scaled down so the longer side equals limit, keeping the
// aspect ratio. Sizes already within limit are returned unchanged.
func Fit(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}

// DecodePayload reverses Encode. Embedded whitespace is ignored.
func DecodePayload(payload string) (image.Image, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)
	raw, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}
