// Package imaging detects image formats and re-encodes outputs to WebP.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"
	"strings"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// Output formats accepted by Normalize.
const (
	FormatOriginal = "original"
	FormatWebP     = "webp"
)

// ErrNotImage is returned when data is not a recognised image.
var ErrNotImage = errors.New("imaging: data is not an image")

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Image is an encoded image with its content type.
type Image struct {
	Data     []byte
	MimeType string
	Ext      string
}

// Detect sniffs the content type of data.
func Detect(data []byte) (*Image, error) {
	mimeType := http.DetectContentType(data)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	ext, ok := extensions[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mimeType)
	}
	return &Image{Data: data, MimeType: mimeType, Ext: ext}, nil
}

// Normalize detects data and, for FormatWebP, re-encodes PNG and JPEG input
// as lossy WebP at the given quality.
func Normalize(data []byte, format string, quality int) (*Image, error) {
	img, err := Detect(data)
	if err != nil {
		return nil, err
	}
	if format != FormatWebP || img.MimeType == "image/webp" || img.MimeType == "image/gif" {
		return img, nil
	}

	webpData, err := ToWebP(data, quality)
	if err != nil {
		return nil, err
	}
	return &Image{Data: webpData, MimeType: "image/webp", Ext: "webp"}, nil
}

// ToWebP decodes a PNG or JPEG image and encodes it as lossy WebP.
func ToWebP(data []byte, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}

	if quality <= 0 || quality > 100 {
		quality = 90
	}
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return nil, fmt.Errorf("imaging: webp options: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, src, options); err != nil {
		return nil, fmt.Errorf("imaging: encode webp: %w", err)
	}
	return buf.Bytes(), nil
}
