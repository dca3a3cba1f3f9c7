package imageio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"tone-curve-agent/internal/tone"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (f Format) MIME() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// ValidateExt checks an upload's file name against the decoders registered
// in this package.
func ValidateExt(filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return nil
	default:
		return ErrUnsupportedFormat
	}
}

// Probe reads only the header: dimensions and the decoder's format name.
func Probe(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return image.Config{}, "", ErrUnsupportedFormat
		}
		return image.Config{}, "", fmt.Errorf("probe image: %w", err)
	}
	return cfg, format, nil
}

// Decode turns encoded image bytes into a non-premultiplied RGBA buffer,
// applying EXIF orientation.
func Decode(data []byte) (tone.PixelBuffer, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return tone.PixelBuffer{}, ErrUnsupportedFormat
		}
		return tone.PixelBuffer{}, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), nil
}

func FromImage(img image.Image) tone.PixelBuffer {
	nrgba := imaging.Clone(img)
	return tone.PixelBuffer{
		Width:  nrgba.Rect.Dx(),
		Height: nrgba.Rect.Dy(),
		Pix:    nrgba.Pix,
	}
}

// ToImage wraps buf without copying.
func ToImage(buf tone.PixelBuffer) *image.NRGBA {
	return &image.NRGBA{
		Pix:    buf.Pix,
		Stride: buf.Width * tone.BytesPerPixel,
		Rect:   image.Rect(0, 0, buf.Width, buf.Height),
	}
}

// Fit downscales buf so neither edge exceeds maxEdge. Smaller buffers and a
// non-positive maxEdge return buf unchanged.
func Fit(buf tone.PixelBuffer, maxEdge int) tone.PixelBuffer {
	if maxEdge <= 0 || (buf.Width <= maxEdge && buf.Height <= maxEdge) {
		return buf
	}
	return FromImage(imaging.Fit(ToImage(buf), maxEdge, maxEdge, imaging.Lanczos))
}

func Encode(buf tone.PixelBuffer, format Format, jpegQuality int) ([]byte, error) {
	var out bytes.Buffer
	var err error
	switch format {
	case FormatPNG:
		err = imaging.Encode(&out, ToImage(buf), imaging.PNG)
	case FormatJPEG:
		if jpegQuality <= 0 || jpegQuality > 100 {
			jpegQuality = 90
		}
		err = imaging.Encode(&out, ToImage(buf), imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return out.Bytes(), nil
}

func DataURI(data []byte, format Format) string {
	return "data:" + format.MIME() + ";base64," + base64.StdEncoding.EncodeToString(data)
}
