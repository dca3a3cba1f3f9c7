// Package tone holds the pixel-level core of the curves editor: per-channel
// histograms and the two-point tone curve that remaps R, G and B.
package tone

import (
	"errors"
	"fmt"
)

// BytesPerPixel is the RGBA stride of a PixelBuffer.
const BytesPerPixel = 4

var ErrMalformedBuffer = errors.New("malformed pixel buffer")

// PixelBuffer is a row-major run of non-premultiplied RGBA quadruples,
// 8 bits per channel.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []byte
}

func NewPixelBuffer(width, height int) PixelBuffer {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("tone: negative buffer size %dx%d", width, height))
	}
	return PixelBuffer{Width: width, Height: height, Pix: make([]byte, width*height*BytesPerPixel)}
}

// Pixels returns the number of RGBA quadruples in the buffer.
func (b PixelBuffer) Pixels() int {
	return len(b.Pix) / BytesPerPixel
}

func (b PixelBuffer) Validate() error {
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrMalformedBuffer, b.Width, b.Height)
	}
	if len(b.Pix)%BytesPerPixel != 0 {
		return fmt.Errorf("%w: length %d is not a multiple of %d", ErrMalformedBuffer, len(b.Pix), BytesPerPixel)
	}
	if want := b.Width * b.Height * BytesPerPixel; len(b.Pix) != want {
		return fmt.Errorf("%w: length %d does not match %dx%d (want %d)", ErrMalformedBuffer, len(b.Pix), b.Width, b.Height, want)
	}
	return nil
}

// mustValidate panics on a malformed buffer. A bad buffer is a bug in
// whoever produced it, so it is never truncated or repaired here.
func (b PixelBuffer) mustValidate() {
	if err := b.Validate(); err != nil {
		panic("tone: " + err.Error())
	}
}
