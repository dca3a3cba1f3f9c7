package imageio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"tone-curve-agent/internal/tone"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 77, A: 200})
		}
	}
	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		t.Fatal(err)
	}
	return b.Bytes()
}

func TestDecodeKeepsNonPremultipliedRGBA(t *testing.T) {
	buf, err := Decode(encodePNG(t, 4, 3))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := buf.Validate(); err != nil {
		t.Fatal(err)
	}
	if buf.Width != 4 || buf.Height != 3 {
		t.Fatalf("size=%dx%d", buf.Width, buf.Height)
	}
	i := (2*buf.Width + 3) * 4
	if got := buf.Pix[i : i+4]; !bytes.Equal(got, []byte{30, 20, 77, 200}) {
		t.Fatalf("pixel(3,2)=%v", got)
	}
}

func TestProbe(t *testing.T) {
	cfg, format, err := Probe(encodePNG(t, 9, 5))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 9 || cfg.Height != 5 || format != "png" {
		t.Fatalf("probe=%+v %q", cfg, format)
	}
	if _, _, err := Probe([]byte("not an image")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err=%v", err)
	}
}

func TestEncodeRoundTripPNG(t *testing.T) {
	src, err := Decode(encodePNG(t, 6, 6))
	if err != nil {
		t.Fatal(err)
	}
	data, err := Encode(src, FormatPNG, 0)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back.Pix, src.Pix) {
		t.Fatal("png round trip changed pixels")
	}
}

func TestEncodeJPEG(t *testing.T) {
	data, err := Encode(tone.NewPixelBuffer(8, 8), FormatJPEG, 75)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatal("output is not a JPEG")
	}
}

func TestFit(t *testing.T) {
	buf := tone.NewPixelBuffer(400, 100)
	small := Fit(buf, 200)
	if small.Width != 200 || small.Height != 50 {
		t.Fatalf("fit=%dx%d", small.Width, small.Height)
	}
	if err := small.Validate(); err != nil {
		t.Fatal(err)
	}
	if same := Fit(buf, 0); same.Width != 400 {
		t.Fatalf("maxEdge 0 resized to %d", same.Width)
	}
	if same := Fit(buf, 500); same.Width != 400 {
		t.Fatalf("smaller image resized to %d", same.Width)
	}
}

func TestDataURI(t *testing.T) {
	uri := DataURI([]byte{1, 2, 3}, FormatPNG)
	prefix := "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("uri=%q", uri)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil || !bytes.Equal(raw, []byte{1, 2, 3}) {
		t.Fatalf("payload=%v err=%v", raw, err)
	}
}

func TestParseFormatAndValidateExt(t *testing.T) {
	if f, err := ParseFormat("JPG"); err != nil || f != FormatJPEG {
		t.Fatalf("ParseFormat=%q %v", f, err)
	}
	if _, err := ParseFormat("gif"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err=%v", err)
	}
	for _, name := range []string{"a.PNG", "b.webp", "c.tiff", "d.bmp"} {
		if err := ValidateExt(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if err := ValidateExt("e.svg"); err == nil {
		t.Fatal("svg accepted")
	}
}
