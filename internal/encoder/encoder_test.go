package encoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestEncodeFrameProducesJPEGAtTargetResolution(t *testing.T) {
	enc := New(Options{Width: 320, Height: 240, Quality: 80})

	// Source resolution differs from the target on purpose.
	payload, err := enc.EncodeFrame(solidFrame(640, 480, color.RGBA{R: 200, A: 255}))
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("payload is not JPEG: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 320 || got.Dy() != 240 {
		t.Fatalf("decoded size = %dx%d, want 320x240", got.Dx(), got.Dy())
	}
}

func TestEncodeFrameRejectsEmptySource(t *testing.T) {
	enc := New(Options{})
	if _, err := enc.EncodeFrame(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("nil frame error = %v, want ErrEmptyFrame", err)
	}
	if _, err := enc.EncodeFrame(image.NewRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("zero-size frame error = %v, want ErrEmptyFrame", err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	enc := New(Options{Quality: 500})
	payload, err := enc.EncodeFrame(solidFrame(10, 10, color.RGBA{G: 128, A: 255}))
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(payload)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("payload is not JPEG: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 640 || got.Dy() != 480 {
		t.Fatalf("default size = %dx%d, want 640x480", got.Dx(), got.Dy())
	}
}

func TestEncodeFrameReusesSurface(t *testing.T) {
	enc := New(Options{Width: 64, Height: 64})
	a, err := enc.EncodeFrame(solidFrame(64, 64, color.RGBA{R: 255, A: 255}))
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	b, err := enc.EncodeFrame(solidFrame(64, 64, color.RGBA{B: 255, A: 255}))
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	if a == b {
		t.Fatalf("distinct frames encoded to identical payloads")
	}
}
