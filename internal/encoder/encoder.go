package encoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

var ErrEmptyFrame = errors.New("empty source frame")

// Options configures the raster target and JPEG quality factor.
type Options struct {
	Width   int
	Height  int
	Quality int
}

// Encoder rasterizes video frames onto a reusable offscreen surface at the
// target resolution and serializes them to base64 JPEG. Stateless per call
// apart from the reused buffers, so it is not safe for concurrent use; the
// capture loop is its only caller.
type Encoder struct {
	opts    Options
	surface *image.RGBA
	jpegBuf bytes.Buffer
}

func New(opts Options) *Encoder {
	if opts.Width <= 0 {
		opts.Width = 640
	}
	if opts.Height <= 0 {
		opts.Height = 480
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 70
	}
	return &Encoder{
		opts:    opts,
		surface: image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
	}
}

// EncodeFrame scales src onto the offscreen surface and returns the frame
// as a base64-encoded JPEG payload.
func (e *Encoder) EncodeFrame(src image.Image) (string, error) {
	if src == nil {
		return "", ErrEmptyFrame
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return "", ErrEmptyFrame
	}

	draw.ApproxBiLinear.Scale(e.surface, e.surface.Bounds(), src, b, draw.Src, nil)

	e.jpegBuf.Reset()
	if err := jpeg.Encode(&e.jpegBuf, e.surface, &jpeg.Options{Quality: e.opts.Quality}); err != nil {
		return "", fmt.Errorf("jpeg encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(e.jpegBuf.Bytes()), nil
}
