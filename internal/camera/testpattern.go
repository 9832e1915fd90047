package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// TestPattern is a synthetic Source producing a moving color bar. It stands
// in for a physical camera in development, demos and tests.
type TestPattern struct {
	width  int
	height int

	mu     sync.Mutex
	tick   int
	closed bool
}

// OpenTestPattern is an OpenFunc for the synthetic source. It never fails.
func OpenTestPattern(_ context.Context, cfg Config) (Source, error) {
	w, h := cfg.Width, cfg.Height
	if w <= 0 {
		w = 640
	}
	if h <= 0 {
		h = 480
	}
	return &TestPattern{width: w, height: h}, nil
}

func (p *TestPattern) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrUnavailable
	}
	p.tick++

	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	barX := (p.tick * 4) % p.width
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			c := color.RGBA{R: uint8(x * 255 / p.width), G: uint8(y * 255 / p.height), B: 64, A: 255}
			if x >= barX && x < barX+8 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (p *TestPattern) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
