package camera

import (
	"context"
	"errors"
	"image"
)

// ErrUnavailable reports that no capture device could be acquired. Callers
// surface it as a fatal CAMERA_FAILURE.
var ErrUnavailable = errors.New("camera unavailable")

// Config carries acquisition hints. Devices are free to pick the nearest
// supported mode.
type Config struct {
	Width  int
	Height int
	FPS    int
}

// Source is a live video source. ReadFrame returns the most recent frame;
// it does not pace callers, the capture scheduler owns the cadence. A
// Source is exclusively owned by one scheduler run and is closed on stop;
// restarting a session requires a fresh acquisition.
type Source interface {
	ReadFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// OpenFunc acquires a device. Implementations return ErrUnavailable (or a
// wrapped permission error) when no device can be opened.
type OpenFunc func(ctx context.Context, cfg Config) (Source, error)
