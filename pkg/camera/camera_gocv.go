//go:build gocv

package camera

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Camera captures frames from a local device using OpenCV.
type Camera struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	cfg    Config
	closed bool
}

// Open opens the capture device described by cfg.
func Open(cfg Config) (*Camera, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}

	var device any = cfg.Device
	if idx, err := strconv.Atoi(cfg.Device); err == nil {
		device = idx
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera: device %s not available", cfg.Device)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	return &Camera{vc: vc, cfg: cfg}, nil
}

// Capture grabs a fresh frame and returns it JPEG-encoded.
func (c *Camera) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	if c.cfg.FlushFrames > 0 {
		c.vc.Grab(c.cfg.FlushFrames)
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := c.vc.Read(&img); !ok || img.Empty() {
		return nil, fmt.Errorf("camera: failed to read frame from %s", c.cfg.Device)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, c.cfg.Quality})
	if err != nil {
		return nil, fmt.Errorf("camera: encode jpeg: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close; copy out.
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Close releases the capture device. Safe to call more than once.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.vc.Close()
}
