//go:build !gocv

package camera

import (
	"context"
	"fmt"
)

// Camera is a placeholder in builds without OpenCV. Build with -tags gocv
// for device capture.
type Camera struct{}

// Open validates cfg and reports ErrUnavailable.
func Open(cfg Config) (*Camera, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}
	return nil, fmt.Errorf("%w: %s (build with -tags gocv)", ErrUnavailable, cfg.Device)
}

// Capture always fails.
func (c *Camera) Capture(ctx context.Context) ([]byte, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (c *Camera) Close() error { return nil }
