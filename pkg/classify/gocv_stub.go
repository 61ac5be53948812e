//go:build !gocv

package classify

import (
	"fmt"
	"os"
)

const hasGoCV = false

// GoCVModel is unavailable without the gocv build tag.
type GoCVModel struct{}

// NewGoCV reports ErrUnavailable. Build with -tags gocv to link OpenCV.
func NewGoCV(cfg Config) (*GoCVModel, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNoModel, cfg.ModelPath)
	}
	return nil, fmt.Errorf("%w: %s (build with -tags gocv)", ErrUnavailable, BackendGoCV)
}

// Infer always fails.
func (m *GoCVModel) Infer([]byte) ([]float32, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (m *GoCVModel) Close() error { return nil }

var _ Model = (*GoCVModel)(nil)
