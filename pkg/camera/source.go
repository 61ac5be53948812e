package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrClosed is returned by Capture after Close.
	ErrClosed = errors.New("camera: closed")

	// ErrUnavailable is returned by Open in builds without OpenCV.
	ErrUnavailable = errors.New("camera: capture not available in this build")
)

// Source produces one encoded JPEG frame per call.
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
}

// FileSource serves the same JPEG file on every capture. Used for dry runs
// without a camera attached.
type FileSource struct {
	Path string
}

// Capture reads the file.
func (f FileSource) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}
	return data, nil
}

// Tap wraps src so every captured frame is also passed to fn.
func Tap(src Source, fn func([]byte)) Source {
	return &tap{Source: src, fn: fn}
}

type tap struct {
	Source
	fn func([]byte)
}

func (t *tap) Capture(ctx context.Context) ([]byte, error) {
	frame, err := t.Source.Capture(ctx)
	if err == nil && t.fn != nil {
		t.fn(frame)
	}
	return frame, err
}

// Close closes the wrapped source if it has a Close method.
func (t *tap) Close() error {
	if c, ok := t.Source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Ensure implementations satisfy Source.
var (
	_ Source = (*Camera)(nil)
	_ Source = FileSource{}
	_ Source = (*tap)(nil)
)
