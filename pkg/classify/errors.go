package classify

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrEmptyImage is returned for a zero-length payload.
	ErrEmptyImage = errors.New("classify: empty image")

	// ErrDecode is returned when the payload is not a decodable image.
	ErrDecode = errors.New("classify: cannot decode image")

	// ErrInference is returned when the model fails to produce scores.
	ErrInference = errors.New("classify: inference failed")

	// ErrNoModel is returned when the model file is missing.
	ErrNoModel = errors.New("classify: model file not found")

	// ErrUnavailable is returned for a backend not compiled into the binary.
	ErrUnavailable = errors.New("classify: backend not available in this build")
)
