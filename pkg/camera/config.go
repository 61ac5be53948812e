// Package camera captures JPEG frames for the perception client.
package camera

// Config holds camera capture parameters.
type Config struct {
	// Device is a V4L2 index ("0") or a device path / stream URL.
	Device string `json:"device"`

	Width   int `json:"width"`   // Frame width in pixels
	Height  int `json:"height"`  // Frame height in pixels
	Quality int `json:"quality"` // JPEG quality 1-100

	// FlushFrames are grabbed and discarded before each capture so the
	// returned frame reflects the current sensor position rather than a
	// buffered one.
	FlushFrames int `json:"flush_frames"`
}

// DefaultConfig returns settings matching the reference USB camera.
func DefaultConfig() Config {
	return Config{
		Device:      "0",
		Width:       640,
		Height:      480,
		Quality:     85,
		FlushFrames: 4,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device is required")
	}
	if c.Width < 64 || c.Width > 4096 {
		errors = append(errors, "width must be between 64 and 4096")
	}
	if c.Height < 64 || c.Height > 4096 {
		errors = append(errors, "height must be between 64 and 4096")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.FlushFrames < 0 || c.FlushFrames > 30 {
		errors = append(errors, "flush_frames must be between 0 and 30")
	}

	return errors
}
