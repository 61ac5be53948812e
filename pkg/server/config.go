package server

import (
	"fmt"
	"log/slog"
)

// Config holds the classification service settings.
type Config struct {
	// Addr is the listen address, e.g. ":9090".
	Addr string `json:"addr"`

	// UploadDir is where uploads are kept for review. Empty disables the
	// audit trail.
	UploadDir string `json:"upload_dir"`

	// StrictAudit fails the request when the upload cannot be stored.
	// Otherwise the failure is logged and classification continues.
	StrictAudit bool `json:"strict_audit"`

	// FieldName is the multipart field carrying the image.
	FieldName string `json:"field_name"`

	// BodyLimit caps the request size in bytes.
	BodyLimit int `json:"body_limit"`

	// Backend is reported by /healthz.
	Backend string `json:"-"`

	// Debug enables request logging.
	Debug bool `json:"debug"`

	Logger *slog.Logger `json:"-"`
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		Addr:      ":9090",
		UploadDir: "uploads",
		FieldName: "file",
		BodyLimit: 10 * 1024 * 1024,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("server: addr required")
	}
	if c.FieldName == "" {
		return fmt.Errorf("server: field name required")
	}
	if c.BodyLimit <= 0 {
		return fmt.Errorf("server: body limit must be positive, got %d", c.BodyLimit)
	}
	if c.StrictAudit && c.UploadDir == "" {
		return fmt.Errorf("server: strict audit needs an upload dir")
	}
	return nil
}
