// Package perception asks the remote classification service which way to
// steer, given a camera frame.
package perception

import (
	"log/slog"
	"time"
)

// Config holds perception client configuration.
type Config struct {
	// Connection
	ServerURL  string // Classification server base URL
	UploadPath string // Upload endpoint path
	FieldName  string // Multipart field carrying the image

	// Timeouts
	Timeout time.Duration

	// Retry configuration. Failed attempts are retried MaxRetries times,
	// waiting RetryDelay*attempt between them.
	MaxRetries int
	RetryDelay time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithServerURL sets the classification server URL.
// Example: "http://192.168.1.100:9090"
func WithServerURL(url string) Option {
	return func(c *Config) { c.ServerURL = url }
}

// WithUploadPath sets the upload endpoint path.
func WithUploadPath(path string) Option {
	return func(c *Config) { c.UploadPath = path }
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for a LAN classification server.
func DefaultConfig() *Config {
	return &Config{
		UploadPath: "/upload",
		FieldName:  "file",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrNoServerURL
	}
	if c.MaxRetries < 0 {
		return ErrBadRetry
	}
	return nil
}
