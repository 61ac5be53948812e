package perception

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-rover/internal/httpc"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/directive"
)

const uploadFilename = "frame.jpg"

// Client captures frames and sends them to the classification service.
type Client struct {
	config *Config
	source camera.Source
	http   *http.Client
	logger *slog.Logger
	url    string
}

// NewClient creates a perception client reading frames from source.
func NewClient(source camera.Source, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		source: source,
		http:   httpc.NewClient(cfg.Timeout),
		logger: log.Component(cfg.Logger, "perception.client"),
		url:    strings.TrimRight(cfg.ServerURL, "/") + cfg.UploadPath,
	}, nil
}

// Perceive captures one frame and returns the server's directive.
func (c *Client) Perceive(ctx context.Context) (directive.Directive, error) {
	if c.source == nil {
		return directive.Unknown, fmt.Errorf("perception: no frame source")
	}

	frame, err := c.source.Capture(ctx)
	if err != nil {
		return directive.Unknown, fmt.Errorf("perception: capture: %w", err)
	}
	return c.Classify(ctx, frame)
}

// Classify uploads an encoded image and parses the returned directive.
func (c *Client) Classify(ctx context.Context, jpeg []byte) (directive.Directive, error) {
	if len(jpeg) == 0 {
		return directive.Unknown, ErrEmptyFrame
	}

	body, contentType, err := httpc.MultipartFile(c.config.FieldName, uploadFilename, "image/jpeg", jpeg)
	if err != nil {
		return directive.Unknown, fmt.Errorf("perception: %w", err)
	}

	start := time.Now()
	respBody, err := c.doWithRetry(ctx, body, contentType)
	if err != nil {
		return directive.Unknown, err
	}

	d, err := ParseResponse(respBody)
	c.logger.Debug("classified frame",
		"directive", d.String(),
		"bytes", len(jpeg),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return d, err
}

// Close releases the frame source if it holds resources.
func (c *Client) Close() error {
	if cl, ok := c.source.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// doWithRetry performs the upload with retry logic and returns the 2xx body.
func (c *Client) doWithRetry(ctx context.Context, body []byte, contentType string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("perception: create request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json, text/plain")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("perception: upload: %w", err)
			c.logger.Warn("upload failed, retrying",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		data, readErr := httpc.ReadBody(resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			se := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
			if !se.IsRetryable() {
				return nil, se
			}
			lastErr = se
			c.logger.Warn("retrying upload",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}
		if readErr != nil {
			lastErr = fmt.Errorf("perception: read response: %w", readErr)
			continue
		}

		return data, nil
	}

	return nil, lastErr
}
