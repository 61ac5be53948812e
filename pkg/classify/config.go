// Package classify turns a camera image into a steering directive using an
// image classification model.
package classify

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/pkg/directive"
)

// Backend names.
const (
	BackendGoCV = "gocv"
	BackendONNX = "onnx"
)

// Tensor layouts.
const (
	LayoutNCHW = "nchw"
	LayoutNHWC = "nhwc"
)

// Channel orders.
const (
	OrderBGR = "bgr"
	OrderRGB = "rgb"
)

// Config holds classifier configuration.
type Config struct {
	Backend      string          `json:"backend"`
	ModelPath    string          `json:"model_path"`
	InputWidth   int             `json:"input_width"`
	InputHeight  int             `json:"input_height"`
	Layout       string          `json:"layout"`
	ChannelOrder string          `json:"channel_order"`
	Labels       directive.Table `json:"labels"`
}

// DefaultConfig returns the settings the stock direction model expects:
// a [1,64,64,3] channels-last BGR tensor scaled to [0,1].
func DefaultConfig() Config {
	return Config{
		Backend:      BackendONNX,
		ModelPath:    "models/direction.onnx",
		InputWidth:   64,
		InputHeight:  64,
		Layout:       LayoutNHWC,
		ChannelOrder: OrderBGR,
		Labels:       directive.DefaultTable(),
	}
}

// LoadConfig reads a JSON config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := config.LoadJSON(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(c.Backend)
	c.Layout = strings.ToLower(c.Layout)
	c.ChannelOrder = strings.ToLower(c.ChannelOrder)

	if c.Backend != BackendGoCV && c.Backend != BackendONNX {
		return fmt.Errorf("classify: unknown backend %q", c.Backend)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("classify: model_path required")
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("classify: input size must be positive, got %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.Layout != LayoutNCHW && c.Layout != LayoutNHWC {
		return fmt.Errorf("classify: unknown layout %q", c.Layout)
	}
	if c.ChannelOrder != OrderBGR && c.ChannelOrder != OrderRGB {
		return fmt.Errorf("classify: unknown channel order %q", c.ChannelOrder)
	}
	return c.Labels.Validate()
}
