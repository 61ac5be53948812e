package classify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/directive"
)

// Model runs one forward pass on an encoded image and returns the raw
// class scores. Implementations must be safe for concurrent use.
type Model interface {
	Infer(img []byte) ([]float32, error)
	Close() error
}

// Result is the outcome of one classification.
type Result struct {
	ClassIndex int                 `json:"class_index"`
	Directive  directive.Directive `json:"directive"`
	Scores     []float32           `json:"scores"`
	LatencyMs  int64               `json:"latency_ms"`
}

// Classifier maps model output onto directives.
type Classifier struct {
	model  Model
	labels directive.Table
	logger *slog.Logger
}

// New creates a classifier around a loaded model.
func New(model Model, labels directive.Table, logger *slog.Logger) (*Classifier, error) {
	if model == nil {
		return nil, fmt.Errorf("classify: model required")
	}
	if err := labels.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		model:  model,
		labels: labels,
		logger: log.Component(logger, "classify"),
	}, nil
}

// Open loads the configured backend and wraps it in a Classifier.
func Open(cfg Config, logger *slog.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		model Model
		err   error
	)
	switch cfg.Backend {
	case BackendONNX:
		model, err = NewONNX(cfg)
	default:
		model, err = NewGoCV(cfg)
	}
	if err != nil {
		return nil, err
	}
	return New(model, cfg.Labels, logger)
}

// Labels returns the index to directive table.
func (c *Classifier) Labels() directive.Table {
	return c.labels
}

// Classify runs the model on an encoded image. Unmapped class indices map
// to the table's default directive.
func (c *Classifier) Classify(ctx context.Context, img []byte) (Result, error) {
	if len(img) == 0 {
		return Result{}, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	scores, err := c.model.Infer(img)
	if err != nil {
		return Result{}, err
	}

	idx := ArgMax(scores)
	if idx < 0 {
		return Result{}, fmt.Errorf("%w: model returned no scores", ErrInference)
	}

	res := Result{
		ClassIndex: idx,
		Directive:  c.labels.Lookup(idx),
		Scores:     scores,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
	c.logger.Debug("classified",
		"class", res.ClassIndex,
		"directive", res.Directive.String(),
		"latency_ms", res.LatencyMs,
	)
	return res, nil
}

// Close releases the model.
func (c *Classifier) Close() error {
	return c.model.Close()
}

// ArgMax returns the index of the largest score, the first one on ties,
// or -1 for an empty slice.
func ArgMax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i, s := range scores[1:] {
		if s > scores[best] {
			best = i + 1
		}
	}
	return best
}
