package classify

import (
	"fmt"
	"os"
	"sync"

	"github.com/owulveryck/onnx-go"
	"github.com/owulveryck/onnx-go/backend/x/gorgonnx"
	"gorgonia.org/tensor"
)

// ONNXModel runs an ONNX classifier in pure Go (onnx-go with the Gorgonia
// backend). It needs no cgo and is the default backend.
type ONNXModel struct {
	mu      sync.Mutex
	backend *gorgonnx.Graph
	model   *onnx.Model
	cfg     Config
}

// NewONNX loads cfg.ModelPath.
func NewONNX(cfg Config) (*ONNXModel, error) {
	b, err := os.ReadFile(cfg.ModelPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoModel, cfg.ModelPath)
		}
		return nil, err
	}

	backend := gorgonnx.NewGraph()
	model := onnx.NewModel(backend)
	if err := model.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("failed to load model from %s: %w", cfg.ModelPath, err)
	}

	return &ONNXModel{backend: backend, model: model, cfg: cfg}, nil
}

// Infer preprocesses the image and runs one forward pass.
func (m *ONNXModel) Infer(data []byte) ([]float32, error) {
	in, err := Preprocess(data, m.cfg.InputWidth, m.cfg.InputHeight, m.cfg.Layout, m.cfg.ChannelOrder)
	if err != nil {
		return nil, err
	}

	t := tensor.New(
		tensor.WithShape(in.Shape...),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(in.Data),
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.model.SetInput(0, t); err != nil {
		return nil, fmt.Errorf("%w: set input: %v", ErrInference, err)
	}
	if err := m.backend.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	outputs, err := m.model.GetOutputTensors()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs", ErrInference)
	}

	scores, ok := outputs[0].Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("%w: output is %T, want []float32", ErrInference, outputs[0].Data())
	}
	return append([]float32(nil), scores...), nil
}

// Close is a no-op; the graph is garbage collected.
func (m *ONNXModel) Close() error {
	return nil
}

var _ Model = (*ONNXModel)(nil)
