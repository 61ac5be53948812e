//go:build gocv

package classify

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

const hasGoCV = true

// GoCVModel runs an ONNX classifier through OpenCV's DNN module.
type GoCVModel struct {
	net       gocv.Net
	mu        sync.Mutex
	inputSize image.Point
	nhwc      bool
	swapRB    bool
}

// NewGoCV loads cfg.ModelPath with OpenCV.
func NewGoCV(cfg Config) (*GoCVModel, error) {
	// Check if model file exists
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNoModel, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &GoCVModel{
		net:       net,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
		nhwc:      cfg.Layout == LayoutNHWC,
		swapRB:    cfg.ChannelOrder == OrderRGB,
	}, nil
}

// Infer decodes the image, scales it to [0,1] at the model input size and
// runs one forward pass.
func (m *GoCVModel) Infer(data []byte) ([]float32, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, ErrDecode
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var blob gocv.Mat
	if m.nhwc {
		blob, err = m.nhwcBlob(img)
		if err != nil {
			return nil, err
		}
	} else {
		blob = gocv.BlobFromImage(img, 1.0/255.0, m.inputSize, gocv.NewScalar(0, 0, 0, 0), m.swapRB, false)
	}
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("%w: empty output", ErrInference)
	}
	scores, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	// DataPtrFloat32 aliases native memory freed on Close.
	return append([]float32(nil), scores...), nil
}

// nhwcBlob builds a [1,H,W,3] float tensor for models exported with
// channels-last input.
func (m *GoCVModel) nhwcBlob(img gocv.Mat) (gocv.Mat, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, m.inputSize, 0, 0, gocv.InterpolationLinear)

	if m.swapRB {
		gocv.CvtColor(resized, &resized, gocv.ColorBGRToRGB)
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	resized.ConvertToWithParams(&scaled, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	sizes := []int{1, m.inputSize.Y, m.inputSize.X, 3}
	blob, err := gocv.NewMatWithSizesFromBytes(sizes, gocv.MatTypeCV32F, scaled.ToBytes())
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return blob, nil
}

// Close releases the network.
func (m *GoCVModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

var _ Model = (*GoCVModel)(nil)
