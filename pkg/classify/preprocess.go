package classify

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"

	"golang.org/x/image/draw"
)

// Tensor is a preprocessed model input.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Preprocess decodes an encoded image, resizes it to w x h with bilinear
// filtering, scales pixels to [0,1] and lays the result out as a batch of
// one in the requested layout and channel order.
func Preprocess(data []byte, w, h int, layout, order string) (Tensor, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if src.Bounds().Empty() {
		return Tensor{}, ErrDecode
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	// channel index per output plane
	ch := [3]int{2, 1, 0} // BGR
	if order == OrderRGB {
		ch = [3]int{0, 1, 2}
	}

	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := dst.PixOffset(x, y)
			px := dst.Pix[p : p+3]
			for c := 0; c < 3; c++ {
				v := float32(px[ch[c]]) / 255
				if layout == LayoutNHWC {
					out[(y*w+x)*3+c] = v
				} else {
					out[c*plane+y*w+x] = v
				}
			}
		}
	}

	shape := []int{1, 3, h, w}
	if layout == LayoutNHWC {
		shape = []int{1, h, w, 3}
	}
	return Tensor{Shape: shape, Data: out}, nil
}
