package imagecodec

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for tensor operations.
var (
	ErrInvalidTensor       = errors.New("imagecodec: tensor shape does not match data")
	ErrEmptyBatch          = errors.New("imagecodec: tensor batch has no frames")
	ErrUnsupportedChannels = errors.New("imagecodec: unsupported channel count (want 1, 3 or 4)")
)

// Tensor is a row-major image batch laid out as [N, H, W, C].
type Tensor struct {
	Shape [4]int
	Data  []float32
}

// NewTensor returns a validated tensor over data (not copied).
func NewTensor(n, h, w, c int, data []float32) (*Tensor, error) {
	t := &Tensor{Shape: [4]int{n, h, w, c}, Data: data}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the shape against the data length and channel count.
func (t *Tensor) Validate() error {
	if t == nil {
		return ErrEmptyBatch
	}
	n, h, w, c := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	if n <= 0 {
		return ErrEmptyBatch
	}
	if c != 1 && c != 3 && c != 4 {
		return fmt.Errorf("%w: %d", ErrUnsupportedChannels, c)
	}
	if h <= 0 || w <= 0 || len(t.Data) != n*h*w*c {
		return fmt.Errorf("%w: shape %v, %d values", ErrInvalidTensor, t.Shape, len(t.Data))
	}
	return nil
}

// FrameCount returns N.
func (t *Tensor) FrameCount() int {
	if t == nil {
		return 0
	}
	return t.Shape[0]
}

// Height returns H.
func (t *Tensor) Height() int { return t.Shape[1] }

// Width returns W.
func (t *Tensor) Width() int { return t.Shape[2] }

// Channels returns C.
func (t *Tensor) Channels() int { return t.Shape[3] }

func (t *Tensor) frameSize() int { return t.Shape[1] * t.Shape[2] * t.Shape[3] }

// Frame returns frame i as a single-frame tensor sharing t's data.
func (t *Tensor) Frame(i int) (*Tensor, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if i < 0 || i >= t.Shape[0] {
		return nil, fmt.Errorf("%w: frame %d of %d", ErrInvalidTensor, i, t.Shape[0])
	}
	size := t.frameSize()
	return &Tensor{
		Shape: [4]int{1, t.Shape[1], t.Shape[2], t.Shape[3]},
		Data:  t.Data[i*size : (i+1)*size],
	}, nil
}

// Quantized returns frame i scaled to [0,255] and cast to uint8, in HWC order.
func (t *Tensor) Quantized(i int) ([]uint8, error) {
	f, err := t.Frame(i)
	if err != nil {
		return nil, err
	}
	out := make([]uint8, len(f.Data))
	for j, v := range f.Data {
		out[j] = Quantize(v)
	}
	return out, nil
}

// Quantize maps a normalized channel value to a byte: v*255 truncated toward
// zero, clamped to [0,255]. NaN maps to 0.
func Quantize(v float32) uint8 {
	x := v * 255
	switch {
	case math.IsNaN(float64(x)), x <= 0:
		return 0
	case x >= 255:
		return 255
	default:
		return uint8(x)
	}
}

// Normalize maps a byte to the float32 channel value that Quantize maps back to b.
func Normalize(b uint8) float32 {
	v := float32(b) / 255
	for Quantize(v) < b {
		v = math.Nextafter32(v, 2)
	}
	return v
}

// FromPixels builds a single-frame tensor from 8-bit HWC pixels.
func FromPixels(h, w, c int, pix []uint8) (*Tensor, error) {
	data := make([]float32, len(pix))
	for i, b := range pix {
		data[i] = Normalize(b)
	}
	return NewTensor(1, h, w, c, data)
}
