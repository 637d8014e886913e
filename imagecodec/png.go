package imagecodec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG for Load
	"image/png"
	"io"
	"strings"
)

// ToImage converts frame 0 of t to an 8-bit image: Gray for one channel,
// opaque NRGBA for three, NRGBA for four.
func ToImage(t *Tensor) (image.Image, error) {
	pix, err := t.Quantized(0)
	if err != nil {
		return nil, err
	}
	h, w, c := t.Height(), t.Width(), t.Channels()
	rect := image.Rect(0, 0, w, h)
	switch c {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, pix)
		return img, nil
	case 3:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(pix); i, j = i+3, j+4 {
			img.Pix[j] = pix[i]
			img.Pix[j+1] = pix[i+1]
			img.Pix[j+2] = pix[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	default:
		img := image.NewNRGBA(rect)
		copy(img.Pix, pix)
		return img, nil
	}
}

// EncodePNG encodes frame 0 of t as PNG. Remaining frames are ignored.
func EncodePNG(t *Tensor) ([]byte, error) {
	img, err := ToImage(t)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imagecodec: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64PNG encodes frame 0 of t as a standard base64 PNG string.
func EncodeBase64PNG(t *Tensor) (string, error) {
	data, err := EncodePNG(t)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Pixels is a decoded 8-bit HWC buffer.
type Pixels struct {
	Height, Width, Channels int
	Pix                     []uint8
}

// DecodePixels decodes PNG or JPEG data into an 8-bit HWC buffer.
// Gray images yield one channel; opaque images three; others four.
func DecodePixels(data []byte) (*Pixels, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagecodec: decode: %w", err)
	}
	return pixelsOf(img), nil
}

func pixelsOf(img image.Image) *Pixels {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	if g, ok := img.(*image.Gray); ok {
		out := &Pixels{Height: h, Width: w, Channels: 1, Pix: make([]uint8, 0, h*w)}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			out.Pix = append(out.Pix, g.Pix[g.PixOffset(b.Min.X, y):g.PixOffset(b.Max.X, y)]...)
		}
		return out
	}
	rgba := make([]uint8, 0, h*w*4)
	opaque := true
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A != 0xff {
				opaque = false
			}
			rgba = append(rgba, c.R, c.G, c.B, c.A)
		}
	}
	if !opaque {
		return &Pixels{Height: h, Width: w, Channels: 4, Pix: rgba}
	}
	rgb := make([]uint8, 0, h*w*3)
	for i := 0; i < len(rgba); i += 4 {
		rgb = append(rgb, rgba[i], rgba[i+1], rgba[i+2])
	}
	return &Pixels{Height: h, Width: w, Channels: 3, Pix: rgb}
}

// Tensor converts the buffer to a single-frame tensor.
func (p *Pixels) Tensor() (*Tensor, error) {
	return FromPixels(p.Height, p.Width, p.Channels, p.Pix)
}

// DecodeBase64 decodes a base64 image string, with or without a
// "data:image/...;base64," prefix.
func DecodeBase64(s string) (*Pixels, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("imagecodec: decode base64: %w", err)
	}
	return DecodePixels(data)
}

// Load reads a PNG or JPEG image and returns it as a single-frame tensor.
func Load(r io.Reader) (*Tensor, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imagecodec: decode: %w", err)
	}
	return FromImage(img)
}

// FromImage converts img to a single-frame tensor.
func FromImage(img image.Image) (*Tensor, error) {
	return pixelsOf(img).Tensor()
}

// Stack concatenates single- or multi-frame tensors of equal H, W, C into one batch.
func Stack(frames ...*Tensor) (*Tensor, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyBatch
	}
	first := frames[0]
	if err := first.Validate(); err != nil {
		return nil, err
	}
	n := 0
	var data []float32
	for _, f := range frames {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if f.Shape[1] != first.Shape[1] || f.Shape[2] != first.Shape[2] || f.Shape[3] != first.Shape[3] {
			return nil, fmt.Errorf("%w: frame shape %v differs from %v", ErrInvalidTensor, f.Shape, first.Shape)
		}
		n += f.Shape[0]
		data = append(data, f.Data...)
	}
	return NewTensor(n, first.Shape[1], first.Shape[2], first.Shape[3], data)
}
