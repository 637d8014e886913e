package imagecodec

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func filled(n, h, w, c int, v float32) *Tensor {
	data := make([]float32, n*h*w*c)
	for i := range data {
		data[i] = v
	}
	return &Tensor{Shape: [4]int{n, h, w, c}, Data: data}
}

func TestQuantize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    float32
		want uint8
	}{
		{"zero", 0, 0},
		{"one", 1, 255},
		{"half truncates", 0.5, 127},
		{"negative clamps", -0.2, 0},
		{"above one clamps", 1.7, 255},
		{"nan", float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Quantize(tt.v))
		})
	}
}

func TestNormalize_InvertsQuantize(t *testing.T) {
	t.Parallel()
	for b := 0; b <= 255; b++ {
		require.Equal(t, uint8(b), Quantize(Normalize(uint8(b))), "byte %d", b)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		t    *Tensor
		err  error
	}{
		{"nil", nil, ErrEmptyBatch},
		{"no frames", &Tensor{Shape: [4]int{0, 2, 2, 3}}, ErrEmptyBatch},
		{"two channels", filled(1, 2, 2, 2, 0), ErrUnsupportedChannels},
		{"short data", &Tensor{Shape: [4]int{1, 2, 2, 3}, Data: make([]float32, 5)}, ErrInvalidTensor},
		{"ok", filled(2, 2, 2, 3, 0), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.t.Validate()
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEncodePNG_AllOnesIs255(t *testing.T) {
	t.Parallel()
	data, err := EncodePNG(filled(1, 2, 2, 3, 1.0))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, c)
		}
	}
}

func TestEncodePNG_UsesFirstFrameOnly(t *testing.T) {
	t.Parallel()
	batch, err := Stack(filled(1, 1, 1, 1, 0.2), filled(1, 1, 1, 1, 0.9))
	require.NoError(t, err)
	require.Equal(t, 2, batch.FrameCount())
	data, err := EncodePNG(batch)
	require.NoError(t, err)
	px, err := DecodePixels(data)
	require.NoError(t, err)
	assert.Equal(t, []uint8{Quantize(0.2)}, px.Pix)
	assert.Equal(t, 1, px.Channels)
}

func TestBase64RoundTrip(t *testing.T) {
	t.Parallel()
	for _, c := range []int{1, 3, 4} {
		rng := rand.New(rand.NewPCG(uint64(c), 7))
		h, w := 5, 7
		data := make([]float32, h*w*c)
		for i := range data {
			data[i] = rng.Float32()
		}
		if c == 4 {
			data[3] = 0.1 // keep the frame non-opaque
		}
		tensor, err := NewTensor(1, h, w, c, data)
		require.NoError(t, err)
		want, err := tensor.Quantized(0)
		require.NoError(t, err)

		s, err := EncodeBase64PNG(tensor)
		require.NoError(t, err)
		px, err := DecodeBase64(s)
		require.NoError(t, err)
		assert.Equal(t, c, px.Channels)
		assert.Equal(t, want, px.Pix, "channels %d", c)

		back, err := px.Tensor()
		require.NoError(t, err)
		again, err := back.Quantized(0)
		require.NoError(t, err)
		assert.Equal(t, want, again)
	}
}

func TestDecodeBase64_DataURL(t *testing.T) {
	t.Parallel()
	raw, err := EncodePNG(filled(1, 1, 2, 3, 1))
	require.NoError(t, err)
	px, err := DecodeBase64("data:image/png;base64," + base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 255, 255, 255, 255, 255}, px.Pix)

	_, err = DecodeBase64("not base64!!")
	require.Error(t, err)
}

func TestLoad_JPEG(t *testing.T) {
	t.Parallel()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	tensor, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 3, 4, 3}, tensor.Shape)
}

func TestFrame_OutOfRange(t *testing.T) {
	t.Parallel()
	_, err := filled(1, 1, 1, 3, 0).Frame(1)
	require.ErrorIs(t, err, ErrInvalidTensor)
}

func TestStack_ShapeMismatch(t *testing.T) {
	t.Parallel()
	_, err := Stack(filled(1, 1, 1, 3, 0), filled(1, 2, 1, 3, 0))
	require.ErrorIs(t, err, ErrInvalidTensor)
	_, err = Stack()
	require.ErrorIs(t, err, ErrEmptyBatch)
}
