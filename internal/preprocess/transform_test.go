package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestProfileByName(t *testing.T) {
	p, err := ProfileByName("inceptionresnetv2")
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 299, 299}, p.InputSize)
	assert.Equal(t, 1536, p.FeatureDim)

	_, err = ProfileByName("resnet9000")
	assert.Error(t, err)
}

func TestResizePreservesAspectRatio(t *testing.T) {
	p, err := ProfileByName("inceptionresnetv2")
	require.NoError(t, err)
	tf := NewTransform(p)

	// 400x225 landscape frame: short edge becomes floor(299/0.875)=341.
	out, err := tf.Apply(solidImage(400, 225, color.RGBA{R: 128, G: 128, B: 128, A: 255}))
	require.NoError(t, err)
	require.Len(t, out.Shape, 3)
	assert.Equal(t, 3, out.Shape[0])
	assert.Equal(t, 341, out.Shape[1])                  // height (short edge)
	assert.Equal(t, 400*341/225, out.Shape[2])          // width scaled to keep aspect
	assert.Equal(t, out.NumElements(), len(out.Data))
}

func TestStretchResize(t *testing.T) {
	p, err := ProfileByName("fbresnet152")
	require.NoError(t, err)
	tf := NewTransform(p, WithStretch())

	out, err := tf.Apply(solidImage(100, 50, color.RGBA{A: 255}))
	require.NoError(t, err)
	assert.Equal(t, int(float64(224)/0.875), out.Shape[1])
	assert.Equal(t, int(float64(224)/0.875), out.Shape[2])
}

func TestCenterCropSize(t *testing.T) {
	p, err := ProfileByName("fbresnet152")
	require.NoError(t, err)
	tf := NewTransform(p, WithCenterCrop())

	out, err := tf.Apply(solidImage(500, 300, color.RGBA{A: 255}))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 224, 224}, out.Shape)
}

func TestRandomCropReproducibleWithSeed(t *testing.T) {
	p, err := ProfileByName("fbresnet152")
	require.NoError(t, err)

	// A gradient image so crops at different offsets differ.
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 600; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}

	a, err := NewTransform(p, WithRandomCrop(), WithSeed(42)).Apply(img)
	require.NoError(t, err)
	b, err := NewTransform(p, WithRandomCrop(), WithSeed(42)).Apply(img)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestNormalization(t *testing.T) {
	p, err := ProfileByName("inceptionresnetv2")
	require.NoError(t, err)
	tf := NewTransform(p)

	// Mid-gray 128/255 with mean 0.5, std 0.5 -> (0.50196..-0.5)/0.5.
	out, err := tf.Apply(solidImage(350, 350, color.RGBA{R: 128, G: 128, B: 128, A: 255}))
	require.NoError(t, err)
	want := (128.0/255.0 - 0.5) / 0.5
	assert.InDelta(t, want, float64(out.Data[0]), 1e-2)
}

func TestBGRAndRange255(t *testing.T) {
	p, err := ProfileByName("bninception")
	require.NoError(t, err)
	tf := NewTransform(p)

	// Pure red: in BGR order channel 0 is blue (0), channel 2 is red (255).
	out, err := tf.Apply(solidImage(300, 300, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	plane := out.Shape[1] * out.Shape[2]

	blue := float64(out.Data[0])
	red := float64(out.Data[2*plane])
	assert.InDelta(t, (0-104.0)/1.0, blue, 1e-2)
	assert.InDelta(t, (255.0-128.0)/1.0, red, 1e-2)
}

func TestFlipHorizontal(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 10, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 200, A: 255})

	flipped := flipHorizontal(img)
	assert.Equal(t, uint8(200), flipped.RGBAAt(0, 0).R)
	assert.Equal(t, uint8(10), flipped.RGBAAt(1, 0).R)
}

func TestCropTooSmallFails(t *testing.T) {
	p, err := ProfileByName("nasnetalarge")
	require.NoError(t, err)

	_, err = cropCenter(image.NewRGBA(image.Rect(0, 0, 10, 10)), p.MaxInput())
	assert.Error(t, err)
}
