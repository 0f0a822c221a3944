package preprocess

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/rand"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/w-garcia/nextvlad-go/internal/feature"
)

// defaultScale matches the inception-style preprocessing convention: the
// image is resized so that a later crop of MaxInput pixels covers 87.5% of
// the short edge.
const defaultScale = 0.875

// Transform converts a decoded frame into the CHW float32 tensor the
// backbone expects. It is not safe for concurrent use when random
// augmentations are enabled.
type Transform struct {
	profile Profile

	scale               float64
	preserveAspectRatio bool
	randomCrop          bool
	centerCrop          bool
	randomHFlip         bool
	randomVFlip         bool

	rng *rand.Rand
}

// Option configures a Transform.
type Option func(*Transform)

// WithScale overrides the resize scale factor.
func WithScale(scale float64) Option {
	return func(t *Transform) { t.scale = scale }
}

// WithRandomCrop enables random cropping to the profile's input size.
func WithRandomCrop() Option {
	return func(t *Transform) { t.randomCrop = true }
}

// WithCenterCrop enables deterministic center cropping to the profile's
// input size.
func WithCenterCrop() Option {
	return func(t *Transform) { t.centerCrop = true }
}

// WithRandomFlips enables horizontal and/or vertical random flips.
func WithRandomFlips(horizontal, vertical bool) Option {
	return func(t *Transform) {
		t.randomHFlip = horizontal
		t.randomVFlip = vertical
	}
}

// WithStretch disables aspect-ratio preservation; the image is stretched to
// the profile's input height and width divided by the scale factor.
func WithStretch() Option {
	return func(t *Transform) { t.preserveAspectRatio = false }
}

// WithSeed fixes the augmentation RNG for reproducible runs.
func WithSeed(seed int64) Option {
	return func(t *Transform) { t.rng = rand.New(rand.NewSource(seed)) }
}

// NewTransform builds the transform chain for a backbone profile. The
// defaults mirror inference-time extraction: aspect-preserving resize, no
// crops, no flips.
func NewTransform(profile Profile, opts ...Option) *Transform {
	t := &Transform{
		profile:             profile,
		scale:               defaultScale,
		preserveAspectRatio: true,
		rng:                 rand.New(rand.NewSource(rand.Int63())),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ApplyFile decodes the image at path and applies the transform.
func (t *Transform) ApplyFile(path string) (*feature.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("preprocess: decoding %s: %w", path, err)
	}
	return t.Apply(img)
}

// Apply runs the full transform chain on a decoded image.
func (t *Transform) Apply(img image.Image) (*feature.Tensor, error) {
	rgba := t.resize(img)

	cropSize := t.profile.MaxInput()
	if t.randomCrop {
		var err error
		rgba, err = t.cropRandom(rgba, cropSize)
		if err != nil {
			return nil, err
		}
	} else if t.centerCrop {
		var err error
		rgba, err = cropCenter(rgba, cropSize)
		if err != nil {
			return nil, err
		}
	}

	if t.randomHFlip && t.rng.Intn(2) == 1 {
		rgba = flipHorizontal(rgba)
	}
	if t.randomVFlip && t.rng.Intn(2) == 1 {
		rgba = flipVertical(rgba)
	}

	return t.toTensor(rgba), nil
}

// resize scales the image per the profile: with aspect preservation the
// short edge becomes floor(MaxInput/scale); otherwise height and width are
// scaled independently.
func (t *Transform) resize(img image.Image) *image.RGBA {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	var dstW, dstH int
	if t.preserveAspectRatio {
		target := int(math.Floor(float64(t.profile.MaxInput()) / t.scale))
		if srcW < srcH {
			dstW = target
			dstH = srcH * target / srcW
		} else {
			dstH = target
			dstW = srcW * target / srcH
		}
	} else {
		dstH = int(float64(t.profile.InputSize[1]) / t.scale)
		dstW = int(float64(t.profile.InputSize[2]) / t.scale)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func (t *Transform) cropRandom(img *image.RGBA, size int) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Dx() < size || b.Dy() < size {
		return nil, fmt.Errorf("preprocess: image %dx%d too small for %d crop", b.Dx(), b.Dy(), size)
	}
	x := t.rng.Intn(b.Dx() - size + 1)
	y := t.rng.Intn(b.Dy() - size + 1)
	return crop(img, x, y, size), nil
}

func cropCenter(img *image.RGBA, size int) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Dx() < size || b.Dy() < size {
		return nil, fmt.Errorf("preprocess: image %dx%d too small for %d crop", b.Dx(), b.Dy(), size)
	}
	return crop(img, (b.Dx()-size)/2, (b.Dy()-size)/2, size), nil
}

func crop(img *image.RGBA, x, y, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	for row := 0; row < size; row++ {
		srcOff := (y+row)*img.Stride + x*4
		copy(dst.Pix[row*dst.Stride:(row+1)*dst.Stride], img.Pix[srcOff:srcOff+size*4])
	}
	return dst
}

func flipHorizontal(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			s := y*img.Stride + x*4
			d := y*dst.Stride + (b.Dx()-1-x)*4
			copy(dst.Pix[d:d+4], img.Pix[s:s+4])
		}
	}
	return dst
}

func flipVertical(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		s := y * img.Stride
		d := (b.Dy() - 1 - y) * dst.Stride
		copy(dst.Pix[d:d+b.Dx()*4], img.Pix[s:s+b.Dx()*4])
	}
	return dst
}

// toTensor converts HWC pixels into a CHW float tensor, applying the
// profile's channel order, value range, and normalization.
func (t *Transform) toTensor(img *image.RGBA) *feature.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := feature.NewTensor(3, h, w)

	// Channel source order: RGB by default, reversed for BGR backbones.
	order := [3]int{0, 1, 2}
	if t.profile.InputSpace == "BGR" {
		order = [3]int{2, 1, 0}
	}

	scale := float32(1.0 / 255.0)
	if t.profile.InputRange[1] == 255 {
		scale = 1.0
	}

	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*img.Stride + x*4
			px := [3]float32{
				float32(img.Pix[off]),
				float32(img.Pix[off+1]),
				float32(img.Pix[off+2]),
			}
			for c := 0; c < 3; c++ {
				v := px[order[c]] * scale
				out.Data[c*plane+y*w+x] = (v - t.profile.Mean[c]) / t.profile.Std[c]
			}
		}
	}
	return out
}
