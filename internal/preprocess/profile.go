// Package preprocess prepares raw video frames for a pretrained image
// backbone: aspect-preserving resize, optional crops and flips, CHW float
// conversion, channel-order and value-range fixups, and per-channel
// normalization, all driven by the backbone's declared input profile.
package preprocess

import "fmt"

// PoolMode selects how the backbone's conv feature map is reduced to a
// single vector per frame.
type PoolMode int

const (
	// PoolAdaptiveAvg averages the full spatial extent of the feature map.
	PoolAdaptiveAvg PoolMode = iota
	// PoolReLUAvg clamps negative activations to zero before averaging;
	// used by the NASNet family.
	PoolReLUAvg
)

// Profile declares a pretrained backbone's expected input and the shape of
// its feature output. The weights themselves live in external ONNX exports.
type Profile struct {
	Name       string
	InputSize  [3]int // C, H, W
	InputSpace string // "RGB" or "BGR"
	InputRange [2]float32
	Mean       [3]float32
	Std        [3]float32
	FeatureDim int
	Pool       PoolMode
}

// MaxInput returns the largest input dimension, which drives the resize and
// crop sizes.
func (p Profile) MaxInput() int {
	m := p.InputSize[0]
	for _, d := range p.InputSize[1:] {
		if d > m {
			m = d
		}
	}
	return m
}

var profiles = map[string]Profile{
	"inceptionresnetv2": {
		Name:       "inceptionresnetv2",
		InputSize:  [3]int{3, 299, 299},
		InputSpace: "RGB",
		InputRange: [2]float32{0, 1},
		Mean:       [3]float32{0.5, 0.5, 0.5},
		Std:        [3]float32{0.5, 0.5, 0.5},
		FeatureDim: 1536,
		Pool:       PoolAdaptiveAvg,
	},
	"fbresnet152": {
		Name:       "fbresnet152",
		InputSize:  [3]int{3, 224, 224},
		InputSpace: "RGB",
		InputRange: [2]float32{0, 1},
		Mean:       [3]float32{0.485, 0.456, 0.406},
		Std:        [3]float32{0.229, 0.224, 0.225},
		FeatureDim: 2048,
		Pool:       PoolAdaptiveAvg,
	},
	"nasnetalarge": {
		Name:       "nasnetalarge",
		InputSize:  [3]int{3, 331, 331},
		InputSpace: "RGB",
		InputRange: [2]float32{0, 1},
		Mean:       [3]float32{0.5, 0.5, 0.5},
		Std:        [3]float32{0.5, 0.5, 0.5},
		FeatureDim: 4032,
		Pool:       PoolReLUAvg,
	},
	"pnasnet5large": {
		Name:       "pnasnet5large",
		InputSize:  [3]int{3, 331, 331},
		InputSpace: "RGB",
		InputRange: [2]float32{0, 1},
		Mean:       [3]float32{0.5, 0.5, 0.5},
		Std:        [3]float32{0.5, 0.5, 0.5},
		FeatureDim: 4320,
		Pool:       PoolReLUAvg,
	},
	"bninception": {
		Name:       "bninception",
		InputSize:  [3]int{3, 224, 224},
		InputSpace: "BGR",
		InputRange: [2]float32{0, 255},
		Mean:       [3]float32{104, 117, 128},
		Std:        [3]float32{1, 1, 1},
		FeatureDim: 1024,
		Pool:       PoolAdaptiveAvg,
	},
}

// ProfileByName looks up a backbone profile.
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("preprocess: unknown backbone %q (have %v)", name, ProfileNames())
	}
	return p, nil
}

// ProfileNames lists the known backbones in stable order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for _, n := range []string{"bninception", "fbresnet152", "inceptionresnetv2", "nasnetalarge", "pnasnet5large"} {
		if _, ok := profiles[n]; ok {
			names = append(names, n)
		}
	}
	return names
}
