package backbone

import (
	"fmt"

	"github.com/w-garcia/nextvlad-go/internal/feature"
	"github.com/w-garcia/nextvlad-go/internal/preprocess"
)

// PoolFeatures reduces a conv feature map [N, C, H, W] to an N x C matrix.
// PoolAdaptiveAvg averages each channel over its full spatial extent;
// PoolReLUAvg clamps negative activations to zero first, matching the
// NASNet-family extraction convention. A map that is already [N, C] passes
// through unchanged.
func PoolFeatures(conv *feature.Tensor, mode preprocess.PoolMode) (*feature.Matrix, error) {
	switch len(conv.Shape) {
	case 2:
		return &feature.Matrix{Rows: conv.Shape[0], Cols: conv.Shape[1], Data: conv.Data}, nil
	case 4:
	default:
		return nil, fmt.Errorf("backbone: cannot pool a %d-dim feature map", len(conv.Shape))
	}

	n, c, h, w := conv.Shape[0], conv.Shape[1], conv.Shape[2], conv.Shape[3]
	if h*w == 0 {
		return nil, fmt.Errorf("backbone: empty spatial extent %dx%d", h, w)
	}

	out := feature.NewMatrix(n, c)
	plane := h * w
	for i := 0; i < n; i++ {
		for ch := 0; ch < c; ch++ {
			base := (i*c + ch) * plane
			var sum float64
			for p := 0; p < plane; p++ {
				v := conv.Data[base+p]
				if mode == preprocess.PoolReLUAvg && v < 0 {
					v = 0
				}
				sum += float64(v)
			}
			out.Data[i*c+ch] = float32(sum / float64(plane))
		}
	}
	return out, nil
}
