// Package pca applies an offline-fitted PCA projection, with optional
// whitening, to raw backbone features. Fitting (center, eigenvalues,
// eigenvectors) happens outside this repository; this package only loads
// the parameters and applies the transform.
package pca

import (
	"fmt"
	"math"
)

// whitenEpsilon guards the per-component division against near-zero
// eigenvalues.
const whitenEpsilon = 1e-4

// Project centers feat and multiplies by the eigenvector matrix. Each row
// of eigenvecs is one principal component; the output dimensionality equals
// the number of rows, which may be lower than len(feat).
func Project(feat, center []float32, eigenvecs [][]float32) ([]float32, error) {
	if len(feat) != len(center) {
		return nil, fmt.Errorf("pca: feature dim %d does not match center dim %d", len(feat), len(center))
	}
	if len(eigenvecs) == 0 {
		return nil, fmt.Errorf("pca: empty eigenvector matrix")
	}

	centered := make([]float64, len(feat))
	for i := range feat {
		centered[i] = float64(feat[i]) - float64(center[i])
	}

	out := make([]float32, len(eigenvecs))
	for r, vec := range eigenvecs {
		if len(vec) != len(feat) {
			return nil, fmt.Errorf("pca: eigenvector %d has dim %d, want %d", r, len(vec), len(feat))
		}
		var dot float64
		for i, v := range vec {
			dot += float64(v) * centered[i]
		}
		out[r] = float32(dot)
	}
	return out, nil
}

// ProjectWhiten projects feat and rescales component i by
// 1/sqrt(eigenvals[i] + epsilon), equalizing variance across components.
func ProjectWhiten(feat, center, eigenvals []float32, eigenvecs [][]float32) ([]float32, error) {
	if len(eigenvals) != len(eigenvecs) {
		return nil, fmt.Errorf("pca: %d eigenvalues for %d eigenvectors", len(eigenvals), len(eigenvecs))
	}
	out, err := Project(feat, center, eigenvecs)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / math.Sqrt(float64(eigenvals[i])+whitenEpsilon))
	}
	return out, nil
}
