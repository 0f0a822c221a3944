package pca

import (
	"fmt"
	"path/filepath"

	"github.com/w-garcia/nextvlad-go/internal/feature"
)

// Params holds an offline-fitted PCA basis.
type Params struct {
	Center    []float32
	Eigenvals []float32
	Eigenvecs [][]float32
	Whiten    bool
}

// LoadParams reads a fitted basis from dir, which must contain center.feat
// (1 x D), eigenvals.feat (1 x K) and eigenvecs.feat (K x D) in the .feat
// matrix format.
func LoadParams(dir string) (*Params, error) {
	center, err := loadVector(filepath.Join(dir, "center.feat"))
	if err != nil {
		return nil, err
	}
	eigenvals, err := loadVector(filepath.Join(dir, "eigenvals.feat"))
	if err != nil {
		return nil, err
	}
	vecs, err := feature.ReadFile(filepath.Join(dir, "eigenvecs.feat"))
	if err != nil {
		return nil, err
	}
	if vecs.Rows != len(eigenvals) {
		return nil, fmt.Errorf("pca: %d eigenvectors but %d eigenvalues in %s", vecs.Rows, len(eigenvals), dir)
	}
	if vecs.Cols != len(center) {
		return nil, fmt.Errorf("pca: eigenvector dim %d does not match center dim %d in %s", vecs.Cols, len(center), dir)
	}

	eigenvecs := make([][]float32, vecs.Rows)
	for r := range eigenvecs {
		eigenvecs[r] = vecs.Row(r)
	}
	return &Params{Center: center, Eigenvals: eigenvals, Eigenvecs: eigenvecs}, nil
}

// Apply transforms feat with the loaded basis, whitening if configured.
func (p *Params) Apply(feat []float32) ([]float32, error) {
	if p.Whiten {
		return ProjectWhiten(feat, p.Center, p.Eigenvals, p.Eigenvecs)
	}
	return Project(feat, p.Center, p.Eigenvecs)
}

// OutputDim reports the projected dimensionality.
func (p *Params) OutputDim() int {
	return len(p.Eigenvecs)
}

func loadVector(path string) ([]float32, error) {
	m, err := feature.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if m.Rows != 1 {
		return nil, fmt.Errorf("pca: %s holds a %dx%d matrix, want a single row", path, m.Rows, m.Cols)
	}
	return m.Data, nil
}
