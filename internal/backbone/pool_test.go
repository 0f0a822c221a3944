package backbone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w-garcia/nextvlad-go/internal/feature"
	"github.com/w-garcia/nextvlad-go/internal/preprocess"
)

func TestPoolAdaptiveAvg(t *testing.T) {
	// One frame, two channels, 2x2 maps.
	conv := &feature.Tensor{
		Shape: []int{1, 2, 2, 2},
		Data: []float32{
			1, 2, 3, 4, // channel 0 -> mean 2.5
			-4, 0, 4, 8, // channel 1 -> mean 2
		},
	}
	m, err := PoolFeatures(conv, preprocess.PoolAdaptiveAvg)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Rows)
	assert.Equal(t, 2, m.Cols)
	assert.InDelta(t, 2.5, float64(m.Data[0]), 1e-6)
	assert.InDelta(t, 2.0, float64(m.Data[1]), 1e-6)
}

func TestPoolReLUAvgClampsNegatives(t *testing.T) {
	conv := &feature.Tensor{
		Shape: []int{1, 1, 2, 2},
		Data:  []float32{-4, 0, 4, 8}, // relu -> 0,0,4,8 -> mean 3
	}
	m, err := PoolFeatures(conv, preprocess.PoolReLUAvg)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, float64(m.Data[0]), 1e-6)
}

func TestPoolMultipleFrames(t *testing.T) {
	conv := &feature.Tensor{
		Shape: []int{2, 1, 1, 2},
		Data:  []float32{1, 3, 5, 7},
	}
	m, err := PoolFeatures(conv, preprocess.PoolAdaptiveAvg)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows)
	assert.InDelta(t, 2.0, float64(m.Row(0)[0]), 1e-6)
	assert.InDelta(t, 6.0, float64(m.Row(1)[0]), 1e-6)
}

func TestPoolPassthroughFor2D(t *testing.T) {
	conv := &feature.Tensor{Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}}
	m, err := PoolFeatures(conv, preprocess.PoolAdaptiveAvg)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows)
	assert.Equal(t, 3, m.Cols)
	assert.Equal(t, conv.Data, m.Data)
}

func TestPoolRejectsOddShapes(t *testing.T) {
	_, err := PoolFeatures(&feature.Tensor{Shape: []int{2, 3, 4}, Data: make([]float32, 24)}, preprocess.PoolAdaptiveAvg)
	assert.Error(t, err)
}
