package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w-garcia/nextvlad-go/internal/feature"
	"github.com/w-garcia/nextvlad-go/internal/models"
)

func TestFileStoreWritesSortedMatrix(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "clip")
	ctx := context.Background()

	// Out-of-order arrival, as a parallel pipeline would produce.
	for _, n := range []int{3, 1, 2} {
		require.NoError(t, store.AddFrameFeature(ctx, models.FrameFeature{
			Frame:     "frame",
			FrameNum:  n,
			Embedding: []float32{float32(n), 0},
		}))
	}
	require.NoError(t, store.Flush())

	m, err := feature.ReadFile(store.Path())
	require.NoError(t, err)
	require.Equal(t, 3, m.Rows)
	require.Equal(t, 2, m.Cols)
	assert.Equal(t, float32(1), m.Row(0)[0])
	assert.Equal(t, float32(2), m.Row(1)[0])
	assert.Equal(t, float32(3), m.Row(2)[0])
}

func TestFileStoreAutoFlushesAtBatchSize(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "clip")
	ctx := context.Background()

	for n := 1; n <= flushBatchSize; n++ {
		require.NoError(t, store.AddFrameFeature(ctx, models.FrameFeature{
			FrameNum:  n,
			Embedding: []float32{1},
		}))
	}

	// The batch threshold wrote without an explicit Flush.
	m, err := feature.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, flushBatchSize, m.Rows)
}

func TestFileStoreRejectsDimChange(t *testing.T) {
	store := NewFileStore(t.TempDir(), "clip")
	ctx := context.Background()

	require.NoError(t, store.AddFrameFeature(ctx, models.FrameFeature{FrameNum: 1, Embedding: []float32{1, 2}}))
	err := store.AddFrameFeature(ctx, models.FrameFeature{FrameNum: 2, Embedding: []float32{1}})
	assert.Error(t, err)
}

func TestFileStoreFlushEmptyIsNoop(t *testing.T) {
	store := NewFileStore(t.TempDir(), "clip")
	require.NoError(t, store.Flush())
	_, err := feature.ReadFile(store.Path())
	assert.Error(t, err, "no file should exist")
}
