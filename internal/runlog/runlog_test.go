package runlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRunLifecycle(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	runID, err := l.StartRun(ctx, "nextvlad", 20)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	for epoch := 0; epoch < 3; epoch++ {
		require.NoError(t, l.RecordEpoch(ctx, runID, EpochRecord{
			Epoch:      epoch,
			Loss:       1.0 / float64(epoch+1),
			GAP:        0.5 + 0.1*float64(epoch),
			Checkpoint: "ckpt/model.pth",
		}))
	}
	require.NoError(t, l.FinishRun(ctx, runID))

	epochs, err := l.Epochs(ctx, runID)
	require.NoError(t, err)
	require.Len(t, epochs, 3)
	assert.Equal(t, 0, epochs[0].Epoch)
	assert.Equal(t, 2, epochs[2].Epoch)

	best, err := l.BestEpoch(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, best.Epoch)
	assert.InDelta(t, 0.7, best.GAP, 1e-9)
}

func TestDuplicateEpochRejected(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	runID, err := l.StartRun(ctx, "nextvlad", 20)
	require.NoError(t, err)

	rec := EpochRecord{Epoch: 0, Loss: 0.5, GAP: 0.6, Checkpoint: "a.pth"}
	require.NoError(t, l.RecordEpoch(ctx, runID, rec))
	assert.Error(t, l.RecordEpoch(ctx, runID, rec))
}

func TestBestEpochEmptyRun(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	runID, err := l.StartRun(ctx, "nextvlad", 20)
	require.NoError(t, err)

	_, err = l.BestEpoch(ctx, runID)
	assert.Error(t, err)
}
