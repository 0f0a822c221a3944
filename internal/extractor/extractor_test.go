package extractor

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFramesSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_0002.jpg", "frame_0001.jpg", "notes.txt", "cover.PNG"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0755))

	frames, err := ListFrames(dir)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, filepath.Join(dir, "frame_0001.jpg"), frames[0])
	assert.Equal(t, filepath.Join(dir, "frame_0002.jpg"), frames[1])
}

func TestFrameNumber(t *testing.T) {
	n, err := FrameNumber("/tmp/out/video/frame_0042.jpg")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = FrameNumber("/tmp/out/video/shot42.jpg")
	assert.Error(t, err)
}

func TestExtractFramesMissingVideo(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	_, err := ExtractFrames(filepath.Join(t.TempDir(), "missing.mp4"), t.TempDir(), 5, logger)
	assert.Error(t, err)
}

func TestExtractFramesSkipsWhenPresent(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	videoDir := t.TempDir()
	videoPath := filepath.Join(videoDir, "clip.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("not a real video"), 0644))

	outputDir := t.TempDir()
	frameDir := filepath.Join(outputDir, "clip")
	require.NoError(t, os.MkdirAll(frameDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(frameDir, "frame_0001.jpg"), nil, 0644))

	// Existing frames short-circuit before ffmpeg runs, so the fake video
	// is never touched.
	got, err := ExtractFrames(videoPath, outputDir, 5, logger)
	require.NoError(t, err)
	assert.Equal(t, frameDir, got)
}
