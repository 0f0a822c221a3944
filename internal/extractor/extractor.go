// Package extractor shells out to ffmpeg to turn a video file into a
// directory of JPEG frames sampled at a fixed interval.
package extractor

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// ExtractFrames extracts frames from a video file at the given interval
// (seconds between frames) into outputDir/<video-name>/frame_NNNN.jpg and
// returns the frame directory. Extraction is skipped when frames already
// exist there.
func ExtractFrames(videoPath, outputDir string, interval int, logger *slog.Logger) (string, error) {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return "", fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}
	if interval <= 0 {
		return "", fmt.Errorf("frame interval must be positive, got %d", interval)
	}

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	frameDirPath := filepath.Join(outputDir, videoName)

	// Skip extraction when a previous run already produced frames.
	if existing, err := ListFrames(frameDirPath); err == nil && len(existing) > 0 {
		logger.Info("frames already exist, skipping extraction",
			"dir", frameDirPath, "frames", len(existing))
		return frameDirPath, nil
	}

	if err := os.MkdirAll(frameDirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create frame directory '%s': %w", frameDirPath, err)
	}

	logger.Info("extracting frames", "video", videoPath, "dir", frameDirPath, "interval_seconds", interval)

	ffmpegCommand := exec.Command(
		"ffmpeg",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%d", interval),
		fmt.Sprintf("%s/frame_%%04d.jpg", frameDirPath),
	)

	output, err := ffmpegCommand.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}

	return frameDirPath, nil
}

// ListFrames returns the sorted JPEG frame paths under dir.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var frames []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".jpg") {
			frames = append(frames, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}

// FrameNumber parses the frame index out of a frame_NNNN.jpg path.
func FrameNumber(framePath string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(filepath.Base(framePath), "frame_%04d.jpg", &n); err != nil {
		return 0, fmt.Errorf("invalid frame filename format: %s", filepath.Base(framePath))
	}
	return n, nil
}
