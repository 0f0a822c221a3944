// Package storage persists extracted frame features, either as per-video
// .feat files on disk or as pgvector rows in Postgres.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/w-garcia/nextvlad-go/internal/feature"
	"github.com/w-garcia/nextvlad-go/internal/models"
)

const flushBatchSize = 10 // Number of frames to buffer between flushes

// Store is the sink for extracted frame features.
type Store interface {
	// AddFrameFeature records one frame's pooled feature vector.
	AddFrameFeature(ctx context.Context, f models.FrameFeature) error

	// Flush ensures all pending features are saved.
	Flush() error
}

// FileStore accumulates a video's frame features and writes them as a
// single <videoName>.feat matrix, one row per frame in frame order.
type FileStore struct {
	mu        sync.Mutex
	frames    []models.FrameFeature
	dim       int
	flushed   int
	outputDir string
	videoName string
}

// NewFileStore creates a file-backed feature store for one video.
func NewFileStore(outputDir, videoName string) *FileStore {
	return &FileStore{outputDir: outputDir, videoName: videoName}
}

// AddFrameFeature buffers a frame and flushes when the buffer fills.
func (s *FileStore) AddFrameFeature(ctx context.Context, f models.FrameFeature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(f.Embedding)
	}
	if len(f.Embedding) != s.dim {
		return fmt.Errorf("storage: frame %s has dim %d, video %s uses %d",
			f.Frame, len(f.Embedding), s.videoName, s.dim)
	}
	s.frames = append(s.frames, f)

	if len(s.frames)-s.flushed >= flushBatchSize {
		return s.flush()
	}
	return nil
}

// Flush writes all buffered features to disk.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

// flush rewrites the full .feat file. Frames are sorted by frame number so
// the row order matches the video's timeline regardless of arrival order.
func (s *FileStore) flush() error {
	if len(s.frames) == 0 || len(s.frames) == s.flushed {
		return nil
	}

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return fmt.Errorf("storage: creating output directory: %w", err)
	}

	sortFrames(s.frames)
	m := feature.NewMatrix(len(s.frames), s.dim)
	for i, f := range s.frames {
		m.SetRow(i, f.Embedding)
	}

	path := filepath.Join(s.outputDir, s.videoName+".feat")
	if err := feature.WriteFile(path, m); err != nil {
		return fmt.Errorf("storage: writing %s: %w", path, err)
	}
	s.flushed = len(s.frames)
	return nil
}

// Path returns where the video's .feat file is written.
func (s *FileStore) Path() string {
	return filepath.Join(s.outputDir, s.videoName+".feat")
}

// sortFrames orders by frame number, insertion-sort style; extraction
// emits frames nearly in order so this stays cheap.
func sortFrames(frames []models.FrameFeature) {
	for i := 1; i < len(frames); i++ {
		for j := i; j > 0 && frames[j].FrameNum < frames[j-1].FrameNum; j-- {
			frames[j], frames[j-1] = frames[j-1], frames[j]
		}
	}
}
