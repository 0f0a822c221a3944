package feature

import (
	"fmt"
	"log/slog"
)

// TransformFunc turns a frame image file into a CHW float32 tensor. The
// preprocess package provides implementations bound to a backbone profile.
type TransformFunc func(path string) (*Tensor, error)

// CreateBatches groups frame files into uniform NCHW tensors of at most
// batchSize frames each. Every returned batch has the same CHW dims as the
// first transformed frame; a frame with different dims is an error.
//
// When fewer frames than one batch exist, the batch size shrinks to the
// frame count.
func CreateBatches(frames []string, tf TransformFunc, batchSize int, logger *slog.Logger) ([]*Tensor, error) {
	n := len(frames)
	if n == 0 {
		return nil, fmt.Errorf("feature: no frames to batch")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("feature: invalid batch size %d", batchSize)
	}
	if n < batchSize {
		if logger != nil {
			logger.Warn("sample size less than batch size, cutting batch size", "frames", n, "batch_size", batchSize)
		}
		batchSize = n
	}

	if logger != nil {
		logger.Info("generating batches", "count", (n+batchSize-1)/batchSize)
	}

	var batches []*Tensor
	for idx := 0; idx < n; idx += batchSize {
		end := idx + batchSize
		if end > n {
			end = n
		}
		chunk := frames[idx:end]

		var batch *Tensor
		for i, frame := range chunk {
			tensor, err := tf(frame)
			if err != nil {
				return nil, fmt.Errorf("feature: transforming %s: %w", frame, err)
			}
			if batch == nil {
				batch = NewTensor(append([]int{len(chunk)}, tensor.Shape...)...)
			}
			per := tensor.NumElements()
			if per != batch.NumElements()/len(chunk) {
				return nil, fmt.Errorf("feature: frame %s has %d elements, batch expects %d",
					frame, per, batch.NumElements()/len(chunk))
			}
			copy(batch.Data[i*per:(i+1)*per], tensor.Data)
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
