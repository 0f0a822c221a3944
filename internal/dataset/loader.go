package dataset

import (
	"context"
	"math/rand"
	"sync"

	"github.com/w-garcia/nextvlad-go/internal/feature"
)

// Batch groups items into the tensors a training step consumes: features
// [B, MaxFrames, D], mask [B, MaxFrames], labels [B, NumClasses].
type Batch struct {
	VideoIDs []string
	Features *feature.Tensor
	Mask     *feature.Tensor
	Labels   *feature.Tensor
}

// Size returns the number of videos in the batch.
func (b *Batch) Size() int { return len(b.VideoIDs) }

// Result carries either a built batch or the error that stopped a worker.
type Result struct {
	Batch *Batch
	Err   error
}

// Loader assembles shuffled batches with a pool of prefetch workers,
// mirroring a framework data loader's batch_size/num_workers/shuffle knobs.
type Loader struct {
	ds        *Dataset
	batchSize int
	workers   int
	shuffle   bool
	seed      int64
}

// NewLoader configures a loader over ds. workers <= 0 falls back to 1.
func NewLoader(ds *Dataset, batchSize, workers int, shuffle bool, seed int64) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Loader{ds: ds, batchSize: batchSize, workers: workers, shuffle: shuffle, seed: seed}
}

// NumBatches returns ceil(len/batchSize).
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// Batches streams the epoch's batches. Batch order across the channel is
// not deterministic when more than one worker runs; the pairing of
// features, masks, and labels within a batch always is. The channel closes
// after the last batch or when ctx is cancelled.
func (l *Loader) Batches(ctx context.Context) <-chan Result {
	indices := make([]int, l.ds.Len())
	for i := range indices {
		indices[i] = i
	}
	if l.shuffle {
		rng := rand.New(rand.NewSource(l.seed))
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	jobs := make(chan []int, l.workers)
	out := make(chan Result, l.workers)

	var wg sync.WaitGroup
	for w := 0; w < l.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range jobs {
				batch, err := l.buildBatch(group)
				select {
				case out <- Result{Batch: batch, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for start := 0; start < len(indices); start += l.batchSize {
			end := start + l.batchSize
			if end > len(indices) {
				end = len(indices)
			}
			select {
			case jobs <- indices[start:end]:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func (l *Loader) buildBatch(group []int) (*Batch, error) {
	b := len(group)
	batch := &Batch{
		VideoIDs: make([]string, b),
		Features: feature.NewTensor(b, l.ds.MaxFrames(), l.ds.FeatureDim()),
		Mask:     feature.NewTensor(b, l.ds.MaxFrames()),
		Labels:   feature.NewTensor(b, l.ds.NumClasses()),
	}
	featStride := l.ds.MaxFrames() * l.ds.FeatureDim()

	for i, idx := range group {
		item, err := l.ds.Item(idx)
		if err != nil {
			return nil, err
		}
		batch.VideoIDs[i] = item.VideoID
		copy(batch.Features.Data[i*featStride:(i+1)*featStride], item.Features.Data)
		copy(batch.Mask.Data[i*l.ds.MaxFrames():(i+1)*l.ds.MaxFrames()], item.Mask)
		copy(batch.Labels.Data[i*l.ds.NumClasses():(i+1)*l.ds.NumClasses()], item.GroundTruth)
	}
	return batch, nil
}
