// Package trainer drives the supervised epoch loop: train batches through
// the external runtime, evaluate with GAP@k, checkpoint, and record the
// run. All numerical work happens in the runtime; this package owns
// orchestration only.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/w-garcia/nextvlad-go/internal/dataset"
	"github.com/w-garcia/nextvlad-go/internal/feature"
	"github.com/w-garcia/nextvlad-go/internal/gap"
	"github.com/w-garcia/nextvlad-go/internal/runlog"
	"github.com/w-garcia/nextvlad-go/internal/telemetry"
	"github.com/w-garcia/nextvlad-go/internal/trainrt"
)

// Runtime is the slice of the training service the trainer needs. The
// trainrt client satisfies it; tests substitute a stub.
type Runtime interface {
	CreateModel(ctx context.Context, spec trainrt.ModelSpec) (string, error)
	TrainStep(ctx context.Context, modelID string, features, mask, labels *feature.Tensor) (float64, error)
	Forward(ctx context.Context, modelID string, features, mask *feature.Tensor) (*feature.Tensor, error)
	ExportState(ctx context.Context, modelID string) ([]byte, error)
}

// Config holds the training-run parameters.
type Config struct {
	MaxFrames     int
	GapK          int
	NumEpochs     int
	BatchSize     int
	LoaderWorkers int
	CkptDir       string
	LearningRate  float64
	LRStep        int
	Seed          int64
}

// Trainer binds datasets, the runtime, and bookkeeping for one run.
type Trainer struct {
	rt     Runtime
	train  *dataset.Dataset
	test   *dataset.Dataset
	cfg    Config
	logger *slog.Logger
	runs   *runlog.Log // optional
}

// New builds a trainer. runs may be nil to skip run-log bookkeeping.
func New(rt Runtime, train, test *dataset.Dataset, cfg Config, logger *slog.Logger, runs *runlog.Log) (*Trainer, error) {
	if cfg.NumEpochs <= 0 {
		return nil, fmt.Errorf("trainer: epoch count must be positive, got %d", cfg.NumEpochs)
	}
	if cfg.GapK <= 0 {
		return nil, fmt.Errorf("trainer: gap k must be positive, got %d", cfg.GapK)
	}
	if train.FeatureDim() != test.FeatureDim() {
		return nil, fmt.Errorf("trainer: train feature dim %d does not match test %d",
			train.FeatureDim(), test.FeatureDim())
	}
	if train.NumClasses() != test.NumClasses() {
		return nil, fmt.Errorf("trainer: train has %d classes but test has %d; load both splits with the same class count",
			train.NumClasses(), test.NumClasses())
	}
	return &Trainer{rt: rt, train: train, test: test, cfg: cfg, logger: logger, runs: runs}, nil
}

// Run executes the full training run and returns the final GAP score.
func (t *Trainer) Run(ctx context.Context) (float64, error) {
	if err := os.MkdirAll(t.cfg.CkptDir, 0755); err != nil {
		return 0, fmt.Errorf("trainer: creating checkpoint dir: %w", err)
	}

	modelID, err := t.rt.CreateModel(ctx, trainrt.ModelSpec{
		Arch:         "nextvlad",
		NumClasses:   t.train.NumClasses(),
		MaxFrames:    t.cfg.MaxFrames,
		FeatureDim:   t.train.FeatureDim(),
		LearningRate: t.cfg.LearningRate,
		LRStep:       t.cfg.LRStep,
	})
	if err != nil {
		return 0, err
	}

	var runID string
	if t.runs != nil {
		runID, err = t.runs.StartRun(ctx, "nextvlad", t.cfg.GapK)
		if err != nil {
			return 0, err
		}
	}

	finalGAP := 0.0
	for epoch := 0; epoch < t.cfg.NumEpochs; epoch++ {
		loss, err := t.trainEpoch(ctx, modelID, epoch)
		if err != nil {
			return 0, err
		}

		gapScore, err := t.evaluate(ctx, modelID)
		if err != nil {
			return 0, err
		}
		finalGAP = gapScore
		telemetry.GAPScore.Set(gapScore)
		telemetry.EpochsCompletedTotal.Inc()
		t.logger.Info("epoch complete", "epoch", epoch, "loss", loss,
			fmt.Sprintf("gap@%d", t.cfg.GapK), gapScore)

		ckptPath, err := t.saveCheckpoint(ctx, modelID, epoch, gapScore)
		if err != nil {
			return 0, err
		}
		t.logger.Info("model saved", "path", ckptPath)

		if t.runs != nil {
			err := t.runs.RecordEpoch(ctx, runID, runlog.EpochRecord{
				Epoch: epoch, Loss: loss, GAP: gapScore, Checkpoint: ckptPath,
			})
			if err != nil {
				return 0, err
			}
		}
	}

	if t.runs != nil {
		if err := t.runs.FinishRun(ctx, runID); err != nil {
			return 0, err
		}
	}
	return finalGAP, nil
}

// trainEpoch streams shuffled batches through the runtime and returns the
// mean loss. The seed varies per epoch so each epoch sees a new order.
func (t *Trainer) trainEpoch(ctx context.Context, modelID string, epoch int) (float64, error) {
	loader := dataset.NewLoader(t.train, t.cfg.BatchSize, t.cfg.LoaderWorkers, true, t.cfg.Seed+int64(epoch))
	total := loader.NumBatches()

	var lossSum float64
	done := 0
	for res := range loader.Batches(ctx) {
		if res.Err != nil {
			return 0, res.Err
		}
		loss, err := t.rt.TrainStep(ctx, modelID, res.Batch.Features, res.Batch.Mask, res.Batch.Labels)
		if err != nil {
			return 0, err
		}
		lossSum += loss
		done++
		telemetry.TrainLoss.Set(loss)
		telemetry.BatchesProcessedTotal.WithLabelValues("train").Inc()
		t.logger.Debug("train step", "epoch", epoch, "batch", done, "total", total,
			"loss", fmt.Sprintf("%.4f", loss))
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if done == 0 {
		return 0, fmt.Errorf("trainer: no training batches produced")
	}
	return lossSum / float64(done), nil
}

// evaluate runs the test split forward-only and scores GAP@k.
func (t *Trainer) evaluate(ctx context.Context, modelID string) (float64, error) {
	loader := dataset.NewLoader(t.test, t.cfg.BatchSize, t.cfg.LoaderWorkers, false, t.cfg.Seed)

	var preds, actuals [][]float32
	for res := range loader.Batches(ctx) {
		if res.Err != nil {
			return 0, res.Err
		}
		out, err := t.rt.Forward(ctx, modelID, res.Batch.Features, res.Batch.Mask)
		if err != nil {
			return 0, err
		}
		b := res.Batch.Size()
		if len(out.Shape) != 2 || out.Shape[0] != b {
			return 0, fmt.Errorf("trainer: runtime returned outputs shaped %v for a batch of %d", out.Shape, b)
		}
		classes := out.Shape[1]
		labelDim := res.Batch.Labels.Shape[1]
		for i := 0; i < b; i++ {
			preds = append(preds, out.Data[i*classes:(i+1)*classes])
			actuals = append(actuals, res.Batch.Labels.Data[i*labelDim:(i+1)*labelDim])
		}
		telemetry.BatchesProcessedTotal.WithLabelValues("eval").Inc()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return gap.Calculate(preds, actuals, t.cfg.GapK)
}

// saveCheckpoint exports the runtime's state dict and writes it under the
// epoch/score checkpoint name.
func (t *Trainer) saveCheckpoint(ctx context.Context, modelID string, epoch int, gapScore float64) (string, error) {
	state, err := t.rt.ExportState(ctx, modelID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(t.cfg.CkptDir, CheckpointName(epoch, t.cfg.GapK, gapScore))
	if err := os.WriteFile(path, state, 0644); err != nil {
		return "", fmt.Errorf("trainer: writing checkpoint: %w", err)
	}
	return path, nil
}
