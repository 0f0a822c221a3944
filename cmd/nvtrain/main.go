package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/lmittmann/tint"

	"github.com/w-garcia/nextvlad-go/internal/config"
	"github.com/w-garcia/nextvlad-go/internal/dataset"
	"github.com/w-garcia/nextvlad-go/internal/runlog"
	"github.com/w-garcia/nextvlad-go/internal/telemetry"
	"github.com/w-garcia/nextvlad-go/internal/trainer"
	"github.com/w-garcia/nextvlad-go/internal/trainrt"
)

func main() {
	parser := argparse.NewParser("nvtrain", "Train a NeXtVLAD video classifier over frame-level features")
	trainFeatsDir := parser.String("t", "train-feats", &argparse.Options{Help: "Directory where train features are stored", Required: true})
	testFeatsDir := parser.String("e", "test-feats", &argparse.Options{Help: "Directory where test features are stored", Required: true})
	maxFrames := parser.Int("m", "max-frames", &argparse.Options{Help: "Max frames length of dataset", Default: 50})
	gapK := parser.Int("k", "gapk", &argparse.Options{Help: "Value of K for computing GAP score", Default: 20})
	numEpochs := parser.Int("n", "num-epochs", &argparse.Options{Help: "Number of epochs", Default: 5})
	ckptDir := parser.String("c", "ckpt-dir", &argparse.Options{Help: "Where to save checkpoints", Default: "ckpt/"})
	numClasses := parser.Int("", "num-classes", &argparse.Options{Help: "Class vocabulary size (default: inferred from train labels)", Default: 0})
	seed := parser.Int("", "seed", &argparse.Options{Help: "Shuffle seed", Default: 1})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel(cfg.LogLevel),
			TimeFormat: "15:04:05",
		}),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	trainSet, err := dataset.Load(dataset.Options{
		FeatsDir: *trainFeatsDir, MaxFrames: *maxFrames, NumClasses: *numClasses,
	})
	if err != nil {
		logger.Error("loading train split", "error", err)
		os.Exit(1)
	}
	testSet, err := dataset.Load(dataset.Options{
		FeatsDir: *testFeatsDir, MaxFrames: *maxFrames, NumClasses: trainSet.NumClasses(),
	})
	if err != nil {
		logger.Error("loading test split", "error", err)
		os.Exit(1)
	}
	logger.Info("datasets loaded",
		"train_videos", trainSet.Len(), "test_videos", testSet.Len(),
		"classes", trainSet.NumClasses(), "feature_dim", trainSet.FeatureDim())

	runtime := trainrt.NewClient(&trainrt.Options{
		BaseURL: cfg.RuntimeURL,
		Port:    cfg.RuntimePort,
		Logger:  logger,
	})
	if err := runtime.Health(ctx); err != nil {
		logger.Error("training runtime unavailable", "error", err)
		os.Exit(1)
	}

	runs, err := runlog.Open(cfg.RunLogPath)
	if err != nil {
		logger.Error("opening run log", "error", err)
		os.Exit(1)
	}
	defer runs.Close()

	if cfg.MetricsPort > 0 {
		telemetry.StartMetricsServer(cfg.MetricsPort, logger)
	}

	tr, err := trainer.New(runtime, trainSet, testSet, trainer.Config{
		MaxFrames:     *maxFrames,
		GapK:          *gapK,
		NumEpochs:     *numEpochs,
		BatchSize:     cfg.BatchSize,
		LoaderWorkers: cfg.LoaderWorkers,
		CkptDir:       *ckptDir,
		LearningRate:  0.001,
		LRStep:        25,
		Seed:          int64(*seed),
	}, logger, runs)
	if err != nil {
		logger.Error("configuring trainer", "error", err)
		os.Exit(1)
	}

	gapScore, err := tr.Run(ctx)
	if err != nil {
		logger.Error("training failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("GAP(%d): %.3f\n", *gapK, gapScore)
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
