package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akamensky/argparse"
	"github.com/lmittmann/tint"

	"github.com/w-garcia/nextvlad-go/internal/backbone"
	"github.com/w-garcia/nextvlad-go/internal/config"
	"github.com/w-garcia/nextvlad-go/internal/extractor"
	"github.com/w-garcia/nextvlad-go/internal/feature"
	"github.com/w-garcia/nextvlad-go/internal/models"
	"github.com/w-garcia/nextvlad-go/internal/pca"
	"github.com/w-garcia/nextvlad-go/internal/preprocess"
	"github.com/w-garcia/nextvlad-go/internal/storage"
	"github.com/w-garcia/nextvlad-go/internal/telemetry"
)

func main() {
	parser := argparse.NewParser("nvextract", "Extract frame-level backbone features from a video")
	videoPath := parser.String("v", "video", &argparse.Options{Help: "Video file to extract features from"})
	framesDir := parser.String("f", "frames", &argparse.Options{Help: "Directory of pre-extracted frames (alternative to --video)"})
	outputDir := parser.String("o", "output", &argparse.Options{Help: "Output directory", Default: "output_feats"})
	backboneName := parser.String("b", "backbone", &argparse.Options{Help: "Backbone profile: " + strings.Join(preprocess.ProfileNames(), ", "), Default: "inceptionresnetv2"})
	modelPath := parser.String("", "model", &argparse.Options{Help: "Backbone ONNX file (default: <models-dir>/<backbone>.onnx)"})
	interval := parser.Int("i", "interval", &argparse.Options{Help: "Seconds between extracted frames", Default: 15})
	pcaDir := parser.String("p", "pca", &argparse.Options{Help: "Directory with fitted PCA parameters (center/eigenvals/eigenvecs)"})
	whiten := parser.Flag("w", "whiten", &argparse.Options{Help: "Whiten PCA components"})
	usePostgres := parser.Flag("", "postgres", &argparse.Options{Help: "Also store features in the Postgres/pgvector feature store"})
	initSchema := parser.Flag("", "init-schema", &argparse.Options{Help: "Create the Postgres schema and exit"})
	searchFeat := parser.String("s", "search", &argparse.Options{Help: "Search stored features for frames nearest the single-row .feat query and exit"})
	searchLimit := parser.Int("", "limit", &argparse.Options{Help: "Search result count", Default: 10})

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

	ctx := context.Background()

	profile, err := preprocess.ProfileByName(*backboneName)
	if err != nil {
		logger.Error("unknown backbone", "error", err)
		os.Exit(1)
	}

	if *initSchema {
		if err := storage.InitSchema(ctx, cfg.DatabaseURL, featureDim(profile, *pcaDir, logger)); err != nil {
			logger.Error("initializing schema", "error", err)
			os.Exit(1)
		}
		logger.Info("schema ready")
		return
	}

	if *searchFeat != "" {
		if err := runSearch(ctx, cfg, profile, *pcaDir, *searchFeat, *searchLimit, logger); err != nil {
			logger.Error("search failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if *videoPath == "" && *framesDir == "" {
		fmt.Fprint(os.Stderr, parser.Usage("one of --video or --frames is required"))
		os.Exit(1)
	}

	if cfg.MetricsPort > 0 {
		telemetry.StartMetricsServer(cfg.MetricsPort, logger)
	}

	if err := runExtract(ctx, cfg, profile, extractOpts{
		videoPath:   *videoPath,
		framesDir:   *framesDir,
		outputDir:   *outputDir,
		modelPath:   *modelPath,
		interval:    *interval,
		pcaDir:      *pcaDir,
		whiten:      *whiten,
		usePostgres: *usePostgres,
	}, logger); err != nil {
		logger.Error("extraction failed", "error", err)
		os.Exit(1)
	}
}

type extractOpts struct {
	videoPath   string
	framesDir   string
	outputDir   string
	modelPath   string
	interval    int
	pcaDir      string
	whiten      bool
	usePostgres bool
}

func runExtract(ctx context.Context, cfg *config.Config, profile preprocess.Profile, opts extractOpts, logger *slog.Logger) error {
	frameDir := opts.framesDir
	if opts.videoPath != "" {
		var err error
		frameDir, err = extractor.ExtractFrames(opts.videoPath, opts.outputDir, opts.interval, logger)
		if err != nil {
			return err
		}
	}
	videoName := filepath.Base(strings.TrimSuffix(frameDir, string(filepath.Separator)))

	frames, err := extractor.ListFrames(frameDir)
	if err != nil {
		return fmt.Errorf("reading frames directory '%s': %w", frameDir, err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("no JPEG frames found in directory '%s'", frameDir)
	}
	logger.Info("found frames to process", "count", len(frames))

	var params *pca.Params
	if opts.pcaDir != "" {
		params, err = pca.LoadParams(opts.pcaDir)
		if err != nil {
			return err
		}
		params.Whiten = opts.whiten
	}

	modelPath := opts.modelPath
	if modelPath == "" {
		modelPath = filepath.Join(cfg.ModelsDir, profile.Name+".onnx")
	}
	bb, err := backbone.NewORTBackbone(modelPath, cfg.ORTLibraryPath, profile)
	if err != nil {
		return err
	}
	defer bb.Close()

	transform := preprocess.NewTransform(profile)
	batches, err := feature.CreateBatches(frames, transform.ApplyFile, cfg.ExtractBatch, logger)
	if err != nil {
		return err
	}

	stores := []storage.Store{storage.NewFileStore(opts.outputDir, videoName)}
	if opts.usePostgres {
		dim := profile.FeatureDim
		if params != nil {
			dim = params.OutputDim()
		}
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, dim)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.BindVideo(ctx, videoName); err != nil {
			return err
		}
		stores = append(stores, pg)
	}

	frameIdx := 0
	for i, batch := range batches {
		start := time.Now()
		conv, err := bb.Features(batch)
		if err != nil {
			return err
		}
		pooled, err := backbone.PoolFeatures(conv, profile.Pool)
		if err != nil {
			return err
		}

		for r := 0; r < pooled.Rows; r++ {
			vec := pooled.Row(r)
			if params != nil {
				vec, err = params.Apply(vec)
				if err != nil {
					return err
				}
			}

			framePath := frames[frameIdx]
			frameNum, err := extractor.FrameNumber(framePath)
			if err != nil {
				frameNum = frameIdx + 1
			}
			for _, store := range stores {
				if err := store.AddFrameFeature(ctx, models.FrameFeature{
					Frame:     filepath.Base(framePath),
					FrameNum:  frameNum,
					Embedding: vec,
				}); err != nil {
					return err
				}
			}
			frameIdx++
		}

		telemetry.FramesProcessedTotal.Add(float64(pooled.Rows))
		telemetry.BatchesProcessedTotal.WithLabelValues("extract").Inc()
		telemetry.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
		logger.Info("processed batch", "batch", i+1, "total", len(batches))
	}

	for _, store := range stores {
		if err := store.Flush(); err != nil {
			return fmt.Errorf("failed to flush features: %w", err)
		}
	}

	logger.Info("feature extraction complete",
		"video", videoName, "frames", frameIdx,
		"output", filepath.Join(opts.outputDir, videoName+".feat"))
	return nil
}

// runSearch queries the Postgres store for frames nearest the query vector.
func runSearch(ctx context.Context, cfg *config.Config, profile preprocess.Profile, pcaDir, queryPath string, limit int, logger *slog.Logger) error {
	m, err := feature.ReadFile(queryPath)
	if err != nil {
		return err
	}
	if m.Rows != 1 {
		return fmt.Errorf("query file %s holds %d rows, want a single feature vector", queryPath, m.Rows)
	}

	pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, featureDim(profile, pcaDir, logger))
	if err != nil {
		return err
	}
	defer pg.Close()

	results, err := pg.SearchSimilarFrames(ctx, m.Data, limit)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%s\t%d\t%s\t%.4f\n", r.VideoName, r.FrameNumber, r.FramePath, r.Similarity)
	}
	return nil
}

// featureDim reports the stored dimensionality: the backbone's output, or
// the PCA output when a basis is configured.
func featureDim(profile preprocess.Profile, pcaDir string, logger *slog.Logger) int {
	if pcaDir == "" {
		return profile.FeatureDim
	}
	params, err := pca.LoadParams(pcaDir)
	if err != nil {
		logger.Warn("ignoring unreadable PCA parameters", "dir", pcaDir, "error", err)
		return profile.FeatureDim
	}
	return params.OutputDim()
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
