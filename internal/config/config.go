// Package config loads environment-driven settings shared by the CLIs.
// Per-run parameters (directories, epoch counts) come from flags; the
// environment carries service endpoints and worker tuning.
package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Training runtime service.
	RuntimeURL  string `env:"NEXTVLAD_RUNTIME_URL"  envDefault:"http://localhost"`
	RuntimePort int    `env:"NEXTVLAD_RUNTIME_PORT" envDefault:"9090"`

	// Optional Postgres feature store; empty disables it.
	DatabaseURL string `env:"NEXTVLAD_DATABASE_URL" envDefault:""`

	// ONNX Runtime shared library; empty uses the default lookup.
	ORTLibraryPath string `env:"ONNXRUNTIME_SHARED_LIBRARY_PATH" envDefault:""`
	// Directory holding <backbone>.onnx exports.
	ModelsDir string `env:"NEXTVLAD_MODELS_DIR" envDefault:"models"`

	// Loader/extraction parallelism and batch sizes.
	BatchSize     int `env:"NEXTVLAD_BATCH_SIZE"     envDefault:"8"`
	LoaderWorkers int `env:"NEXTVLAD_LOADER_WORKERS" envDefault:"4"`
	ExtractBatch  int `env:"NEXTVLAD_EXTRACT_BATCH"  envDefault:"32"`

	// Run log database for training history.
	RunLogPath string `env:"NEXTVLAD_RUNLOG" envDefault:"runs.db"`

	// Metrics server port; 0 disables it.
	MetricsPort int `env:"NEXTVLAD_METRICS_PORT" envDefault:"0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
