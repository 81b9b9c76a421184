// Package config loads the service configuration: defaults, then an
// optional YAML file, then GRADCAM_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/gradcam/internal/errs"
	"github.com/born-ml/gradcam/internal/model"
	"github.com/born-ml/gradcam/internal/parallel"
	"github.com/born-ml/gradcam/internal/preprocess"
)

// Environment overrides.
const (
	EnvAddr      = "GRADCAM_ADDR"
	EnvWeights   = "GRADCAM_WEIGHTS"
	EnvOutputDir = "GRADCAM_OUTPUT_DIR"
	EnvLogLevel  = "GRADCAM_LOG_LEVEL"
	EnvDeviceLog = "GRADCAM_DEVICE_LOG"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Explain   ExplainConfig   `yaml:"explain"`
	DeviceLog DeviceLogConfig `yaml:"device_log"`
	Logging   LoggingConfig   `yaml:"logging"`
	Parallel  ParallelConfig  `yaml:"parallel"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ModelConfig locates the weights and fixes the input transform.
type ModelConfig struct {
	WeightsPath string    `yaml:"weights_path"`
	ImageSize   int       `yaml:"image_size"` // multiple of 8
	Mean        []float32 `yaml:"mean"`
	Std         []float32 `yaml:"std"`
}

// ExplainConfig configures the pipeline output.
type ExplainConfig struct {
	OutputDir    string  `yaml:"output_dir"`
	TargetLayer  string  `yaml:"target_layer"`
	Alpha        float64 `yaml:"alpha"`
	DefaultGroup string  `yaml:"default_group"`
}

// DeviceLogConfig locates the device event log.
type DeviceLogConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// ParallelConfig bounds the CPU kernels. Workers <= 0 uses every CPU.
type ParallelConfig struct {
	Workers  int `yaml:"workers"`
	MinChunk int `yaml:"min_chunk"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":5000"},
		Model: ModelConfig{
			WeightsPath: "models/cnn_model.safetensors",
			ImageSize:   128,
			Mean:        append([]float32(nil), preprocess.ImageNetMean[:]...),
			Std:         append([]float32(nil), preprocess.ImageNetStd[:]...),
		},
		Explain: ExplainConfig{
			OutputDir:    "output",
			TargetLayer:  model.TargetLayer,
			Alpha:        0.4,
			DefaultGroup: "default",
		},
		DeviceLog: DeviceLogConfig{Path: "device_data.jsonl"},
		Logging:   LoggingConfig{Level: "info"},
		Parallel:  ParallelConfig{MinChunk: 1},
	}
}

// Load returns the configuration at path over the defaults, with
// environment overrides applied last. An empty path skips the file. Every
// failure is a Configuration error.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, errs.Errorf(errs.Configuration, op, "read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, errs.Errorf(errs.Configuration, op, "parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, errs.E(errs.Configuration, op, err)
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides applies GRADCAM_* variables.
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvWeights); ok && v != "" {
		c.Model.WeightsPath = v
	}
	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		c.Explain.OutputDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvDeviceLog); ok && v != "" {
		c.DeviceLog.Path = v
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var problems []string

	if c.Model.ImageSize <= 0 || c.Model.ImageSize%8 != 0 {
		problems = append(problems, fmt.Sprintf("model.image_size %d must be a positive multiple of 8", c.Model.ImageSize))
	}
	if len(c.Model.Mean) != 3 {
		problems = append(problems, fmt.Sprintf("model.mean needs 3 values, got %d", len(c.Model.Mean)))
	}
	if len(c.Model.Std) != 3 {
		problems = append(problems, fmt.Sprintf("model.std needs 3 values, got %d", len(c.Model.Std)))
	}
	for i, s := range c.Model.Std {
		if s <= 0 {
			problems = append(problems, "model.std["+strconv.Itoa(i)+"] must be positive")
		}
	}
	if c.Model.WeightsPath == "" {
		problems = append(problems, "model.weights_path is required")
	}
	if c.Explain.Alpha <= 0 || c.Explain.Alpha >= 1 {
		problems = append(problems, fmt.Sprintf("explain.alpha %v must be in (0, 1)", c.Explain.Alpha))
	}
	if c.Explain.OutputDir == "" {
		problems = append(problems, "explain.output_dir is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q must be debug, info, warn or error", c.Logging.Level))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Architecture returns the network topology at the configured resolution.
func (c *Config) Architecture() model.Architecture {
	return model.DefaultArchitecture().WithImageSize(c.Model.ImageSize)
}

// PreprocessOptions returns the input transform. Call after Validate.
func (c *Config) PreprocessOptions() preprocess.Options {
	opts := preprocess.Options{Size: c.Model.ImageSize}
	copy(opts.Mean[:], c.Model.Mean)
	copy(opts.Std[:], c.Model.Std)
	return opts
}

// ParallelOptions returns the kernel parallelism.
func (c *Config) ParallelOptions() parallel.Config {
	cfg := parallel.DefaultConfig().WithWorkers(c.Parallel.Workers)
	if c.Parallel.MinChunk > 0 {
		cfg.MinChunkSize = c.Parallel.MinChunk
	}
	return cfg
}
