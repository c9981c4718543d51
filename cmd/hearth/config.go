package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the hearth configuration file (~/.config/hearth/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	ModelPath string `yaml:"model_path"`
	Backend   string `yaml:"backend"`

	ContextLen     *int64 `yaml:"context_len"`
	BatchSize      *int64 `yaml:"batch_size"`
	Threads        *int64 `yaml:"threads"`
	ThreadsBatch   *int64 `yaml:"threads_batch"`
	CachePrecision string `yaml:"cache_precision"`
	SafetyMargin   *int64 `yaml:"safety_margin"`
	StopMarker     string `yaml:"stop_marker"`

	// Sampling defaults
	Temperature  *float64 `yaml:"temperature"`
	TopP         *float64 `yaml:"top_p"`
	MaxNewTokens *int64   `yaml:"max_new_tokens"`
	Seed         *int64   `yaml:"seed"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "hearth", "config.yaml")
}

// applyModelConfig applies config file defaults to the shared model flags
// when the corresponding CLI flag was not explicitly set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.ModelPath != "" && !c.IsSet("model") {
		modelPath = cfg.ModelPath
	}
	if cfg.Backend != "" && !c.IsSet("backend") {
		backendSel = cfg.Backend
	}
	if cfg.ContextLen != nil && !c.IsSet("context-len") {
		contextLen = *cfg.ContextLen
	}
	if cfg.BatchSize != nil && !c.IsSet("batch-size") {
		batchSize = *cfg.BatchSize
	}
	if cfg.Threads != nil && !c.IsSet("threads") {
		threads = *cfg.Threads
	}
	if cfg.ThreadsBatch != nil && !c.IsSet("threads-batch") {
		threadsBatch = *cfg.ThreadsBatch
	}
	if cfg.CachePrecision != "" && !c.IsSet("cache-precision") {
		cachePrecision = cfg.CachePrecision
	}
	if cfg.SafetyMargin != nil && !c.IsSet("safety-margin") {
		safetyMargin = *cfg.SafetyMargin
	}
	if cfg.StopMarker != "" && !c.IsSet("stop-marker") {
		stopMarker = cfg.StopMarker
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyRunConfig applies config file sampling defaults to run command
// variables.
func applyRunConfig(c *cli.Command, cfg Config, temp, topP *float64, maxNewTokens, seed *int64) {
	applyModelConfig(c, cfg)
	if cfg.Temperature != nil && !c.IsSet("temp") && !c.IsSet("temperature") && !c.IsSet("t") {
		*temp = *cfg.Temperature
	}
	if cfg.TopP != nil && !c.IsSet("top-p") && !c.IsSet("top_p") {
		*topP = *cfg.TopP
	}
	if cfg.MaxNewTokens != nil && !c.IsSet("max-new-tokens") {
		*maxNewTokens = *cfg.MaxNewTokens
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyModelConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
