// Package config loads runtime settings from an optional YAML file and
// VOLUME_TOOLS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Log level constants
const (
	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// Log type constants
const (
	LogTypeConsole = "console"
	LogTypeFile    = "file"
)

// Environment variables that override file settings.
const (
	EnvLogLevel = "VOLUME_TOOLS_LOG_LEVEL"
	EnvLogType  = "VOLUME_TOOLS_LOG_TYPE"
	EnvLogFile  = "VOLUME_TOOLS_LOG_FILE"
	EnvWorkers  = "VOLUME_TOOLS_WORKERS"
	EnvCacheDir = "VOLUME_TOOLS_CACHE_DIR"
)

// LoggingSettings holds log level, sink type and file rotation settings.
type LoggingSettings struct {
	Level      string `yaml:"level" validate:"required,oneof=debug info warning error"`
	Type       string `yaml:"type" validate:"required,oneof=console file"`
	FilePath   string `yaml:"file_path" validate:"required_if=Type file"`
	MaxSize    int    `yaml:"max_size" validate:"gte=0,lte=100"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0,lte=10"`
	MaxAge     int    `yaml:"max_age" validate:"gte=0,lte=365"`
}

// ProcessingSettings controls concurrency of image operations.
type ProcessingSettings struct {
	// Workers bounds the goroutines used by resampling, chunked reads and
	// dataset loading.
	Workers int `yaml:"workers" validate:"gte=1,lte=1024"`

	// CacheDir is where the server writes derived images when a tool call
	// has no output_path.
	CacheDir string `yaml:"cache_dir"`
}

// Config is the complete runtime configuration.
type Config struct {
	Logging    LoggingSettings    `yaml:"logging"`
	Processing ProcessingSettings `yaml:"processing"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingSettings{
			Level:      LogLevelInfo,
			Type:       LogTypeConsole,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Processing: ProcessingSettings{
			Workers:  runtime.NumCPU(),
			CacheDir: os.TempDir(),
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogType); ok {
		c.Logging.Type = v
	}
	if v, ok := os.LookupEnv(EnvLogFile); ok {
		c.Logging.FilePath = v
	}
	if v, ok := os.LookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorkers, v, err)
		}
		c.Processing.Workers = n
	}
	if v, ok := os.LookupEnv(EnvCacheDir); ok {
		c.Processing.CacheDir = v
	}
	return nil
}

// Validate checks all settings.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("validation failed for %s: %w", verrs[0].Namespace(), err)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
