package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Loader handles loading and validating config.yaml.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger,
	}
}

// LoadResult contains the result of loading a configuration file.
type LoadResult struct {
	Config *Config
	Errors []error
}

// LoadFromFile loads configuration from path.
// Returns the configuration and any non-fatal errors encountered.
// If the file doesn't exist, returns default configuration with no error.
func (l *Loader) LoadFromFile(path string) (*LoadResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.logger.Debug("no config file, using defaults", zap.String("path", path))
			return &LoadResult{Config: DefaultConfig(), Errors: []error{}}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.LoadFromBytes(content), nil
}

// LoadFromBytes parses YAML source. A document that fails to parse yields
// the defaults and the parse error.
func (l *Loader) LoadFromBytes(source []byte) *LoadResult {
	result := &LoadResult{
		Config: DefaultConfig(),
		Errors: []error{},
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(source))
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		result.Errors = append(result.Errors, fmt.Errorf("parse error: %w", err))
		return result
	}

	result.Errors = append(result.Errors, validate(cfg)...)
	result.Config = cfg

	l.logger.Debug("loaded config", zap.Int("errors", len(result.Errors)))
	return result
}

// validate resets invalid values to their defaults and reports each one.
func validate(cfg *Config) []error {
	defaults := DefaultConfig()
	var errs []error

	if cfg.LogLevel != "" {
		if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
			cfg.LogLevel = defaults.LogLevel
		}
	}
	cfg.DefaultShell = strings.TrimSpace(cfg.DefaultShell)

	positiveDuration := func(name string, d *Duration, def Duration) {
		if *d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, using %s", name, def.Std()))
			*d = def
		}
	}
	nonNegativeDuration := func(name string, d *Duration, def Duration) {
		if *d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, using %s", name, def.Std()))
			*d = def
		}
	}
	positiveInt := func(name string, n *int, def int) {
		if *n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, using %d", name, def))
			*n = def
		}
	}

	positiveDuration("detection.detect_timeout", &cfg.Detection.DetectTimeout, defaults.Detection.DetectTimeout)
	positiveDuration("detection.capture_timeout", &cfg.Detection.CaptureTimeout, defaults.Detection.CaptureTimeout)
	positiveInt("text.max_bytes", &cfg.Text.MaxBytes, defaults.Text.MaxBytes)
	positiveInt("text.max_elements", &cfg.Text.MaxElements, defaults.Text.MaxElements)
	positiveInt("inject.script_chunk_size", &cfg.Inject.ScriptChunkSize, defaults.Inject.ScriptChunkSize)
	nonNegativeDuration("inject.script_chunk_delay", &cfg.Inject.ScriptChunkDelay, defaults.Inject.ScriptChunkDelay)
	nonNegativeDuration("inject.typed_chunk_delay", &cfg.Inject.TypedChunkDelay, defaults.Inject.TypedChunkDelay)
	nonNegativeDuration("inject.resign_delay", &cfg.Inject.ResignDelay, defaults.Inject.ResignDelay)
	nonNegativeDuration("inject.settle_delay", &cfg.Inject.SettleDelay, defaults.Inject.SettleDelay)
	nonNegativeDuration("hotkey.debounce", &cfg.Hotkey.Debounce, defaults.Hotkey.Debounce)
	positiveInt("history.max_entries_per_key", &cfg.History.MaxEntriesPerKey, defaults.History.MaxEntriesPerKey)
	positiveInt("history.max_keys", &cfg.History.MaxKeys, defaults.History.MaxKeys)

	return errs
}
