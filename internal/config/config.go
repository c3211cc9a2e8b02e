// Package config loads the daemon's settings from ~/.cmdk/config.yaml.
// Every key is optional; anything missing or invalid keeps its default.
package config

import (
	"fmt"
	"time"

	"github.com/atinylittleshell/cmdk/internal/apps"
	"github.com/atinylittleshell/cmdk/internal/axtext"
	"github.com/atinylittleshell/cmdk/internal/detect"
	"github.com/atinylittleshell/cmdk/internal/history"
	"github.com/atinylittleshell/cmdk/internal/hotkey"
	"github.com/atinylittleshell/cmdk/internal/inject"
	"gopkg.in/yaml.v3"
)

// Duration reads Go duration strings ("500ms") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"500ms\"", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// LogLevel is a zap level name. Empty means the build default.
	LogLevel string `yaml:"log_level"`
	// SocketPath overrides ~/.cmdk/cmdk.sock.
	SocketPath string `yaml:"socket_path"`
	// DefaultShell breaks ties between shells found under one host; it
	// defaults to the basename of $SHELL.
	DefaultShell string `yaml:"default_shell"`

	Detection DetectionConfig `yaml:"detection"`
	Text      TextConfig      `yaml:"text"`
	Inject    InjectConfig    `yaml:"inject"`
	Hotkey    HotkeyConfig    `yaml:"hotkey"`
	History   HistoryConfig   `yaml:"history"`
	Apps      apps.Extra      `yaml:"apps"`
}

type DetectionConfig struct {
	DetectTimeout  Duration `yaml:"detect_timeout"`
	CaptureTimeout Duration `yaml:"capture_timeout"`
}

type TextConfig struct {
	MaxBytes    int `yaml:"max_bytes"`
	MaxElements int `yaml:"max_elements"`
}

type InjectConfig struct {
	ScriptChunkSize  int      `yaml:"script_chunk_size"`
	ScriptChunkDelay Duration `yaml:"script_chunk_delay"`
	TypedChunkDelay  Duration `yaml:"typed_chunk_delay"`
	ResignDelay      Duration `yaml:"resign_delay"`
	SettleDelay      Duration `yaml:"settle_delay"`
}

type HotkeyConfig struct {
	Debounce Duration `yaml:"debounce"`
}

type HistoryConfig struct {
	MaxEntriesPerKey int `yaml:"max_entries_per_key"`
	MaxKeys          int `yaml:"max_keys"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	limits := axtext.DefaultLimits()
	inj := inject.DefaultConfig()
	return &Config{
		Detection: DetectionConfig{
			DetectTimeout:  Duration(detect.DefaultDetectTimeout),
			CaptureTimeout: Duration(detect.DefaultCaptureTimeout),
		},
		Text: TextConfig{
			MaxBytes:    limits.MaxBytes,
			MaxElements: limits.MaxElements,
		},
		Inject: InjectConfig{
			ScriptChunkSize:  inj.ScriptChunkSize,
			ScriptChunkDelay: Duration(inj.ScriptChunkDelay),
			TypedChunkDelay:  Duration(inj.TypedChunkDelay),
			ResignDelay:      Duration(inj.ResignDelay),
			SettleDelay:      Duration(inj.SettleDelay),
		},
		Hotkey: HotkeyConfig{
			Debounce: Duration(hotkey.DefaultDebounce),
		},
		History: HistoryConfig{
			MaxEntriesPerKey: history.DefaultMaxEntriesPerKey,
			MaxKeys:          history.DefaultMaxKeys,
		},
	}
}

// TextLimits converts the text budgets for the accessibility reader.
func (c *Config) TextLimits() axtext.Limits {
	return axtext.Limits{MaxBytes: c.Text.MaxBytes, MaxElements: c.Text.MaxElements}
}

// InjectSettings converts the injection pacing for the engine.
func (c *Config) InjectSettings() inject.Config {
	return inject.Config{
		ScriptChunkSize:  c.Inject.ScriptChunkSize,
		ScriptChunkDelay: c.Inject.ScriptChunkDelay.Std(),
		TypedChunkDelay:  c.Inject.TypedChunkDelay.Std(),
		ResignDelay:      c.Inject.ResignDelay.Std(),
		SettleDelay:      c.Inject.SettleDelay.Std(),
	}
}
