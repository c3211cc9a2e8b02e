package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atinylittleshell/cmdk/internal/axtext"
	"github.com/atinylittleshell/cmdk/internal/inject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 500*time.Millisecond, cfg.Detection.DetectTimeout.Std())
	assert.Equal(t, 200*time.Millisecond, cfg.Detection.CaptureTimeout.Std())
	assert.Equal(t, 200*time.Millisecond, cfg.Hotkey.Debounce.Std())
	assert.Equal(t, 50, cfg.History.MaxEntriesPerKey)
	assert.Equal(t, 50, cfg.History.MaxKeys)
	assert.Equal(t, axtext.DefaultLimits(), cfg.TextLimits())
	assert.Equal(t, inject.DefaultConfig(), cfg.InjectSettings())
	assert.Empty(t, cfg.LogLevel)
}

func TestLoadFromBytes(t *testing.T) {
	loader := NewLoader(nil)

	t.Run("overrides keep other defaults", func(t *testing.T) {
		result := loader.LoadFromBytes([]byte(`
log_level: debug
default_shell: " fish "
detection:
  detect_timeout: 750ms
inject:
  script_chunk_size: 64
apps:
  terminals:
    - org.example.term
`))
		require.Empty(t, result.Errors)
		cfg := result.Config

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "fish", cfg.DefaultShell)
		assert.Equal(t, 750*time.Millisecond, cfg.Detection.DetectTimeout.Std())
		assert.Equal(t, 200*time.Millisecond, cfg.Detection.CaptureTimeout.Std())
		assert.Equal(t, 64, cfg.InjectSettings().ScriptChunkSize)
		assert.Equal(t, 20*time.Millisecond, cfg.InjectSettings().ScriptChunkDelay)
		assert.Equal(t, []string{"org.example.term"}, cfg.Apps.Terminals)
	})

	t.Run("empty document is the defaults", func(t *testing.T) {
		result := loader.LoadFromBytes(nil)
		assert.Empty(t, result.Errors)
		assert.Equal(t, DefaultConfig(), result.Config)
	})

	t.Run("parse error falls back to defaults", func(t *testing.T) {
		result := loader.LoadFromBytes([]byte("detection: [unclosed"))
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Error(), "parse error")
		assert.Equal(t, DefaultConfig(), result.Config)
	})

	t.Run("bad duration is a parse error", func(t *testing.T) {
		result := loader.LoadFromBytes([]byte("hotkey:\n  debounce: soon\n"))
		require.Len(t, result.Errors, 1)
		assert.Equal(t, DefaultConfig(), result.Config)
	})

	t.Run("invalid values are reset individually", func(t *testing.T) {
		result := loader.LoadFromBytes([]byte(`
log_level: chatty
text:
  max_bytes: -1
inject:
  typed_chunk_delay: -5ms
history:
  max_keys: 0
  max_entries_per_key: 10
`))
		assert.Len(t, result.Errors, 4)
		cfg := result.Config
		assert.Empty(t, cfg.LogLevel)
		assert.Equal(t, 4096, cfg.Text.MaxBytes)
		assert.Equal(t, 15*time.Millisecond, cfg.Inject.TypedChunkDelay.Std())
		assert.Equal(t, 50, cfg.History.MaxKeys)
		assert.Equal(t, 10, cfg.History.MaxEntriesPerKey)
	})
}

func TestLoadFromFile(t *testing.T) {
	loader := NewLoader(nil)

	t.Run("missing file is the defaults", func(t *testing.T) {
		result, err := loader.LoadFromFile(filepath.Join(t.TempDir(), "config.yaml"))
		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.Equal(t, DefaultConfig(), result.Config)
	})

	t.Run("reads the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("socket_path: /tmp/cmdk-test.sock\n"), 0644))

		result, err := loader.LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/cmdk-test.sock", result.Config.SocketPath)
	})

	t.Run("unreadable path is an error", func(t *testing.T) {
		_, err := loader.LoadFromFile(t.TempDir())
		assert.Error(t, err)
	})
}

func TestDurationYAML(t *testing.T) {
	out, err := yaml.Marshal(HotkeyConfig{Debounce: Duration(150 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, "debounce: 150ms\n", string(out))
}
