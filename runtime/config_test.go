package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/canon"
	"github.com/wippyai/wasm-bridge/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "wazero", cfg.Engine)
	require.Equal(t, "cabi_realloc", cfg.AllocatorExport)
	require.Equal(t, "cabi_post_", cfg.PostReturnPrefix)
	require.Equal(t, canon.RecordsByPointer, cfg.Convention())
	require.True(t, cfg.InvalidateOnTrap)
	require.False(t, cfg.Metrics.Enabled)
	require.False(t, cfg.Tracing.Enabled)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
engine: wasmtime
memory_limit_pages: 256
record_params: flat
invalidate_on_trap: false
log:
  level: debug
  file: /tmp/bridge.log
metrics:
  enabled: true
tracing:
  enabled: true
  sample_rate: 0.25
`))
	require.NoError(t, err)
	require.Equal(t, "wasmtime", cfg.Engine)
	require.Equal(t, uint32(256), cfg.MemoryLimitPages)
	require.Equal(t, canon.RecordsFlattened, cfg.Convention())
	require.False(t, cfg.InvalidateOnTrap)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "/tmp/bridge.log", cfg.Log.File)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, 0.25, cfg.Tracing.SampleRate)

	// untouched keys keep their defaults
	require.Equal(t, "cabi_realloc", cfg.AllocatorExport)
	require.Equal(t, "wasm_bridge", cfg.Metrics.Namespace)
	require.Equal(t, 100, cfg.Log.MaxSizeMB)
	require.Equal(t, "wasm-bridge", cfg.Tracing.AppName)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":      "engines: wazero\n",
		"unknown engine":   "engine: v8\n",
		"unknown params":   "record_params: stack\n",
		"bad sample rate":  "tracing:\n  sample_rate: 2\n",
		"malformed yaml":   "engine: [\n",
		"wrong value type": "memory_limit_pages: lots\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			require.Error(t, err)
			require.True(t, errors.IsKind(err, errors.KindInvalidInput))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("post_return_prefix: free_\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "free_", cfg.PostReturnPrefix)
	require.Equal(t, "free_", cfg.registryOptions().PostReturnPrefix)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	l, closeFn, err := NewLogger(LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	l.Debug("hello from the bridge")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from the bridge")
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, _, err := NewLogger(LogConfig{Level: "loud"})
	require.True(t, errors.IsKind(err, errors.KindInvalidInput))
}
