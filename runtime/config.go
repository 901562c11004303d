package runtime

import (
	"os"

	"gopkg.in/yaml.v2"

	"github.com/wippyai/wasm-bridge/alloc"
	"github.com/wippyai/wasm-bridge/canon"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/registry"
	"github.com/wippyai/wasm-bridge/trace"
)

// Config is the runtime configuration, usually read from YAML.
type Config struct {
	// Engine is "wazero" (default) or "wasmtime".
	Engine string `yaml:"engine"`
	// MemoryLimitPages caps guest memory in 64KiB pages. 0 means the
	// engine default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
	EnableWASI       bool   `yaml:"enable_wasi"`

	AllocatorExport  string `yaml:"allocator_export"`
	PostReturnPrefix string `yaml:"post_return_prefix"`
	// RecordParams is "pointer" (default) or "flat".
	RecordParams string `yaml:"record_params"`

	// InvalidateOnTrap makes an instance refuse further calls after a
	// guest trap or an out-of-bounds memory access.
	InvalidateOnTrap bool `yaml:"invalidate_on_trap"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing trace.Config  `yaml:"tracing"`
}

type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `yaml:"level"`
	// File, when set, receives log output through a rotating writer.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Engine:           engine.Wazero,
		AllocatorExport:  alloc.DefaultExport,
		PostReturnPrefix: registry.DefaultPostReturnPrefix,
		RecordParams:     canon.RecordsByPointer.String(),
		InvalidateOnTrap: true,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Namespace: "wasm_bridge",
		},
		Tracing: trace.Config{
			SampleRate: 1,
			Endpoint:   trace.DefaultEndpoint,
			AppName:    "wasm-bridge",
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Load("read config "+path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig. Unknown keys are an
// error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.Engine {
	case "", engine.Wazero, engine.Wasmtime:
	default:
		return errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Path("engine").
			Detail("unknown engine %q, want one of %v", c.Engine, engine.Names()).
			Build()
	}
	if _, ok := canon.ParseConvention(c.RecordParams); !ok {
		return errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Path("record_params").
			Detail("unknown convention %q, want pointer or flat", c.RecordParams).
			Build()
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Path("tracing", "sample_rate").
			Detail("%v is outside [0, 1]", c.Tracing.SampleRate).
			Build()
	}
	return nil
}

// Convention returns the parsed record_params value.
func (c Config) Convention() canon.Convention {
	conv, _ := canon.ParseConvention(c.RecordParams)
	return conv
}

func (c Config) registryOptions() registry.Options {
	return registry.Options{
		AllocatorExport:  c.AllocatorExport,
		PostReturnPrefix: c.PostReturnPrefix,
		Convention:       c.Convention(),
	}
}

func (c Config) engineConfig() *engine.Config {
	return &engine.Config{
		MemoryLimitPages: c.MemoryLimitPages,
		EnableWASI:       c.EnableWASI,
	}
}
