package engine

import (
	"context"
	"fmt"
	"sort"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// Engine names accepted by New.
const (
	Wazero   = "wazero"
	Wasmtime = "wasmtime"
)

// Engine compiles guest binaries.
type Engine interface {
	Name() string
	Compile(ctx context.Context, wasm []byte) (Module, error)
	Close(ctx context.Context) error
}

// Module is a compiled guest binary.
type Module interface {
	// ExportedFunctionNames lists the module's function exports, sorted.
	ExportedFunctionNames() []string
	Instantiate(ctx context.Context) (wasmbridge.Instance, error)
	Close(ctx context.Context) error
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages caps the linear memory of each instance in 64KiB pages.
	// 0 means the runtime default.
	MemoryLimitPages uint32

	// EnableWASI makes wasi_snapshot_preview1 available to guests.
	EnableWASI bool
}

// New creates the engine registered under name. An empty name selects wazero.
func New(ctx context.Context, name string, cfg *Config) (Engine, error) {
	switch name {
	case "", Wazero:
		return NewWazeroEngine(ctx, cfg)
	case Wasmtime:
		return NewWasmtimeEngine(cfg)
	default:
		return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Detail("unknown engine %q", name).
			Build()
	}
}

// Names returns the engine names accepted by New.
func Names() []string {
	return []string{Wasmtime, Wazero}
}

func sortedNames(names []string) []string {
	sort.Strings(names)
	return names
}

func compileError(engine string, err error) error {
	return errors.Load(fmt.Sprintf("%s compile", engine), err)
}

func instantiateError(engine string, err error) error {
	return errors.Load(fmt.Sprintf("%s instantiate", engine), err)
}
