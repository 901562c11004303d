package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

// initializeExport is run on instantiation when a reactor module exports it.
const initializeExport = "_initialize"

// WazeroEngine implements Engine using wazero runtime
type WazeroEngine struct {
	runtime    wazero.Runtime
	cfg        Config
	wasiInitMu sync.Mutex
	wasiDone   bool
}

// NewWazeroEngine creates a new wazero-based engine. A nil cfg uses defaults.
func NewWazeroEngine(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	e := &WazeroEngine{}
	if cfg != nil {
		e.cfg = *cfg
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if e.cfg.EnableWASI {
		if err := e.InitWASI(ctx); err != nil {
			_ = e.runtime.Close(ctx)
			return nil, err
		}
	}
	return e, nil
}

// Name returns "wazero".
func (e *WazeroEngine) Name() string { return Wazero }

// InitWASI instantiates wasi_snapshot_preview1 in the runtime. It is safe to
// call more than once.
func (e *WazeroEngine) InitWASI(ctx context.Context) error {
	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiDone {
		return nil
	}
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		return instantiateError("wasi_snapshot_preview1", err)
	}
	e.wasiDone = true
	Logger().Debug("wasi initialized", zap.String("engine", Wazero))
	return nil
}

// Compile validates and compiles a core module.
func (e *WazeroEngine) Compile(ctx context.Context, wasm []byte) (Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, compileError(Wazero, err)
	}
	Logger().Debug("module compiled",
		zap.String("engine", Wazero),
		zap.Int("bytes", len(wasm)),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return &WazeroModule{engine: e, compiled: compiled}, nil
}

// Close releases the runtime and every module instantiated from it.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// WazeroModule is a module compiled by a WazeroEngine.
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
}

func (m *WazeroModule) ExportedFunctionNames() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return sortedNames(names)
}

// Instantiate creates an anonymous instance, so one module can back any
// number of live instances.
func (m *WazeroModule) Instantiate(ctx context.Context) (wasmbridge.Instance, error) {
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions(initializeExport)

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		return nil, instantiateError(Wazero, err)
	}
	return &WazeroInstance{module: mod}, nil
}

func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// WazeroInstance is a live wazero module.
type WazeroInstance struct {
	module api.Module
}

// Module returns the underlying wazero module.
func (i *WazeroInstance) Module() api.Module { return i.module }

func (i *WazeroInstance) ExportedFunction(name string) wasmbridge.Function {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	return wazeroFunction{fn: fn}
}

func (i *WazeroInstance) ExportedFunctionNames() []string {
	defs := i.module.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return sortedNames(names)
}

func (i *WazeroInstance) Memory() wasmbridge.Region {
	mem := i.module.Memory()
	if mem == nil {
		return nil
	}
	return mem
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}

type wazeroFunction struct {
	fn api.Function
}

func (f wazeroFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.fn.Call(ctx, params...)
}

// wazero always knows an export's type; an empty list is reported as
// non-nil so the registry does not treat it as unknown.
func (f wazeroFunction) ParamTypes() []wasmbridge.ValueType {
	return nonNil(f.fn.Definition().ParamTypes())
}

func (f wazeroFunction) ResultTypes() []wasmbridge.ValueType {
	return nonNil(f.fn.Definition().ResultTypes())
}

func nonNil(types []api.ValueType) []wasmbridge.ValueType {
	if types == nil {
		return []wasmbridge.ValueType{}
	}
	return types
}
