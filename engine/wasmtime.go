package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/memory"
)

// noLimit leaves a store limit at the wasmtime default.
const noLimit = -1

// WasmtimeEngine implements Engine using wasmtime-go.
type WasmtimeEngine struct {
	engine *wasmtime.Engine
	cfg    Config
}

// NewWasmtimeEngine creates a new wasmtime-based engine. A nil cfg uses
// defaults.
func NewWasmtimeEngine(cfg *Config) (*WasmtimeEngine, error) {
	e := &WasmtimeEngine{}
	if cfg != nil {
		e.cfg = *cfg
	}
	wcfg := wasmtime.NewConfig()
	wcfg.SetStrategy(wasmtime.StrategyCranelift)
	e.engine = wasmtime.NewEngineWithConfig(wcfg)
	return e, nil
}

// Name returns "wasmtime".
func (e *WasmtimeEngine) Name() string { return Wasmtime }

func (e *WasmtimeEngine) Compile(_ context.Context, wasm []byte) (Module, error) {
	mod, err := wasmtime.NewModule(e.engine, wasm)
	if err != nil {
		return nil, compileError(Wasmtime, err)
	}
	m := &WasmtimeModule{engine: e, module: mod}
	Logger().Debug("module compiled",
		zap.String("engine", Wasmtime),
		zap.Int("bytes", len(wasm)),
		zap.Int("exports", len(m.ExportedFunctionNames())))
	return m, nil
}

// Close is a no-op; wasmtime objects are released by their finalizers.
func (e *WasmtimeEngine) Close(context.Context) error { return nil }

// WasmtimeModule is a module compiled by a WasmtimeEngine.
type WasmtimeModule struct {
	engine *WasmtimeEngine
	module *wasmtime.Module
}

func (m *WasmtimeModule) ExportedFunctionNames() []string {
	return functionExports(m.module)
}

// Instantiate creates a store and linker for a single instance.
func (m *WasmtimeModule) Instantiate(ctx context.Context) (wasmbridge.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, instantiateError(Wasmtime, err)
	}

	store := wasmtime.NewStore(m.engine.engine)
	memLimit := int64(noLimit)
	if pages := m.engine.cfg.MemoryLimitPages; pages > 0 {
		memLimit = int64(pages) * memory.PageSize
	}
	store.Limiter(memLimit, noLimit, noLimit, noLimit, noLimit)

	linker := wasmtime.NewLinker(m.engine.engine)
	if m.engine.cfg.EnableWASI {
		store.SetWasi(wasmtime.NewWasiConfig())
		if err := linker.DefineWasi(); err != nil {
			return nil, instantiateError("wasi_snapshot_preview1", err)
		}
	}

	inst, err := linker.Instantiate(store, m.module)
	if err != nil {
		return nil, instantiateError(Wasmtime, err)
	}

	wi := &WasmtimeInstance{
		store:    store,
		instance: inst,
		names:    functionExports(m.module),
	}
	if fn := inst.GetFunc(store, initializeExport); fn != nil {
		if _, err := fn.Call(store); err != nil {
			return nil, instantiateError(initializeExport, err)
		}
	}
	return wi, nil
}

func (m *WasmtimeModule) Close(context.Context) error { return nil }

func functionExports(mod *wasmtime.Module) []string {
	var names []string
	for _, exp := range mod.Exports() {
		if exp.Type().FuncType() != nil {
			names = append(names, exp.Name())
		}
	}
	return sortedNames(names)
}

// WasmtimeInstance is a live wasmtime instance with its own store.
type WasmtimeInstance struct {
	store    *wasmtime.Store
	instance *wasmtime.Instance
	names    []string
	closed   bool
}

func (i *WasmtimeInstance) ExportedFunction(name string) wasmbridge.Function {
	if i.closed {
		return nil
	}
	fn := i.instance.GetFunc(i.store, name)
	if fn == nil {
		return nil
	}
	ft := fn.Type(i.store)
	return &wasmtimeFunction{
		fn:      fn,
		store:   i.store,
		params:  valueTypes(ft.Params()),
		results: valueTypes(ft.Results()),
	}
}

func (i *WasmtimeInstance) ExportedFunctionNames() []string {
	return append([]string(nil), i.names...)
}

func (i *WasmtimeInstance) Memory() wasmbridge.Region {
	if i.closed {
		return nil
	}
	ext := i.instance.GetExport(i.store, "memory")
	if ext == nil || ext.Memory() == nil {
		return nil
	}
	return &wasmtimeMemory{mem: ext.Memory(), store: i.store}
}

// Close drops the instance. Its store is reclaimed by the garbage collector.
func (i *WasmtimeInstance) Close(context.Context) error {
	i.closed = true
	return nil
}

type wasmtimeFunction struct {
	fn      *wasmtime.Func
	store   *wasmtime.Store
	params  []wasmbridge.ValueType
	results []wasmbridge.ValueType
}

func (f *wasmtimeFunction) ParamTypes() []wasmbridge.ValueType  { return f.params }
func (f *wasmtimeFunction) ResultTypes() []wasmbridge.ValueType { return f.results }

// Call converts raw values to wasmtime's typed values and back. wasmtime
// cannot interrupt a running call, so ctx is only checked before entry.
func (f *wasmtimeFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(params) != len(f.params) {
		return nil, fmt.Errorf("expected %d params, got %d", len(f.params), len(params))
	}

	args := make([]interface{}, len(params))
	for i, raw := range params {
		args[i] = toWasmtime(f.params[i], raw)
	}

	out, err := f.fn.Call(f.store, args...)
	if err != nil {
		return nil, err
	}
	return fromWasmtime(out)
}

func valueTypes(types []*wasmtime.ValType) []wasmbridge.ValueType {
	out := make([]wasmbridge.ValueType, 0, len(types))
	for _, t := range types {
		switch t.Kind() {
		case wasmtime.KindI32:
			out = append(out, wasmbridge.ValueTypeI32)
		case wasmtime.KindI64:
			out = append(out, wasmbridge.ValueTypeI64)
		case wasmtime.KindF32:
			out = append(out, wasmbridge.ValueTypeF32)
		case wasmtime.KindF64:
			out = append(out, wasmbridge.ValueTypeF64)
		default:
			// reference types have no raw encoding; report the
			// signature as unknown rather than a wrong one
			return nil
		}
	}
	return out
}

func toWasmtime(t wasmbridge.ValueType, raw uint64) interface{} {
	switch t {
	case wasmbridge.ValueTypeI64:
		return int64(raw)
	case wasmbridge.ValueTypeF32:
		return math.Float32frombits(uint32(raw))
	case wasmbridge.ValueTypeF64:
		return math.Float64frombits(raw)
	default:
		return int32(uint32(raw))
	}
}

func fromWasmtime(out interface{}) ([]uint64, error) {
	switch v := out.(type) {
	case nil:
		return nil, nil
	case int32:
		return []uint64{uint64(uint32(v))}, nil
	case int64:
		return []uint64{uint64(v)}, nil
	case float32:
		return []uint64{uint64(math.Float32bits(v))}, nil
	case float64:
		return []uint64{math.Float64bits(v)}, nil
	case []wasmtime.Val:
		raws := make([]uint64, len(v))
		for i, val := range v {
			r, err := fromWasmtime(val.Get())
			if err != nil {
				return nil, err
			}
			raws[i] = r[0]
		}
		return raws, nil
	default:
		return nil, errors.New(errors.PhaseCall, errors.KindUnsupported).
			GoType(fmt.Sprintf("%T", out)).
			Detail("unsupported wasmtime result").
			Build()
	}
}

// wasmtimeMemory exposes a wasmtime memory as a Region. Slices returned by
// Read alias guest memory and are invalidated by memory growth.
type wasmtimeMemory struct {
	mem   *wasmtime.Memory
	store *wasmtime.Store
}

func (m *wasmtimeMemory) Size() uint32 {
	n := m.mem.DataSize(m.store)
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

func (m *wasmtimeMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	data := m.mem.UnsafeData(m.store)
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(data)) {
		return nil, false
	}
	return data[offset:end:end], true
}

func (m *wasmtimeMemory) Write(offset uint32, v []byte) bool {
	data := m.mem.UnsafeData(m.store)
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(data)) {
		return false
	}
	copy(data[offset:end], v)
	return true
}
