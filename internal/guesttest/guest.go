// Package guesttest provides test guests: an in-memory wasmbridge.Instance
// whose exports are Go functions, for testing the bridge without an engine,
// and a real WAT guest with its WIT world for engine and runtime tests.
package guesttest

import (
	"context"
	"sort"
	"sync"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/memory"
)

// Func is a scripted export. Every call is recorded.
type Func struct {
	Fn      func(ctx context.Context, params []uint64) ([]uint64, error)
	Params  []wasmbridge.ValueType
	Results []wasmbridge.ValueType

	mu    sync.Mutex
	calls [][]uint64
}

// Call records params and runs Fn.
func (f *Func) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]uint64(nil), params...))
	f.mu.Unlock()
	if f.Fn == nil {
		return nil, nil
	}
	return f.Fn(ctx, params)
}

func (f *Func) ParamTypes() []wasmbridge.ValueType  { return f.Params }
func (f *Func) ResultTypes() []wasmbridge.ValueType { return f.Results }

// Calls returns the recorded parameter lists.
func (f *Func) Calls() [][]uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]uint64, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (f *Func) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Instance is a fake guest instance.
type Instance struct {
	Mem    *memory.Buffer
	funcs  map[string]*Func
	mu     sync.Mutex
	next   uint32
	closed bool
}

// New returns an instance with pages of zeroed memory.
func New(pages uint32) *Instance {
	return &Instance{
		Mem:   memory.NewBuffer(pages * memory.PageSize),
		funcs: make(map[string]*Func),
	}
}

// Export registers fn under name and returns fn.
func (i *Instance) Export(name string, fn *Func) *Func {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.funcs[name] = fn
	return fn
}

// Func returns the export registered under name.
func (i *Instance) Func(name string) *Func {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.funcs[name]
}

// ExportedFunction implements wasmbridge.Instance.
func (i *Instance) ExportedFunction(name string) wasmbridge.Function {
	i.mu.Lock()
	defer i.mu.Unlock()
	if fn, ok := i.funcs[name]; ok {
		return fn
	}
	return nil
}

// ExportedFunctionNames implements wasmbridge.Instance.
func (i *Instance) ExportedFunctionNames() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	names := make([]string, 0, len(i.funcs))
	for name := range i.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Memory implements wasmbridge.Instance.
func (i *Instance) Memory() wasmbridge.Region {
	return i.Mem
}

// Close implements wasmbridge.Instance.
func (i *Instance) Close(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

// Closed reports whether Close was called.
func (i *Instance) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// ExportRealloc registers a bump allocator as cabi_realloc. Offsets start
// at start; old buffers are never reused.
func (i *Instance) ExportRealloc(start uint32) *Func {
	i.next = start
	return i.Export("cabi_realloc", &Func{
		Params:  []wasmbridge.ValueType{wasmbridge.ValueTypeI32, wasmbridge.ValueTypeI32, wasmbridge.ValueTypeI32, wasmbridge.ValueTypeI32},
		Results: []wasmbridge.ValueType{wasmbridge.ValueTypeI32},
		Fn: func(_ context.Context, p []uint64) ([]uint64, error) {
			i.mu.Lock()
			defer i.mu.Unlock()
			align, size := uint32(p[2]), uint32(p[3])
			ptr := i.next
			if align > 1 {
				ptr = (ptr + align - 1) &^ (align - 1)
			}
			i.next = ptr + size
			return []uint64{uint64(ptr)}, nil
		},
	})
}

var _ wasmbridge.Instance = (*Instance)(nil)
