package wasmbridge

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// ValueType is a core WebAssembly value type (i32, i64, f32, f64).
type ValueType = api.ValueType

const (
	ValueTypeI32 = api.ValueTypeI32
	ValueTypeI64 = api.ValueTypeI64
	ValueTypeF32 = api.ValueTypeF32
	ValueTypeF64 = api.ValueTypeF64
)

// ValueTypeName returns the text format name of t, e.g. "i32".
func ValueTypeName(t ValueType) string {
	return api.ValueTypeName(t)
}

// Region is the raw linear memory of an instance.
// Read returns a view that is only valid until the next guest call.
type Region interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
}

// Function is a guest export callable with flat core values.
// Errors returned by Call are guest traps.
type Function interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
	// ParamTypes and ResultTypes return nil when the engine cannot report them.
	ParamTypes() []ValueType
	ResultTypes() []ValueType
}

// Instance is a loaded guest module as seen by the bridge.
type Instance interface {
	// ExportedFunction returns nil when the module has no such export.
	ExportedFunction(name string) Function
	ExportedFunctionNames() []string
	// Memory returns nil when the module exports no memory.
	Memory() Region
	Close(ctx context.Context) error
}

// Allocator obtains write space in guest memory.
type Allocator interface {
	Alloc(ctx context.Context, size, align uint32) (uint32, error)
}
