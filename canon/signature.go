package canon

import (
	wasmbridge "github.com/wippyai/wasm-bridge"
)

// Convention selects how record arguments reach the guest.
type Convention uint8

const (
	// RecordsByPointer stores each record argument in a guest buffer and
	// passes its offset as a single i32.
	RecordsByPointer Convention = iota
	// RecordsFlattened passes record fields as individual core values,
	// spilling all parameters to memory when they exceed MaxFlatParams.
	RecordsFlattened
)

func (c Convention) String() string {
	switch c {
	case RecordsByPointer:
		return "pointer"
	case RecordsFlattened:
		return "flat"
	default:
		return "unknown"
	}
}

// ParseConvention maps a config value to a Convention. The empty string
// selects RecordsByPointer.
func ParseConvention(s string) (Convention, bool) {
	switch s {
	case "", "pointer":
		return RecordsByPointer, true
	case "flat":
		return RecordsFlattened, true
	default:
		return 0, false
	}
}

// ParamTypes returns the core parameter types for params under conv.
func ParamTypes(params []Field, conv Convention) []wasmbridge.ValueType {
	var out []wasmbridge.ValueType
	for _, p := range params {
		if conv == RecordsByPointer && p.Type.kind == KindRecord {
			out = append(out, wasmbridge.ValueTypeI32)
			continue
		}
		out = append(out, p.Type.flat...)
	}
	if conv == RecordsFlattened && len(out) > MaxFlatParams {
		return []wasmbridge.ValueType{wasmbridge.ValueTypeI32}
	}
	return out
}

// ResultTypes returns the core result types for result. A nil result has
// none.
func ResultTypes(result *Descriptor) []wasmbridge.ValueType {
	if result == nil {
		return nil
	}
	if IsDirectResult(result) {
		return result.FlatTypes()
	}
	return []wasmbridge.ValueType{wasmbridge.ValueTypeI32}
}

// IsDirectResult reports whether result is returned as flat values rather
// than through a pointer into guest memory.
func IsDirectResult(result *Descriptor) bool {
	return len(result.flat) <= MaxFlatResults
}

// ReturnsHeap reports whether a call returning result leaves a buffer in
// guest memory for the caller to lift.
func ReturnsHeap(result *Descriptor) bool {
	return result != nil && (result.heap || !IsDirectResult(result))
}
