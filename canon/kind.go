package canon

import (
	wasmbridge "github.com/wippyai/wasm-bridge"
)

// Kind is the tag of a value descriptor.
type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindS8
	KindU16
	KindS16
	KindU32
	KindS32
	KindU64
	KindS64
	KindF32
	KindF64
	KindChar
	KindString
	KindList
	KindRecord
)

var kindNames = [...]string{
	KindBool:   "bool",
	KindU8:     "u8",
	KindS8:     "s8",
	KindU16:    "u16",
	KindS16:    "s16",
	KindU32:    "u32",
	KindS32:    "s32",
	KindU64:    "u64",
	KindS64:    "s64",
	KindF32:    "f32",
	KindF64:    "f64",
	KindChar:   "char",
	KindString: "string",
	KindList:   "list",
	KindRecord: "record",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether values of k travel as a single core value.
func (k Kind) IsPrimitive() bool {
	return k <= KindChar
}

// width is the in-memory size of a primitive kind.
func (k Kind) width() uint32 {
	switch k {
	case KindBool, KindU8, KindS8:
		return 1
	case KindU16, KindS16:
		return 2
	case KindU32, KindS32, KindF32, KindChar:
		return 4
	case KindU64, KindS64, KindF64:
		return 8
	default:
		return 0
	}
}

// coreType is the core value type a primitive kind flattens to.
func (k Kind) coreType() wasmbridge.ValueType {
	switch k {
	case KindU64, KindS64:
		return wasmbridge.ValueTypeI64
	case KindF32:
		return wasmbridge.ValueTypeF32
	case KindF64:
		return wasmbridge.ValueTypeF64
	default:
		return wasmbridge.ValueTypeI32
	}
}
