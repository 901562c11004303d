package canon

import (
	"encoding/json"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/wippyai/wasm-bridge/errors"
)

// asUint64 accepts any Go integer, or a float/json.Number holding an exact
// non-negative integer, as decoded from JSON.
func asUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	case uint:
		return uint64(x), true
	case int8, int16, int32, int64, int:
		i, _ := asInt64(x)
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	case float64:
		if x < 0 || x >= 1<<64 || x != math.Trunc(x) {
			return 0, false
		}
		return uint64(x), true
	case float32:
		return asUint64(float64(x))
	case json.Number:
		return asUint64FromNumber(x)
	}
	return 0, false
}

// asInt64 is the signed counterpart of asUint64.
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case uint8, uint16, uint32, uint64, uint:
		u, _ := asUint64(x)
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case float64:
		if x < math.MinInt64 || x >= math.MaxInt64 || x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case float32:
		return asInt64(float64(x))
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	}
	return 0, false
}

func asUint64FromNumber(n json.Number) (uint64, bool) {
	if i, err := n.Int64(); err == nil {
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return asUint64(f)
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	if u, ok := asUint64(v); ok {
		return float64(u), true
	}
	return 0, false
}

func asRune(v any) (rune, bool) {
	switch x := v.(type) {
	case string:
		r, size := utf8.DecodeRuneInString(x)
		if size == 0 || size != len(x) || r == utf8.RuneError {
			return 0, false
		}
		return r, true
	case rune:
		return x, utf8.ValidRune(x)
	}
	if u, ok := asUint64(v); ok && u <= utf8.MaxRune {
		return rune(u), utf8.ValidRune(rune(u))
	}
	return 0, false
}

var signedMax = [...]int64{
	KindS8:  math.MaxInt8,
	KindS16: math.MaxInt16,
	KindS32: math.MaxInt32,
	KindS64: math.MaxInt64,
}

var signedMin = [...]int64{
	KindS8:  math.MinInt8,
	KindS16: math.MinInt16,
	KindS32: math.MinInt32,
	KindS64: math.MinInt64,
}

var unsignedMax = [...]uint64{
	KindU8:  math.MaxUint8,
	KindU16: math.MaxUint16,
	KindU32: math.MaxUint32,
	KindU64: math.MaxUint64,
}

// LowerScalar converts a Go value to the raw core value of a primitive
// descriptor. i32-class values occupy the low 32 bits; floats are passed
// as their IEEE-754 bits.
func LowerScalar(d *Descriptor, v any) (uint64, error) {
	return lowerScalar(d, v, nil)
}

func lowerScalar(d *Descriptor, v any, path []string) (uint64, error) {
	mismatch := func() error {
		return errors.TypeMismatch(errors.PhaseLower, path, typeName(v), d.String())
	}
	switch d.kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return 0, mismatch()
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case KindU8, KindU16, KindU32, KindU64:
		u, ok := asUint64(v)
		if !ok || u > unsignedMax[d.kind] {
			return 0, mismatch()
		}
		return u, nil
	case KindS8, KindS16, KindS32:
		i, ok := asInt64(v)
		if !ok || i < signedMin[d.kind] || i > signedMax[d.kind] {
			return 0, mismatch()
		}
		return uint64(uint32(int32(i))), nil
	case KindS64:
		i, ok := asInt64(v)
		if !ok {
			return 0, mismatch()
		}
		return uint64(i), nil
	case KindF32:
		if f, ok := v.(float32); ok {
			return uint64(math.Float32bits(f)), nil
		}
		f, ok := asFloat64(v)
		if !ok {
			return 0, mismatch()
		}
		return uint64(math.Float32bits(float32(f))), nil
	case KindF64:
		f, ok := asFloat64(v)
		if !ok {
			return 0, mismatch()
		}
		return math.Float64bits(f), nil
	case KindChar:
		r, ok := asRune(v)
		if !ok {
			return 0, mismatch()
		}
		return uint64(uint32(r)), nil
	default:
		return 0, mismatch()
	}
}

// LiftScalar converts a raw core value to the Go value of a primitive
// descriptor. Bits above the kind's width are ignored.
func LiftScalar(d *Descriptor, raw uint64) (any, error) {
	return liftScalar(d, raw, nil)
}

func liftScalar(d *Descriptor, raw uint64, path []string) (any, error) {
	switch d.kind {
	case KindBool:
		return uint32(raw) != 0, nil
	case KindU8:
		return uint8(raw), nil
	case KindS8:
		return int8(raw), nil
	case KindU16:
		return uint16(raw), nil
	case KindS16:
		return int16(raw), nil
	case KindU32:
		return uint32(raw), nil
	case KindS32:
		return int32(uint32(raw)), nil
	case KindU64:
		return raw, nil
	case KindS64:
		return int64(raw), nil
	case KindF32:
		return math.Float32frombits(uint32(raw)), nil
	case KindF64:
		return math.Float64frombits(raw), nil
	case KindChar:
		r := rune(uint32(raw))
		if uint32(raw) > utf8.MaxRune || !utf8.ValidRune(r) {
			return nil, errors.Decode(path, "invalid char code point 0x%x", uint32(raw))
		}
		return r, nil
	default:
		return nil, errors.Unsupported(errors.PhaseLift, "scalar lift of "+d.String())
	}
}

// typeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
