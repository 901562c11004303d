package canon

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/memory"
)

// Load lifts a value of shape d stored at offset.
func (c *Codec) Load(d *Descriptor, offset uint32) (any, error) {
	return c.load(d, offset, nil)
}

// LiftResult lifts a call result from the raw values the export returned.
// Direct results are lifted from the values themselves; indirect results
// from the guest offset in raw[0].
func (c *Codec) LiftResult(d *Descriptor, raw []uint64) (any, error) {
	if d == nil {
		return nil, nil
	}
	want := len(ResultTypes(d))
	if len(raw) < want {
		return nil, errors.Decode(nil, "export returned %d values, %s needs %d", len(raw), d, want)
	}
	if !IsDirectResult(d) {
		return c.load(d, uint32(raw[0]), nil)
	}
	v, _, err := c.liftFlat(d, raw, nil)
	return v, err
}

// liftFlat lifts d from consecutive flat values and reports how many it
// consumed.
func (c *Codec) liftFlat(d *Descriptor, flat []uint64, path []string) (any, int, error) {
	if len(flat) < len(d.flat) {
		return nil, 0, errors.Decode(path, "need %d flat values, have %d", len(d.flat), len(flat))
	}
	switch d.kind {
	case KindString:
		s, err := c.readString(uint32(flat[0]), uint32(flat[1]), path)
		return s, 2, err
	case KindList:
		l, err := c.readList(d.elem, uint32(flat[0]), uint32(flat[1]), path)
		return l, 2, err
	case KindRecord:
		rec := make(RecordValue, len(d.fields))
		used := 0
		for i, f := range d.fields {
			v, n, err := c.liftFlat(f.Type, flat[used:], appendPath(path, f.Name))
			if err != nil {
				return nil, 0, err
			}
			rec[i] = NamedValue{Name: f.Name, Value: v}
			used += n
		}
		return rec, used, nil
	default:
		v, err := liftScalar(d, flat[0], path)
		return v, 1, err
	}
}

func (c *Codec) load(d *Descriptor, offset uint32, path []string) (any, error) {
	switch d.kind {
	case KindString:
		ptr, length, err := c.mem.ReadPair(offset)
		if err != nil {
			return nil, err
		}
		return c.readString(ptr, length, path)
	case KindList:
		ptr, count, err := c.mem.ReadPair(offset)
		if err != nil {
			return nil, err
		}
		return c.readList(d.elem, ptr, count, path)
	case KindRecord:
		rec := make(RecordValue, len(d.fields))
		for i, f := range d.fields {
			at, err := memory.Offset(offset, uint64(d.offsets[i]))
			if err != nil {
				return nil, err
			}
			v, err := c.load(f.Type, at, appendPath(path, f.Name))
			if err != nil {
				return nil, err
			}
			rec[i] = NamedValue{Name: f.Name, Value: v}
		}
		return rec, nil
	default:
		raw, err := c.mem.Read(offset, d.size)
		if err != nil {
			return nil, err
		}
		return liftScalar(d, decodeRaw(raw), path)
	}
}

func (c *Codec) readString(ptr, length uint32, path []string) (string, error) {
	if length > MaxStringSize {
		return "", errors.Decode(path, "string length %d exceeds limit %d", length, MaxStringSize)
	}
	if length == 0 {
		return "", nil
	}
	data, err := c.mem.Read(ptr, length)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(errors.PhaseLift, path, data)
	}
	return string(data), nil
}

func (c *Codec) readList(elem *Descriptor, ptr, count uint32, path []string) (any, error) {
	if count > MaxListLength {
		return nil, errors.Decode(path, "list length %d exceeds limit %d", count, MaxListLength)
	}
	total := uint64(count) * uint64(elem.size)
	if total > math.MaxUint32 {
		return nil, errors.Decode(path, "list of %d %s elements overflows memory", count, elem)
	}
	if elem.kind.IsPrimitive() {
		data, err := c.mem.Read(ptr, uint32(total))
		if err != nil {
			return nil, err
		}
		if elem.kind == KindChar {
			return liftChars(data, int(count), path)
		}
		return liftPrimitiveSlice(elem.kind, data, int(count)), nil
	}

	if elem.kind == KindString {
		out := make([]string, count)
		for i := range out {
			at, err := memory.Offset(ptr, uint64(i)*8)
			if err != nil {
				return nil, err
			}
			v, err := c.load(elem, at, appendIndex(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v.(string)
		}
		return out, nil
	}

	out := make([]any, count)
	for i := range out {
		at, err := memory.Offset(ptr, uint64(i)*uint64(elem.size))
		if err != nil {
			return nil, err
		}
		v, err := c.load(elem, at, appendIndex(path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func liftPrimitiveSlice(k Kind, data []byte, n int) any {
	le := binary.LittleEndian
	switch k {
	case KindBool:
		out := make([]bool, n)
		for i := range out {
			out[i] = data[i] != 0
		}
		return out
	case KindU8:
		return data
	case KindS8:
		out := make([]int8, n)
		for i := range out {
			out[i] = int8(data[i])
		}
		return out
	case KindU16:
		out := make([]uint16, n)
		for i := range out {
			out[i] = le.Uint16(data[i*2:])
		}
		return out
	case KindS16:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(le.Uint16(data[i*2:]))
		}
		return out
	case KindU32:
		out := make([]uint32, n)
		for i := range out {
			out[i] = le.Uint32(data[i*4:])
		}
		return out
	case KindS32:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(le.Uint32(data[i*4:]))
		}
		return out
	case KindU64:
		out := make([]uint64, n)
		for i := range out {
			out[i] = le.Uint64(data[i*8:])
		}
		return out
	case KindS64:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(le.Uint64(data[i*8:]))
		}
		return out
	case KindF32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(data[i*4:]))
		}
		return out
	case KindF64:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(le.Uint64(data[i*8:]))
		}
		return out
	}
	return nil
}

func liftChars(data []byte, n int, path []string) ([]rune, error) {
	out := make([]rune, n)
	for i := range out {
		v, err := liftScalar(Primitive(KindChar), uint64(binary.LittleEndian.Uint32(data[i*4:])), appendIndex(path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v.(rune)
	}
	return out, nil
}

// decodeRaw widens a little-endian primitive to a raw core value.
func decodeRaw(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}
