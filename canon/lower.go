package canon

import (
	"context"
	"encoding/binary"
	"reflect"
	"strings"
	"unicode"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/memory"
)

// LowerParams lowers call arguments into the raw values passed to the
// export, allocating guest buffers for heap-backed arguments. All arguments
// are checked before the first allocation, so a mismatch leaves guest
// memory untouched.
func (c *Codec) LowerParams(ctx context.Context, params []Field, args []any, conv Convention) ([]uint64, error) {
	if len(args) != len(params) {
		return nil, errors.New(errors.PhaseLower, errors.KindTypeMismatch).
			Detail("expected %d arguments, got %d", len(params), len(args)).
			Build()
	}
	for i, p := range params {
		if err := check(p.Type, args[i], []string{p.Name}); err != nil {
			return nil, err
		}
	}

	if conv == RecordsFlattened && flatCount(params) > MaxFlatParams {
		return c.spillParams(ctx, params, args)
	}

	flat := make([]uint64, 0, len(params)*2)
	for i, p := range params {
		path := []string{p.Name}
		if conv == RecordsByPointer && p.Type.kind == KindRecord {
			ptr, err := c.storeNew(ctx, p.Type, args[i], path)
			if err != nil {
				return nil, err
			}
			flat = append(flat, uint64(ptr))
			continue
		}
		if err := c.lowerFlat(ctx, p.Type, args[i], &flat, path); err != nil {
			return nil, err
		}
	}
	return flat, nil
}

func flatCount(params []Field) int {
	n := 0
	for _, p := range params {
		n += len(p.Type.flat)
	}
	return n
}

// spillParams stores every argument in one guest buffer laid out as a
// tuple and returns its offset as the only raw argument.
func (c *Codec) spillParams(ctx context.Context, params []Field, args []any) ([]uint64, error) {
	fields := make([]Field, len(params))
	copy(fields, params)
	layout, err := Record("", fields...)
	if err != nil {
		return nil, errors.InvalidInput(errors.PhaseLower, err.Error())
	}
	values := make(RecordValue, len(params))
	for i, p := range params {
		values[i] = NamedValue{Name: p.Name, Value: args[i]}
	}
	ptr, err := c.storeNew(ctx, layout, values, nil)
	if err != nil {
		return nil, err
	}
	return []uint64{uint64(ptr)}, nil
}

// LowerValue lowers v into its flat core values.
func (c *Codec) LowerValue(ctx context.Context, d *Descriptor, v any) ([]uint64, error) {
	if err := check(d, v, nil); err != nil {
		return nil, err
	}
	flat := make([]uint64, 0, len(d.flat))
	if err := c.lowerFlat(ctx, d, v, &flat, nil); err != nil {
		return nil, err
	}
	return flat, nil
}

func (c *Codec) lowerFlat(ctx context.Context, d *Descriptor, v any, out *[]uint64, path []string) error {
	switch d.kind {
	case KindString:
		ptr, n, err := c.lowerString(ctx, v, path)
		if err != nil {
			return err
		}
		*out = append(*out, uint64(ptr), uint64(n))
	case KindList:
		ptr, n, err := c.lowerList(ctx, d.elem, v, path)
		if err != nil {
			return err
		}
		*out = append(*out, uint64(ptr), uint64(n))
	case KindRecord:
		values, err := recordValues(d, v, path)
		if err != nil {
			return err
		}
		for i, f := range d.fields {
			if err := c.lowerFlat(ctx, f.Type, values[i], out, appendPath(path, f.Name)); err != nil {
				return err
			}
		}
	default:
		raw, err := lowerScalar(d, v, path)
		if err != nil {
			return err
		}
		*out = append(*out, raw)
	}
	return nil
}

// Store lowers v into memory at offset using the layout of d.
func (c *Codec) Store(ctx context.Context, d *Descriptor, v any, offset uint32) error {
	if err := check(d, v, nil); err != nil {
		return err
	}
	return c.store(ctx, d, v, offset, nil)
}

// storeNew allocates a buffer for d and stores v in it. v must already
// have passed check.
func (c *Codec) storeNew(ctx context.Context, d *Descriptor, v any, path []string) (uint32, error) {
	if d.size == 0 {
		return 0, nil
	}
	ptr, err := c.allocate(ctx, d.size, d.align)
	if err != nil {
		return 0, err
	}
	if err := c.store(ctx, d, v, ptr, path); err != nil {
		return 0, err
	}
	return ptr, nil
}

func (c *Codec) store(ctx context.Context, d *Descriptor, v any, offset uint32, path []string) error {
	switch d.kind {
	case KindString:
		ptr, n, err := c.lowerString(ctx, v, path)
		if err != nil {
			return err
		}
		return c.mem.WritePair(offset, ptr, n)
	case KindList:
		ptr, n, err := c.lowerList(ctx, d.elem, v, path)
		if err != nil {
			return err
		}
		return c.mem.WritePair(offset, ptr, n)
	case KindRecord:
		values, err := recordValues(d, v, path)
		if err != nil {
			return err
		}
		for i, f := range d.fields {
			at, err := memory.Offset(offset, uint64(d.offsets[i]))
			if err != nil {
				return err
			}
			if err := c.store(ctx, f.Type, values[i], at, appendPath(path, f.Name)); err != nil {
				return err
			}
		}
		return nil
	default:
		raw, err := lowerScalar(d, v, path)
		if err != nil {
			return err
		}
		buf := make([]byte, d.size)
		encodeRaw(buf, raw)
		return c.mem.Write(offset, buf)
	}
}

func (c *Codec) lowerString(ctx context.Context, v any, path []string) (uint32, uint32, error) {
	s, err := stringValue(v, path)
	if err != nil || len(s) == 0 {
		return 0, 0, err
	}
	ptr, err := c.allocate(ctx, uint32(len(s)), 1)
	if err != nil {
		return 0, 0, err
	}
	if err := c.mem.Write(ptr, []byte(s)); err != nil {
		return 0, 0, err
	}
	return ptr, uint32(len(s)), nil
}

func (c *Codec) lowerList(ctx context.Context, elem *Descriptor, v any, path []string) (uint32, uint32, error) {
	rv, count, total, err := listValue(elem, v, path)
	if err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}
	if total == 0 {
		return 0, uint32(count), nil
	}

	var buf []byte
	if elem.kind.IsPrimitive() {
		if b, ok := v.([]byte); ok && elem.kind == KindU8 {
			buf = b
		} else {
			buf = make([]byte, total)
			w := int(elem.size)
			for i := 0; i < count; i++ {
				raw, err := lowerScalar(elem, rv.Index(i).Interface(), appendIndex(path, i))
				if err != nil {
					return 0, 0, err
				}
				encodeRaw(buf[i*w:(i+1)*w], raw)
			}
		}
	}

	ptr, err := c.allocate(ctx, uint32(total), elem.align)
	if err != nil {
		return 0, 0, err
	}
	if buf != nil {
		if err := c.mem.Write(ptr, buf); err != nil {
			return 0, 0, err
		}
		return ptr, uint32(count), nil
	}

	for i := 0; i < count; i++ {
		at, err := memory.Offset(ptr, uint64(i)*uint64(elem.size))
		if err != nil {
			return 0, 0, err
		}
		if err := c.store(ctx, elem, rv.Index(i).Interface(), at, appendIndex(path, i)); err != nil {
			return 0, 0, err
		}
	}
	return ptr, uint32(count), nil
}

// recordValues returns the field values of v in declaration order.
// Accepted inputs are RecordValue, map[string]any and structs.
func recordValues(d *Descriptor, v any, path []string) ([]any, error) {
	var lookup func(name string) (any, bool)
	var size int

	switch x := v.(type) {
	case RecordValue:
		lookup, size = x.Get, len(x)
	case map[string]any:
		lookup = func(name string) (any, bool) {
			val, ok := x[name]
			return val, ok
		}
		size = len(x)
	default:
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Pointer && !rv.IsNil() {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return nil, errors.TypeMismatch(errors.PhaseLower, path, typeName(v), d.String())
		}
		out := make([]any, len(d.fields))
		for i, f := range d.fields {
			sf, ok := findStructField(rv.Type(), f.Name)
			if !ok {
				return nil, missingField(d, f, v, path)
			}
			out[i] = rv.FieldByIndex(sf.Index).Interface()
		}
		return out, nil
	}

	out := make([]any, len(d.fields))
	for i, f := range d.fields {
		val, ok := lookup(f.Name)
		if !ok {
			return nil, missingField(d, f, v, path)
		}
		out[i] = val
	}
	if size != len(d.fields) {
		return nil, errors.New(errors.PhaseLower, errors.KindTypeMismatch).
			Path(path...).
			GoType(typeName(v)).
			WitType(d.String()).
			Detail("record has %d fields, value has %d", len(d.fields), size).
			Build()
	}
	return out, nil
}

func missingField(d *Descriptor, f Field, v any, path []string) error {
	return errors.New(errors.PhaseLower, errors.KindTypeMismatch).
		Path(appendPath(path, f.Name)...).
		GoType(typeName(v)).
		WitType(d.String()).
		Detail("missing field %q", f.Name).
		Build()
}

// findStructField matches a WIT field name against a `wit` tag, the Go
// name case-insensitively, or the Go name in kebab-case.
func findStructField(t reflect.Type, witName string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if tag := field.Tag.Get("wit"); tag != "" {
			if tag == witName {
				return field, true
			}
			continue
		}
		if strings.EqualFold(field.Name, witName) || toKebabCase(field.Name) == witName {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

func toKebabCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// encodeRaw writes the low len(dst) bytes of raw little-endian.
func encodeRaw(dst []byte, raw uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], raw)
	copy(dst, buf[:])
}
