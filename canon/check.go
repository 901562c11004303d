package canon

import (
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/wippyai/wasm-bridge/errors"
)

// Check reports whether v can be lowered as d without touching guest
// memory. Every shape, range and encoding error that lowering could raise
// is raised here instead.
func Check(d *Descriptor, v any) error {
	return check(d, v, nil)
}

func check(d *Descriptor, v any, path []string) error {
	switch d.kind {
	case KindString:
		_, err := stringValue(v, path)
		return err
	case KindList:
		rv, count, _, err := listValue(d.elem, v, path)
		if err != nil {
			return err
		}
		if _, ok := v.([]byte); ok && d.elem.kind == KindU8 {
			return nil
		}
		for i := 0; i < count; i++ {
			if err := check(d.elem, rv.Index(i).Interface(), appendIndex(path, i)); err != nil {
				return err
			}
		}
		return nil
	case KindRecord:
		values, err := recordValues(d, v, path)
		if err != nil {
			return err
		}
		for i, f := range d.fields {
			if err := check(f.Type, values[i], appendPath(path, f.Name)); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := lowerScalar(d, v, path)
		return err
	}
}

// stringValue validates v as a string argument.
func stringValue(v any, path []string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.TypeMismatch(errors.PhaseLower, path, typeName(v), "string")
	}
	if len(s) > MaxStringSize {
		return "", errors.New(errors.PhaseLower, errors.KindInvalidInput).
			Path(path...).
			Detail("string length %d exceeds limit %d", len(s), MaxStringSize).
			Build()
	}
	if !utf8.ValidString(s) {
		return "", errors.InvalidUTF8(errors.PhaseLower, path, []byte(s))
	}
	return s, nil
}

// listValue validates v as a list of elem and returns its element count and
// byte size.
func listValue(elem *Descriptor, v any, path []string) (reflect.Value, int, uint64, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return rv, 0, 0, errors.TypeMismatch(errors.PhaseLower, path, typeName(v), "list<"+elem.String()+">")
	}
	count := rv.Len()
	if count > MaxListLength {
		return rv, 0, 0, errors.New(errors.PhaseLower, errors.KindInvalidInput).
			Path(path...).
			Detail("list length %d exceeds limit %d", count, MaxListLength).
			Build()
	}
	total := uint64(count) * uint64(elem.size)
	if total > math.MaxUint32 {
		return rv, 0, 0, errors.New(errors.PhaseLower, errors.KindInvalidInput).
			Path(path...).
			Detail("list of %d %s elements overflows memory", count, elem).
			Build()
	}
	return rv, count, total, nil
}
