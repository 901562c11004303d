package canon

import (
	"fmt"

	"go.bytecodealliance.org/wit"
)

// FromWIT converts a WIT type to a descriptor. Only primitives, char,
// string, list and record are supported.
func FromWIT(t wit.Type) (*Descriptor, error) {
	switch t := t.(type) {
	case wit.Bool:
		return Primitive(KindBool), nil
	case wit.U8:
		return Primitive(KindU8), nil
	case wit.S8:
		return Primitive(KindS8), nil
	case wit.U16:
		return Primitive(KindU16), nil
	case wit.S16:
		return Primitive(KindS16), nil
	case wit.U32:
		return Primitive(KindU32), nil
	case wit.S32:
		return Primitive(KindS32), nil
	case wit.U64:
		return Primitive(KindU64), nil
	case wit.S64:
		return Primitive(KindS64), nil
	case wit.F32:
		return Primitive(KindF32), nil
	case wit.F64:
		return Primitive(KindF64), nil
	case wit.Char:
		return Primitive(KindChar), nil
	case wit.String:
		return String(), nil
	case *wit.TypeDef:
		return fromTypeDef(t)
	case nil:
		return nil, fmt.Errorf("nil WIT type")
	default:
		return nil, fmt.Errorf("unsupported WIT type %T", t)
	}
}

func fromTypeDef(t *wit.TypeDef) (*Descriptor, error) {
	name := ""
	if t.Name != nil {
		name = *t.Name
	}
	switch kind := t.Kind.(type) {
	case *wit.List:
		elem, err := FromWIT(kind.Type)
		if err != nil {
			return nil, fmt.Errorf("list element: %w", err)
		}
		return List(elem), nil
	case *wit.Record:
		fields := make([]Field, len(kind.Fields))
		for i, f := range kind.Fields {
			ft, err := FromWIT(f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			fields[i] = Field{Name: f.Name, Type: ft}
		}
		return Record(name, fields...)
	case wit.Type:
		// type alias
		return FromWIT(kind)
	default:
		return nil, fmt.Errorf("unsupported WIT type definition %T", t.Kind)
	}
}
