package canon

import (
	"fmt"
	"strings"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

const (
	// MaxStringSize bounds the byte length of a lifted or lowered string.
	MaxStringSize = 1 << 30
	// MaxListLength bounds the element count of a lifted or lowered list.
	MaxListLength = 1 << 27
	// MaxFlatParams is the flat parameter count above which flattened
	// parameters are passed through memory.
	MaxFlatParams = 16
	// MaxFlatResults is the flat result count above which results are
	// returned through memory.
	MaxFlatResults = 1
)

// Field is a named record member.
type Field struct {
	Type *Descriptor
	Name string
}

// Descriptor describes the shape of a value crossing the boundary.
// Descriptors are immutable and safe to share between calls.
type Descriptor struct {
	elem    *Descriptor
	name    string
	fields  []Field
	offsets []uint32
	flat    []wasmbridge.ValueType
	size    uint32
	align   uint32
	kind    Kind
	heap    bool
}

var primitives [KindChar + 1]*Descriptor

func init() {
	for k := KindBool; k <= KindChar; k++ {
		w := k.width()
		primitives[k] = &Descriptor{
			kind:  k,
			size:  w,
			align: w,
			flat:  []wasmbridge.ValueType{k.coreType()},
		}
	}
}

var stringDescriptor = &Descriptor{
	kind:  KindString,
	size:  8,
	align: 4,
	heap:  true,
	flat:  []wasmbridge.ValueType{wasmbridge.ValueTypeI32, wasmbridge.ValueTypeI32},
}

// Primitive returns the descriptor for a primitive kind.
// It panics when k is not primitive.
func Primitive(k Kind) *Descriptor {
	if !k.IsPrimitive() {
		panic(fmt.Sprintf("canon: %s is not a primitive kind", k))
	}
	return primitives[k]
}

// String returns the string descriptor.
func String() *Descriptor {
	return stringDescriptor
}

// List returns a list descriptor with the given element type.
// It panics when elem is nil.
func List(elem *Descriptor) *Descriptor {
	if elem == nil {
		panic("canon: list element descriptor is nil")
	}
	return &Descriptor{
		kind:  KindList,
		elem:  elem,
		size:  8,
		align: 4,
		heap:  true,
		flat:  []wasmbridge.ValueType{wasmbridge.ValueTypeI32, wasmbridge.ValueTypeI32},
	}
}

// Record builds a record descriptor and computes its layout.
// Field names must be unique and non-empty.
func Record(name string, fields ...Field) (*Descriptor, error) {
	d := &Descriptor{
		kind:    KindRecord,
		name:    name,
		fields:  make([]Field, len(fields)),
		offsets: make([]uint32, len(fields)),
		align:   1,
	}
	copy(d.fields, fields)

	seen := make(map[string]struct{}, len(fields))
	var offset uint32
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("record %q: field %d has no name", name, i)
		}
		if f.Type == nil {
			return nil, fmt.Errorf("record %q: field %q has no type", name, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("record %q: duplicate field %q", name, f.Name)
		}
		seen[f.Name] = struct{}{}

		offset = alignTo(offset, f.Type.align)
		d.offsets[i] = offset
		offset += f.Type.size
		if f.Type.align > d.align {
			d.align = f.Type.align
		}
		d.heap = d.heap || f.Type.heap
		d.flat = append(d.flat, f.Type.flat...)
	}
	d.size = alignTo(offset, d.align)
	return d, nil
}

// MustRecord is like Record but panics on error.
func MustRecord(name string, fields ...Field) *Descriptor {
	d, err := Record(name, fields...)
	if err != nil {
		panic(err)
	}
	return d
}

// Tuple lays out an anonymous record with positional field names.
func Tuple(types ...*Descriptor) (*Descriptor, error) {
	fields := make([]Field, len(types))
	for i, t := range types {
		fields[i] = Field{Name: fmt.Sprintf("%d", i), Type: t}
	}
	return Record("", fields...)
}

func (d *Descriptor) Kind() Kind { return d.kind }

// Name returns the record name, empty for anonymous records and other kinds.
func (d *Descriptor) Name() string { return d.name }

// Elem returns the element descriptor of a list.
func (d *Descriptor) Elem() *Descriptor { return d.elem }

// Fields returns a copy of the record fields in declaration order.
func (d *Descriptor) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// FieldOffset returns the byte offset of the i-th record field.
func (d *Descriptor) FieldOffset(i int) uint32 { return d.offsets[i] }

// Size is the in-memory byte size.
func (d *Descriptor) Size() uint32 { return d.size }

// Align is the in-memory alignment.
func (d *Descriptor) Align() uint32 { return d.align }

// IsHeap reports whether values of this shape live in guest memory.
func (d *Descriptor) IsHeap() bool { return d.heap }

// FlatTypes returns the core types the value flattens to.
func (d *Descriptor) FlatTypes() []wasmbridge.ValueType {
	out := make([]wasmbridge.ValueType, len(d.flat))
	copy(out, d.flat)
	return out
}

// FlatCount is len(FlatTypes()).
func (d *Descriptor) FlatCount() int { return len(d.flat) }

// String renders the descriptor in WIT syntax.
func (d *Descriptor) String() string {
	switch d.kind {
	case KindList:
		return "list<" + d.elem.String() + ">"
	case KindRecord:
		if d.name != "" {
			return d.name
		}
		var b strings.Builder
		b.WriteString("record { ")
		for i, f := range d.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(f.Type.String())
		}
		b.WriteString(" }")
		return b.String()
	default:
		return d.kind.String()
	}
}

// Equal reports whether two descriptors describe the same shape.
// Record names are ignored.
func (d *Descriptor) Equal(o *Descriptor) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil || d.kind != o.kind {
		return false
	}
	switch d.kind {
	case KindList:
		return d.elem.Equal(o.elem)
	case KindRecord:
		if len(d.fields) != len(o.fields) {
			return false
		}
		for i := range d.fields {
			if d.fields[i].Name != o.fields[i].Name || !d.fields[i].Type.Equal(o.fields[i].Type) {
				return false
			}
		}
	}
	return true
}

func alignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
