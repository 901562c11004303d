// Package canon implements the canonical ABI value codec: value descriptors,
// their linear-memory layout, and lift/lower routines between Go values and
// guest memory.
//
// # Supported Shapes
//
//	Descriptor      Go value                      Size  Align
//	────────────────────────────────────────────────────────────
//	bool            bool                          1     1
//	u8/s8           uint8/int8                    1     1
//	u16/s16         uint16/int16                  2     2
//	u32/s32         uint32/int32                  4     4
//	u64/s64         uint64/int64                  8     8
//	f32/f64         float32/float64               4/8   4/8
//	char            rune                          4     4
//	string          string                        8     4  (ptr, len)
//	list<T>         []T for primitives and        8     4  (ptr, count)
//	                strings, []any otherwise
//	record          Record                        sum   max field align
//
// Records are laid out in declaration order with each field at its natural
// alignment, and the total size is padded to the record alignment.
//
// # Lowering
//
// Primitives become raw core values. Strings and lists are written to a
// buffer obtained from the guest allocator and passed as (ptr, len). Records
// are either stored in a guest buffer and passed by pointer, or flattened
// field by field, depending on the export's Convention. An empty string or
// list is passed as (0, 0) without calling the allocator.
//
// # Lifting
//
// A result whose flattened form is a single core value is lifted from that
// value. Every other result is lifted from the offset the guest returned.
// Lifting copies out of guest memory; no returned value aliases it.
package canon
