package canon

import (
	"context"

	"github.com/wippyai/wasm-bridge/memory"
)

// bumpAllocator hands out increasing offsets, leaving 0 unused.
type bumpAllocator struct {
	next  uint32
	calls int
}

func (b *bumpAllocator) Alloc(_ context.Context, size, align uint32) (uint32, error) {
	b.calls++
	ptr := alignTo(b.next, align)
	b.next = ptr + size
	return ptr, nil
}

func newTestCodec(size uint32) (*Codec, *bumpAllocator) {
	alloc := &bumpAllocator{next: 16}
	return NewCodec(memory.NewAccessor(memory.NewBuffer(size)), alloc), alloc
}

var point = MustRecord("point",
	Field{Name: "x", Type: Primitive(KindU32)},
	Field{Name: "y", Type: Primitive(KindU32)},
)
