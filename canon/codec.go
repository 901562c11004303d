package canon

import (
	"context"
	"strconv"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/memory"
)

// Codec lifts and lowers values against one instance's memory.
// A Codec is not safe for concurrent use; callers serialize access to the
// instance it belongs to.
type Codec struct {
	mem   *memory.Accessor
	alloc wasmbridge.Allocator
}

// NewCodec returns a codec over mem. alloc may be nil when no argument
// needs guest memory; lowering a heap value then fails with an allocation
// error.
func NewCodec(mem *memory.Accessor, alloc wasmbridge.Allocator) *Codec {
	return &Codec{mem: mem, alloc: alloc}
}

// Memory returns the accessor the codec reads and writes through.
func (c *Codec) Memory() *memory.Accessor {
	return c.mem
}

func (c *Codec) allocate(ctx context.Context, size, align uint32) (uint32, error) {
	if c.alloc == nil {
		return 0, errors.AllocationFailed(size, align, errors.NotInitialized(errors.PhaseAlloc, "allocator"))
	}
	return c.alloc.Alloc(ctx, size, align)
}

func appendPath(path []string, name string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, name)
}

func appendIndex(path []string, i int) []string {
	return appendPath(path, "["+strconv.Itoa(i)+"]")
}
