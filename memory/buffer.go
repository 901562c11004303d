package memory

import (
	"sync"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

// PageSize is the size of a WebAssembly memory page.
const PageSize = 65536

// Buffer is an in-process wasmbridge.Region backed by a byte slice. It is
// used by tests and by hosts that stage guest memory outside an engine.
type Buffer struct {
	data []byte
	mu   sync.RWMutex
}

// NewBuffer returns a zeroed buffer of size bytes.
func NewBuffer(size uint32) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// Size returns the current length in bytes.
func (b *Buffer) Size() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint32(len(b.data))
}

// Read returns a view of byteCount bytes at offset.
func (b *Buffer) Read(offset, byteCount uint32) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(b.data)) {
		return nil, false
	}
	return b.data[offset:end:end], true
}

// Write copies data to offset.
func (b *Buffer) Write(offset uint32, data []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(b.data)) {
		return false
	}
	copy(b.data[offset:], data)
	return true
}

// Grow extends the buffer by pages and returns the previous size in pages.
func (b *Buffer) Grow(pages uint32) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := uint32(len(b.data) / PageSize)
	b.data = append(b.data, make([]byte, int(pages)*PageSize)...)
	return prev
}

var _ wasmbridge.Region = (*Buffer)(nil)
