// Package alloc obtains guest memory by calling the module's reallocator
// export.
//
// The bridge only ever asks for new buffers. Buffers written by the host are
// owned by the guest from then on and are never freed by the host.
package alloc

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// DefaultExport is the canonical name of the reallocator export.
const DefaultExport = "cabi_realloc"

// Manager drives one instance's reallocator export.
// Calls must be serialized with every other call into the same instance.
type Manager struct {
	fn     wasmbridge.Function
	name   string
	logger *zap.Logger
}

// New resolves the reallocator named export on inst. A module without the
// export still yields a Manager; Allocate then fails with an allocation
// error.
func New(inst wasmbridge.Instance, export string) *Manager {
	if export == "" {
		export = DefaultExport
	}
	m := &Manager{name: export, logger: Logger()}
	if inst != nil {
		m.fn = inst.ExportedFunction(export)
	}
	return m
}

// Export returns the reallocator export name.
func (m *Manager) Export() string {
	return m.name
}

// Available reports whether the module exports the reallocator.
func (m *Manager) Available() bool {
	return m.fn != nil
}

// Allocate calls realloc(oldPtr, oldSize, align, newSize) in the guest and
// returns its result unchanged.
func (m *Manager) Allocate(ctx context.Context, oldPtr, oldSize, align, newSize uint32) (uint32, error) {
	if m.fn == nil {
		return 0, errors.AllocationFailed(newSize, align, errors.NotFound(errors.PhaseAlloc, "export", m.name))
	}
	results, err := m.fn.Call(ctx, uint64(oldPtr), uint64(oldSize), uint64(align), uint64(newSize))
	if err != nil {
		return 0, errors.AllocationFailed(newSize, align, errors.Trap(errors.PhaseAlloc, m.name, err))
	}
	if len(results) != 1 {
		return 0, errors.AllocationFailed(newSize, align, fmt.Errorf("%s returned %d values, want 1", m.name, len(results)))
	}
	ptr := uint32(results[0])
	if align > 1 && ptr%align != 0 {
		return 0, errors.AllocationFailed(newSize, align, fmt.Errorf("%s returned misaligned offset %d", m.name, ptr))
	}
	m.logger.Debug("guest allocation",
		zap.String("export", m.name),
		zap.Uint32("size", newSize),
		zap.Uint32("align", align),
		zap.Uint32("ptr", ptr))
	return ptr, nil
}

// Alloc requests a fresh buffer of size bytes.
func (m *Manager) Alloc(ctx context.Context, size, align uint32) (uint32, error) {
	return m.Allocate(ctx, 0, 0, align, size)
}

var _ wasmbridge.Allocator = (*Manager)(nil)
