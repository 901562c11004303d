package runtime

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/dispatch"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/registry"
)

// Instance is a live guest. Calls on one instance are serialized; concurrent
// callers wait their turn.
type Instance struct {
	raw        wasmbridge.Instance
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	broken     atomic.Pointer[error]
	invalidate bool
	closed     atomic.Bool
}

// Call invokes the export name with Go arguments and returns the lifted
// result, or nil for exports without one.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	if i.closed.Load() {
		return nil, errors.NotInitialized(errors.PhaseCall, "instance (closed)")
	}
	if cause := i.broken.Load(); cause != nil {
		return nil, errors.New(errors.PhaseCall, errors.KindNotInitialized).
			Path(name).
			Cause(*cause).
			Detail("instance invalidated by an earlier failure").
			Build()
	}

	fn, err := i.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	result, err := i.dispatcher.Call(ctx, fn, args...)
	if err != nil && i.invalidate && poisons(err) {
		i.broken.CompareAndSwap(nil, &err)
	}
	return result, err
}

var allocTrap = &errors.Error{Phase: errors.PhaseAlloc, Kind: errors.KindTrap}

// poisons reports whether err leaves the guest in an unknown state.
func poisons(err error) bool {
	switch errors.KindOf(err) {
	case errors.KindTrap, errors.KindOutOfBounds:
		return true
	}
	return stderrors.Is(err, allocTrap)
}

// Valid reports whether the instance still accepts calls.
func (i *Instance) Valid() bool {
	return !i.closed.Load() && i.broken.Load() == nil
}

// Exports returns the validated exports sorted by name.
func (i *Instance) Exports() []*registry.ExportFunction {
	return i.registry.Exports()
}

// Raw returns the engine instance.
func (i *Instance) Raw() wasmbridge.Instance {
	return i.raw
}

// Close waits for a call in flight to complete, cleanup included, then
// releases the engine instance. A ctx done before that leaves the instance
// open and returns a canceled error.
func (i *Instance) Close(ctx context.Context) error {
	if i.closed.Load() {
		return nil
	}
	err := i.dispatcher.Close(ctx, i.raw.Close)
	if errors.IsKind(err, errors.KindCanceled) {
		return err
	}
	i.closed.Store(true)
	return err
}
