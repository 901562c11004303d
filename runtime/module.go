package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/alloc"
	"github.com/wippyai/wasm-bridge/canon"
	"github.com/wippyai/wasm-bridge/dispatch"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/memory"
	"github.com/wippyai/wasm-bridge/registry"
)

// Module is a compiled guest bound to its declared exports. It is safe for
// concurrent use.
type Module struct {
	runtime  *Runtime
	compiled engine.Module
	sigs     []registry.Signature
}

// Export describes one declared export.
type Export struct {
	Name      string
	Signature registry.Signature
}

func (e Export) String() string {
	return e.Signature.String()
}

// Exports returns the declared exports in declaration order.
func (m *Module) Exports() []Export {
	out := make([]Export, len(m.sigs))
	for i, sig := range m.sigs {
		out[i] = Export{Name: sig.Name, Signature: sig}
	}
	return out
}

// Instantiate creates an instance and validates the module against the
// declared signatures. Validation failures list every problem found.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	raw, err := m.compiled.Instantiate(ctx)
	if err != nil {
		return nil, err
	}

	cfg := m.runtime.cfg
	reg, err := registry.New(raw, m.sigs, cfg.registryOptions())
	if err != nil {
		_ = raw.Close(ctx)
		return nil, err
	}

	mgr := alloc.New(raw, reg.AllocatorExport())
	codec := canon.NewCodec(memory.NewAccessor(raw.Memory()), mgr)

	opts := []dispatch.Option{dispatch.WithLogger(m.runtime.logger)}
	if m.runtime.metrics != nil {
		opts = append(opts, dispatch.WithMetrics(m.runtime.metrics))
	}
	if m.runtime.tracer != nil {
		opts = append(opts, dispatch.WithTracer(m.runtime.tracer))
	}

	m.runtime.logger.Debug("instance created",
		zap.Int("exports", len(reg.Exports())),
		zap.Bool("allocator", reg.HasAllocator()))

	return &Instance{
		raw:        raw,
		registry:   reg,
		dispatcher: dispatch.New(codec, opts...),
		invalidate: cfg.InvalidateOnTrap,
	}, nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
