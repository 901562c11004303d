package runtime

import (
	"context"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"github.com/prometheus/client_golang/prometheus"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/dispatch"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/schema"
)

type Runtime struct {
	engine     engine.Engine
	logger     *zap.Logger
	registerer prometheus.Registerer
	metrics    *dispatch.Metrics
	tracer     oteltrace.Tracer
	cfg        Config
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(r *Runtime) { r.cfg = cfg }
}

// WithLogger sets the logger handed to every dispatcher.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRegisterer sets where dispatch metrics are registered when
// metrics are enabled. The default is prometheus.DefaultRegisterer.
// Runtimes sharing a registerer and namespace share their collectors.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Runtime) { r.registerer = reg }
}

// WithTracer sets the tracer for call spans.
func WithTracer(t oteltrace.Tracer) Option {
	return func(r *Runtime) { r.tracer = t }
}

// New creates a runtime backed by the configured engine.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		cfg:        DefaultConfig(),
		logger:     zap.NewNop(),
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	eng, err := engine.New(ctx, r.cfg.Engine, r.cfg.engineConfig())
	if err != nil {
		return nil, err
	}
	r.engine = eng

	if r.cfg.Metrics.Enabled {
		m, err := dispatch.NewMetrics(r.cfg.Metrics.Namespace, r.registerer)
		if err != nil {
			_ = eng.Close(ctx)
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "register metrics")
		}
		r.metrics = m
	}

	r.logger.Debug("runtime created",
		zap.String("engine", eng.Name()),
		zap.Uint32("memory_limit_pages", r.cfg.MemoryLimitPages),
		zap.Stringer("record_params", r.cfg.Convention()))
	return r, nil
}

// Config returns the effective configuration.
func (r *Runtime) Config() Config {
	return r.cfg
}

// Engine returns the engine name.
func (r *Runtime) Engine() string {
	return r.engine.Name()
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Load compiles a core module and binds the exports declared in witText to
// it. Every declared export must be a function export of the module.
func (r *Runtime) Load(ctx context.Context, wasm []byte, witText string) (*Module, error) {
	doc, err := schema.Parse(witText)
	if err != nil {
		return nil, err
	}
	sigs, err := doc.Signatures()
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "WIT declares no functions")
	}

	compiled, err := r.engine.Compile(ctx, wasm)
	if err != nil {
		return nil, err
	}

	available := make(map[string]bool)
	for _, name := range compiled.ExportedFunctionNames() {
		available[name] = true
	}
	for _, sig := range sigs {
		if !available[sig.Name] {
			_ = compiled.Close(ctx)
			return nil, errors.SchemaValidation(sig.Name, "module has no export %q", sig.Name)
		}
	}

	r.logger.Debug("module loaded",
		zap.Int("bytes", len(wasm)),
		zap.Int("exports", len(sigs)))

	return &Module{
		runtime:  r,
		compiled: compiled,
		sigs:     sigs,
	}, nil
}

// LoadWAT compiles WebAssembly text and loads it like Load.
func (r *Runtime) LoadWAT(ctx context.Context, watText, witText string) (*Module, error) {
	wasm, err := wasmtime.Wat2Wasm(watText)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "compile WAT")
	}
	return r.Load(ctx, wasm, witText)
}
