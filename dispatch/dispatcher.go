package dispatch

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/wippyai/wasm-bridge/canon"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/registry"
)

const tracerName = "github.com/wippyai/wasm-bridge/dispatch"

// Dispatcher serializes and runs calls against one instance.
type Dispatcher struct {
	sem       *semaphore.Weighted
	codec     *canon.Codec
	logger    *zap.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	observers []Observer
	closed    bool // guarded by sem
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics records calls into m.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer sets the tracer used for call spans. The default is the
// global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithObserver adds an observer of state transitions.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observers = append(d.observers, o) }
}

// New returns a dispatcher lifting and lowering through codec.
func New(codec *canon.Codec, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sem:    semaphore.NewWeighted(1),
		codec:  codec,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call lowers args, invokes fn, lifts its result and runs the post-return
// export. It blocks until no other call is in flight on the instance; a
// context canceled while waiting abandons the call before any guest memory
// is touched.
func (d *Dispatcher) Call(ctx context.Context, fn *registry.ExportFunction, args ...any) (any, error) {
	waitStart := time.Now()
	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.logger.Warn("call abandoned waiting for instance", zap.String("export", fn.Name), zap.Error(err))
		return nil, d.fail(fn, errors.Wrap(errors.PhaseCall, errors.KindCanceled, err, "abandoned while waiting for instance"))
	}
	defer d.sem.Release(1)
	if d.closed {
		return nil, d.fail(fn, errors.NotInitialized(errors.PhaseCall, "instance (closed)"))
	}
	if d.metrics != nil {
		d.metrics.lockWait.Observe(time.Since(waitStart).Seconds())
		d.metrics.calls.WithLabelValues(fn.Name).Inc()
		defer func(start time.Time) {
			d.metrics.duration.WithLabelValues(fn.Name).Observe(time.Since(start).Seconds())
		}(time.Now())
	}

	ctx, span := d.tracer.Start(ctx, "wasm.call", trace.WithAttributes(
		attribute.String("wasm.export", fn.Name),
		attribute.Int("wasm.params", len(fn.Params)),
	))
	defer span.End()

	result, err := d.run(ctx, fn, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.KindOf(err)))
		return nil, d.fail(fn, err)
	}
	return result, nil
}

// Close waits for the call in flight to finish its cycle, then runs
// release with the instance lock held. Later calls fail with
// not_initialized. Only the first Close runs release.
func (d *Dispatcher) Close(ctx context.Context, release func(context.Context) error) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(errors.PhaseCall, errors.KindCanceled, err, "close abandoned waiting for instance")
	}
	defer d.sem.Release(1)
	if d.closed {
		return nil
	}
	d.closed = true
	if release == nil {
		return nil
	}
	return release(ctx)
}

func (d *Dispatcher) run(ctx context.Context, fn *registry.ExportFunction, args []any) (any, error) {
	state := StateIdle
	defer func() {
		if state != StateIdle {
			d.transition(ctx, fn.Name, state, StateIdle, nil)
		}
	}()

	raw, err := d.codec.LowerParams(ctx, fn.Params, args, fn.Convention)
	if err != nil {
		return nil, err
	}
	state = d.transition(ctx, fn.Name, state, StateArgumentsLowered, nil)

	results, err := fn.Raw().Call(ctx, raw...)
	if err != nil {
		return nil, errors.Trap(errors.PhaseCall, fn.Name, err)
	}
	state = d.transition(ctx, fn.Name, state, StateRawCallInvoked, nil)

	return d.liftAndRelease(ctx, fn, results, &state)
}

// liftAndRelease lifts the result, then runs the cleanup export exactly
// once whatever the lift outcome.
func (d *Dispatcher) liftAndRelease(ctx context.Context, fn *registry.ExportFunction, results []uint64, state *State) (result any, err error) {
	if fn.PostReturn {
		defer func() {
			cleanupErr := d.postReturn(ctx, fn, results)
			*state = d.transition(ctx, fn.Name, *state, StateCleanupInvoked, cleanupErr)
			switch {
			case cleanupErr == nil:
			case err == nil:
				result, err = nil, cleanupErr
			default:
				d.logger.Warn("cleanup failed after lift error",
					zap.String("export", fn.Name),
					zap.NamedError("lift_error", err),
					zap.Error(cleanupErr))
				err = stderrors.Join(err, cleanupErr)
			}
		}()
	}

	result, err = d.codec.LiftResult(fn.Result, results)
	*state = d.transition(ctx, fn.Name, *state, StateReturnLifted, err)
	if err != nil {
		return nil, errors.WithPath(err, errors.PhaseLift, errors.KindDecode, fn.Name)
	}
	return result, nil
}

func (d *Dispatcher) postReturn(ctx context.Context, fn *registry.ExportFunction, results []uint64) error {
	if d.metrics != nil {
		d.metrics.cleanups.WithLabelValues(fn.Name).Inc()
	}
	d.logger.Debug("post-return", zap.String("export", fn.CleanupName), zap.Uint64s("raw", results))
	if _, err := fn.Cleanup().Call(context.WithoutCancel(ctx), results...); err != nil {
		return errors.Trap(errors.PhaseCleanup, fn.CleanupName, err)
	}
	return nil
}

func (d *Dispatcher) transition(ctx context.Context, export string, from, to State, err error) State {
	if ce := d.logger.Check(zap.DebugLevel, "call state"); ce != nil {
		ce.Write(zap.String("export", export), zap.Stringer("from", from), zap.Stringer("to", to), zap.Error(err))
	}
	trace.SpanFromContext(ctx).AddEvent(to.String())
	t := Transition{Export: export, From: from, To: to, Err: err}
	for _, o := range d.observers {
		o.Observe(ctx, t)
	}
	return to
}

func (d *Dispatcher) fail(fn *registry.ExportFunction, err error) error {
	if d.metrics != nil {
		d.metrics.failures.WithLabelValues(fn.Name, string(errors.KindOf(err))).Inc()
	}
	d.logger.Debug("call failed", zap.String("export", fn.Name), zap.Error(err))
	return err
}
