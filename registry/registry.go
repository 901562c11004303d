// Package registry resolves export names to typed call targets and checks,
// once at load time, that the module can serve every declared export.
package registry

import (
	stderrors "errors"
	"sort"
	"strings"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/alloc"
	"github.com/wippyai/wasm-bridge/canon"
	"github.com/wippyai/wasm-bridge/errors"
)

// DefaultPostReturnPrefix prefixes an export name to form its cleanup
// export name.
const DefaultPostReturnPrefix = "cabi_post_"

// Signature is the declared shape of one export.
type Signature struct {
	Result *canon.Descriptor
	Name   string
	Params []canon.Field
}

// String renders the signature as a WIT function declaration, e.g.
// "reverse: func(data: list<u8>) -> list<u8>".
func (s Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString(": func(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	if s.Result != nil {
		b.WriteString(" -> ")
		b.WriteString(s.Result.String())
	}
	return b.String()
}

// Options controls export naming and calling conventions.
type Options struct {
	AllocatorExport  string
	PostReturnPrefix string
	Convention       canon.Convention
}

func (o Options) withDefaults() Options {
	if o.AllocatorExport == "" {
		o.AllocatorExport = alloc.DefaultExport
	}
	if o.PostReturnPrefix == "" {
		o.PostReturnPrefix = DefaultPostReturnPrefix
	}
	return o
}

// ExportFunction is a validated, callable export.
type ExportFunction struct {
	raw         wasmbridge.Function
	cleanup     wasmbridge.Function
	Result      *canon.Descriptor
	Name        string
	CleanupName string
	Params      []canon.Field
	Convention  canon.Convention
	PostReturn  bool
}

// Raw returns the engine handle of the export.
func (e *ExportFunction) Raw() wasmbridge.Function { return e.raw }

// Cleanup returns the post-return export, or nil when PostReturn is false.
func (e *ExportFunction) Cleanup() wasmbridge.Function { return e.cleanup }

// NeedsAllocator reports whether lowering the arguments may write to
// guest memory.
func (e *ExportFunction) NeedsAllocator() bool {
	return needsAllocator(e.Params, e.Convention)
}

// ReturnsHeap reports whether the result is lifted from guest memory.
func (e *ExportFunction) ReturnsHeap() bool {
	return canon.ReturnsHeap(e.Result)
}

// String renders the export as a WIT function declaration.
func (e *ExportFunction) String() string {
	return Signature{Name: e.Name, Params: e.Params, Result: e.Result}.String()
}

// Registry holds the validated exports of one instance.
type Registry struct {
	exports   map[string]*ExportFunction
	names     []string
	allocator string
	hasAlloc  bool
}

// New validates sigs against inst. All problems are reported together as
// schema validation errors.
func New(inst wasmbridge.Instance, sigs []Signature, opts Options) (*Registry, error) {
	opts = opts.withDefaults()
	r := &Registry{
		exports:   make(map[string]*ExportFunction, len(sigs)),
		allocator: opts.AllocatorExport,
	}

	var problems []error
	report := func(err error) { problems = append(problems, err) }

	allocFn := inst.ExportedFunction(opts.AllocatorExport)
	r.hasAlloc = allocFn != nil
	if allocFn != nil {
		i32 := wasmbridge.ValueTypeI32
		if err := checkCore(opts.AllocatorExport, allocFn,
			[]wasmbridge.ValueType{i32, i32, i32, i32}, []wasmbridge.ValueType{i32}); err != nil {
			report(err)
		}
	}

	for _, sig := range sigs {
		if _, dup := r.exports[sig.Name]; dup {
			report(errors.SchemaValidation(sig.Name, "export declared twice"))
			continue
		}
		fn := inst.ExportedFunction(sig.Name)
		if fn == nil {
			report(errors.SchemaValidation(sig.Name, "module has no export %q", sig.Name))
			continue
		}

		e := &ExportFunction{
			raw:         fn,
			Name:        sig.Name,
			Params:      sig.Params,
			Result:      sig.Result,
			Convention:  opts.Convention,
			CleanupName: opts.PostReturnPrefix + sig.Name,
		}
		resultTypes := canon.ResultTypes(sig.Result)
		if err := checkCore(sig.Name, fn, canon.ParamTypes(sig.Params, opts.Convention), resultTypes); err != nil {
			report(err)
		}

		if cleanup := inst.ExportedFunction(e.CleanupName); cleanup != nil {
			e.cleanup = cleanup
			e.PostReturn = true
			if err := checkCore(e.CleanupName, cleanup, resultTypes, []wasmbridge.ValueType{}); err != nil {
				report(err)
			}
		} else if e.ReturnsHeap() {
			report(errors.SchemaValidation(sig.Name, "result %s is heap-backed but module has no %q export", sig.Result, e.CleanupName))
		}

		if e.NeedsAllocator() && !r.hasAlloc {
			report(errors.SchemaValidation(sig.Name, "arguments need guest memory but module has no %q export", opts.AllocatorExport))
		}

		r.exports[sig.Name] = e
		r.names = append(r.names, sig.Name)
	}

	if len(problems) > 0 {
		return nil, stderrors.Join(problems...)
	}
	sort.Strings(r.names)
	return r, nil
}

// Resolve returns the export registered under name.
func (r *Registry) Resolve(name string) (*ExportFunction, error) {
	e, ok := r.exports[name]
	if !ok {
		return nil, errors.ExportNotFound(name)
	}
	return e, nil
}

// Exports returns all exports sorted by name.
func (r *Registry) Exports() []*ExportFunction {
	out := make([]*ExportFunction, len(r.names))
	for i, name := range r.names {
		out[i] = r.exports[name]
	}
	return out
}

// AllocatorExport returns the reallocator export name.
func (r *Registry) AllocatorExport() string { return r.allocator }

// HasAllocator reports whether the module exports the reallocator.
func (r *Registry) HasAllocator() bool { return r.hasAlloc }

func needsAllocator(params []canon.Field, conv canon.Convention) bool {
	flat := 0
	for _, p := range params {
		if p.Type.IsHeap() {
			return true
		}
		if conv == canon.RecordsByPointer && p.Type.Kind() == canon.KindRecord && p.Type.Size() > 0 {
			return true
		}
		flat += p.Type.FlatCount()
	}
	return conv == canon.RecordsFlattened && flat > canon.MaxFlatParams
}

// checkCore compares the engine-reported core signature of fn, when
// available, with the expected one.
func checkCore(name string, fn wasmbridge.Function, params, results []wasmbridge.ValueType) error {
	gotParams, gotResults := fn.ParamTypes(), fn.ResultTypes()
	if gotParams != nil && !sameTypes(gotParams, params) {
		return errors.SchemaValidation(name, "core params %s, declared signature needs %s",
			typeList(gotParams), typeList(params))
	}
	if gotResults != nil && !sameTypes(gotResults, results) {
		return errors.SchemaValidation(name, "core results %s, declared signature needs %s",
			typeList(gotResults), typeList(results))
	}
	return nil
}

func sameTypes(a, b []wasmbridge.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func typeList(types []wasmbridge.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = wasmbridge.ValueTypeName(t)
	}
	return "(" + strings.Join(names, ", ") + ")"
}
