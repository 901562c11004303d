// Package wasmbridge moves structured values between a Go host and a
// WebAssembly guest whose exports only take and return scalar integers.
//
// The bridge lifts guest-returned pointers into Go values, lowers Go values
// into guest linear memory before a call, obtains write space through the
// guest's own reallocator export, and invokes the guest's post-return
// cleanup export exactly once after every call that produced a heap-backed
// result.
//
// # Architecture Overview
//
//	wasmbridge/        Root package with the Region, Function, Instance and Allocator interfaces
//	├── runtime/       High-level API: load a module with its WIT, instantiate, call
//	├── dispatch/      Call state machine, per-instance lock, post-return guarantee
//	├── registry/      Export resolution and load-time schema validation
//	├── canon/         Value descriptors, layout, lift/lower codec
//	├── alloc/         Guest reallocator driver
//	├── memory/        Bounds-checked linear memory accessor
//	├── schema/        WIT subset parser producing wit.Type signatures
//	├── engine/        wazero and wasmtime adapters
//	├── trace/         OpenTelemetry tracer setup
//	├── errors/        Structured error types
//	└── cmd/bridge/    CLI: list and call exports, interactive TUI
//
// # Quick Start
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.Load(ctx, wasmBytes, `
//	    world machine {
//	        export count-symbols: func(s: string) -> u32;
//	    }`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	n, err := inst.Call(ctx, "count-symbols", "string with symbols (~25)")
//
// # Ownership
//
// The bridge never owns guest memory. Argument buffers are obtained from the
// guest reallocator, written by the host and reclaimed by guest logic; result
// buffers are released by the guest's cabi_post_<export> function, which the
// dispatcher calls exactly once after every raw call that returned normally.
//
// # Concurrency
//
// One call at a time runs against an instance; concurrent callers queue on a
// per-instance lock held for the whole lower/call/lift/cleanup cycle.
// Separate instances run in parallel.
package wasmbridge
