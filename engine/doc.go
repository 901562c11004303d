// Package engine adapts WebAssembly runtimes to the bridge's Instance model.
//
// The bridge itself never talks to a runtime directly. It needs three things
// from a loaded guest: a table of exported functions callable with flat core
// values, the guest's linear memory, and the core types of each export so the
// registry can check declared signatures at load time. This package provides
// those for two runtimes:
//
//	wazero   - pure Go, the default
//	wasmtime - cgo, via wasmtime-go
//
// # Lifecycle
//
//	Engine   - owns the runtime (and compilation cache)
//	Module   - a compiled binary; instantiated any number of times
//	Instance - one live guest with its own memory, implements wasmbridge.Instance
//
// Instances are not safe for concurrent calls. The dispatcher serializes
// every call cycle on an instance, so the adapters do no locking of their own.
//
// # Values
//
// Core values cross the adapter boundary as uint64 in the encoding wazero
// uses: i32 zero-extended, f32 as its IEEE bits in the low half, f64 as its
// IEEE bits. The wasmtime adapter converts to and from the typed values
// wasmtime-go expects.
//
// # WASI
//
// With Config.EnableWASI set, wasi_snapshot_preview1 is made available to
// guests. wazero gets the host module once per engine, wasmtime defines it on
// each linker with a fresh WasiConfig per store.
//
// Reactor modules exporting _initialize have it run on instantiation.
package engine
