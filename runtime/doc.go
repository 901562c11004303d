// Package runtime provides the high-level API: load a core module with the
// WIT declaration of its exports, instantiate it, and call exports with Go
// values.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.Load(ctx, wasmBytes, `
//	    package example:machine;
//	    world machine {
//	        export count-symbols: func(text: string) -> u32;
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
//	n, err := inst.Call(ctx, "count-symbols", "Hello, wasm ✓")
//	fmt.Println(n) // uint32(13)
//
// # Guest Contract
//
// Guests follow the canonical ABI for the supported types. A module that
// takes strings, lists or records by pointer exports cabi_realloc; every
// export returning a string, list or multi-value record exports a matching
// cabi_post_<name>, which the bridge calls exactly once after lifting the
// result. Both names are configurable.
//
// Instantiate checks all of this, plus each export's core signature, and
// reports every problem at once.
//
// # Type Mapping
//
//	WIT Type         Go (lowering accepts)          Go (lifting returns)
//	────────────────────────────────────────────────────────────────────
//	bool             bool                           bool
//	u8..u64, s8..s64 any integer, integral float    uint8..uint64, int8..int64
//	f32, f64         any number                     float32, float64
//	char             rune, one-rune string          rune
//	string           string                         string
//	list<u8>         []byte, []T                    []byte
//	list<T>          slice or array                 typed slice or []any
//	record           struct, map, RecordValue       canon.RecordValue
//
// # Configuration
//
// Config is usually read from YAML with LoadConfig; Option values override
// it for embedding hosts. See DefaultConfig for defaults.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Calls on one Instance are
// serialized: a second caller blocks until the first call, including its
// cleanup, has finished, or until its context is done.
//
// # Failures
//
// After a guest trap or an out-of-bounds memory access the instance is
// invalidated (unless invalidate_on_trap is off) and further calls fail with
// kind not_initialized. Create a new instance to continue.
package runtime
