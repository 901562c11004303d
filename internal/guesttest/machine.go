package guesttest

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"github.com/stretchr/testify/require"
)

// MachineWIT declares the exports of MachineWAT.
const MachineWIT = `
package example:machine@0.1.0;

world machine {
	export count-symbols: func(text: string) -> u32;
	export reverse: func(data: list<u8>) -> list<u8>;
	export echo: func(text: string) -> string;
	export distance: func(a: point, b: point) -> u32;
	export run: func(machine: machine-id, start: point, destination: point) -> run-result;
	export boom: func() -> u32;
	export reset: func();
}

record point { x: u32, y: u32 }

type machine-id = u64;

record run-result { machine-id: machine-id, message: string }
`

// RunMessage is the message returned by the run export.
const RunMessage = "machine arrived"

// MachineWAT is a guest following the canonical ABI with records passed by
// pointer. cabi_realloc is a bump allocator starting at 1024 that traps when
// memory cannot grow. Every cabi_post_* export bumps a counter read by the
// extra "freed" export.
const MachineWAT = `
(module
  (memory (export "memory") 1)
  (global $heap (mut i32) (i32.const 1024))
  (global $freed (mut i32) (i32.const 0))
  (data (i32.const 256) "machine arrived")

  (func $realloc (export "cabi_realloc")
    (param $old i32) (param $old_size i32) (param $align i32) (param $new_size i32)
    (result i32)
    (local $ptr i32)
    (local $limit i32)
    (local.set $ptr
      (i32.and
        (i32.add (global.get $heap) (i32.sub (local.get $align) (i32.const 1)))
        (i32.sub (i32.const 0) (local.get $align))))
    (global.set $heap (i32.add (local.get $ptr) (local.get $new_size)))
    (local.set $limit (i32.mul (memory.size) (i32.const 65536)))
    (if (i32.gt_u (global.get $heap) (local.get $limit))
      (then
        (if (i32.eq
              (memory.grow
                (i32.add
                  (i32.shr_u (i32.sub (global.get $heap) (local.get $limit)) (i32.const 16))
                  (i32.const 1)))
              (i32.const -1))
          (then unreachable))))
    (local.get $ptr))

  (func $absdiff (param $a i32) (param $b i32) (result i32)
    (select
      (i32.sub (local.get $a) (local.get $b))
      (i32.sub (local.get $b) (local.get $a))
      (i32.gt_u (local.get $a) (local.get $b))))

  (func $free (param i32)
    (global.set $freed (i32.add (global.get $freed) (i32.const 1))))

  (func (export "count-symbols") (param $ptr i32) (param $len i32) (result i32)
    (local $i i32)
    (local $n i32)
    (block $done
      (loop $next
        (br_if $done (i32.ge_u (local.get $i) (local.get $len)))
        (if (i32.ne
              (i32.and
                (i32.load8_u (i32.add (local.get $ptr) (local.get $i)))
                (i32.const 0xc0))
              (i32.const 0x80))
          (then (local.set $n (i32.add (local.get $n) (i32.const 1)))))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $next)))
    (local.get $n))

  (func (export "reverse") (param $ptr i32) (param $len i32) (result i32)
    (local $ret i32)
    (local $out i32)
    (local $i i32)
    (local.set $ret (call $realloc (i32.const 0) (i32.const 0) (i32.const 4) (i32.const 8)))
    (local.set $out (call $realloc (i32.const 0) (i32.const 0) (i32.const 1) (local.get $len)))
    (block $done
      (loop $next
        (br_if $done (i32.ge_u (local.get $i) (local.get $len)))
        (i32.store8
          (i32.add (local.get $out) (local.get $i))
          (i32.load8_u
            (i32.add
              (local.get $ptr)
              (i32.sub (i32.sub (local.get $len) (local.get $i)) (i32.const 1)))))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $next)))
    (i32.store (local.get $ret) (local.get $out))
    (i32.store offset=4 (local.get $ret) (local.get $len))
    (local.get $ret))
  (func (export "cabi_post_reverse") (param i32) (call $free (local.get 0)))

  (func (export "echo") (param $ptr i32) (param $len i32) (result i32)
    (local $ret i32)
    (local.set $ret (call $realloc (i32.const 0) (i32.const 0) (i32.const 4) (i32.const 8)))
    (i32.store (local.get $ret) (local.get $ptr))
    (i32.store offset=4 (local.get $ret) (local.get $len))
    (local.get $ret))
  (func (export "cabi_post_echo") (param i32) (call $free (local.get 0)))

  (func (export "distance") (param $a i32) (param $b i32) (result i32)
    (i32.add
      (call $absdiff (i32.load (local.get $a)) (i32.load (local.get $b)))
      (call $absdiff (i32.load offset=4 (local.get $a)) (i32.load offset=4 (local.get $b)))))

  (func (export "run") (param $id i64) (param $start i32) (param $dest i32) (result i32)
    (local $ret i32)
    (local.set $ret (call $realloc (i32.const 0) (i32.const 0) (i32.const 8) (i32.const 16)))
    (i64.store (local.get $ret) (local.get $id))
    (i32.store offset=8 (local.get $ret) (i32.const 256))
    (i32.store offset=12 (local.get $ret) (i32.const 15))
    (local.get $ret))
  (func (export "cabi_post_run") (param i32) (call $free (local.get 0)))

  (func (export "boom") (result i32)
    unreachable)

  (func (export "reset")
    (global.set $heap (i32.const 1024)))

  (func (export "freed") (result i32)
    (global.get $freed))
)
`

// MachineWasm compiles MachineWAT.
func MachineWasm(t testing.TB) []byte {
	t.Helper()
	return CompileWAT(t, MachineWAT)
}

// CompileWAT converts WebAssembly text to a binary module.
func CompileWAT(t testing.TB, src string) []byte {
	t.Helper()
	wasm, err := wasmtime.Wat2Wasm(src)
	require.NoError(t, err)
	return wasm
}
