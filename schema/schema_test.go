package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/canon"
	"github.com/wippyai/wasm-bridge/errors"
)

const machineWIT = `
package example:machine@0.1.0;

/* records may be declared after use */
world machine {
	export count-symbols: func(text: string) -> u32;
	export reverse: func(data: list<u8>) -> list<u8>;
	export run: func(machine: machine-id, start: point, destination: point) -> run-result;
	export reset: func();
	import log: func(msg: string);
}

// coordinates
record point {
	x: u32,
	y: u32,
}

type machine-id = u64;

record run-result { machine-id: machine-id, message: string }
`

func TestParse_Machine(t *testing.T) {
	doc, err := Parse(machineWIT)
	require.NoError(t, err)
	require.Len(t, doc.Functions, 4)

	count, ok := doc.Function("count-symbols")
	require.True(t, ok)
	require.Len(t, count.Params, 1)
	require.Equal(t, "text", count.Params[0].Name)
	require.IsType(t, wit.String{}, count.Params[0].Type)
	require.IsType(t, wit.U32{}, count.Result)

	reset, ok := doc.Function("reset")
	require.True(t, ok)
	require.Nil(t, reset.Result)
	require.Empty(t, reset.Params)

	_, ok = doc.Function("log")
	require.False(t, ok, "imports are not exports")

	run, _ := doc.Function("run")
	require.IsType(t, wit.U64{}, run.Params[0].Type)
	pt, ok := run.Params[1].Type.(*wit.TypeDef)
	require.True(t, ok)
	require.Equal(t, "point", *pt.Name)
	require.Len(t, pt.Kind.(*wit.Record).Fields, 2)

	require.Contains(t, doc.Types, "point")
	require.Contains(t, doc.Types, "machine-id")
}

func TestSignatures(t *testing.T) {
	doc, err := Parse(machineWIT)
	require.NoError(t, err)

	sigs, err := doc.Signatures()
	require.NoError(t, err)
	require.Len(t, sigs, 4)

	run := sigs[2]
	require.Equal(t, "run", run.Name)
	require.Equal(t, "u64", run.Params[0].Type.String())
	require.Equal(t, canon.KindRecord, run.Params[1].Type.Kind())
	require.Equal(t, uint32(8), run.Params[1].Type.Size())
	require.Equal(t, "run-result", run.Result.String())
	require.Equal(t, uint32(16), run.Result.Size())

	rev := sigs[1]
	require.Equal(t, "list<u8>", rev.Result.String())
}

func TestParse_Nested(t *testing.T) {
	doc, err := Parse(`
		interface api {
			record tag { name: string }
			record entry { tags: list<tag>, scores: list<list<f64>>, initial: char }
			entries: func(filter: list<string>,) -> list<entry>;
		}
	`)
	require.NoError(t, err)
	sigs, err := doc.Signatures()
	require.NoError(t, err)
	require.Equal(t, "list<entry>", sigs[0].Result.String())
	require.Equal(t, "list<string>", sigs[0].Params[0].Type.String())
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown type":      `f: func(a: nope);`,
		"cycle":             `record a { b: b } record b { a: a }`,
		"self list":         `record node { kids: list<node> }`,
		"unsupported type":  `f: func(a: option<u8>);`,
		"unsupported item":  `variant v { a, b }`,
		"duplicate type":    `type a = u8; type a = u16;`,
		"duplicate field":   `record r { x: u8, x: u8 }`,
		"duplicate func":    `f: func(); f: func();`,
		"missing semicolon": `f: func()`,
		"tuple result":      `f: func() -> (a: u8, b: u8);`,
		"bad char":          `f: func(a: u8) -> $;`,
		"open comment":      `/* f: func();`,
		"unclosed world":    `world w { f: func();`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(src)
			require.True(t, errors.IsKind(err, errors.KindInvalidInput), "err = %v", err)
		})
	}
}

func TestParse_EmptyResult(t *testing.T) {
	doc, err := Parse(`export tick: func() -> ();`)
	require.NoError(t, err)
	require.Nil(t, doc.Functions[0].Result)
}

func TestParse_SkipsInterfaceExports(t *testing.T) {
	doc, err := Parse(`world w { export api; use other:pkg/types.{point}; export go: func(); }`)
	require.NoError(t, err)
	require.Len(t, doc.Functions, 1)
}
