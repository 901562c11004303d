package canon

import (
	"context"
	"math"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/memory"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	codec, _ := newTestCodec(256)
	ctx := context.Background()

	tests := []struct {
		kind  Kind
		value any
	}{
		{KindBool, true},
		{KindBool, false},
		{KindU8, uint8(255)},
		{KindS8, int8(-128)},
		{KindU16, uint16(65535)},
		{KindS16, int16(-32768)},
		{KindU32, uint32(math.MaxUint32)},
		{KindS32, int32(math.MinInt32)},
		{KindU64, uint64(math.MaxUint64)},
		{KindS64, int64(math.MinInt64)},
		{KindF32, float32(-1.5)},
		{KindF32, math.Float32frombits(0x7fc00001)},
		{KindF64, math.Inf(-1)},
		{KindF64, math.Float64frombits(0x7ff8000000000123)},
		{KindChar, '🦀'},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			d := Primitive(tt.kind)

			raw, err := LowerScalar(d, tt.value)
			require.NoError(t, err)
			got, err := LiftScalar(d, raw)
			require.NoError(t, err)
			requireSameBits(t, tt.value, got)

			require.NoError(t, codec.Store(ctx, d, tt.value, 64))
			got, err = codec.Load(d, 64)
			require.NoError(t, err)
			requireSameBits(t, tt.value, got)
		})
	}
}

func requireSameBits(t *testing.T, want, got any) {
	t.Helper()
	switch w := want.(type) {
	case float32:
		require.IsType(t, float32(0), got)
		require.Equal(t, math.Float32bits(w), math.Float32bits(got.(float32)))
	case float64:
		require.IsType(t, float64(0), got)
		require.Equal(t, math.Float64bits(w), math.Float64bits(got.(float64)))
	default:
		require.Equal(t, want, got)
	}
}

func TestLowerScalarCoercion(t *testing.T) {
	raw, err := LowerScalar(Primitive(KindU8), float64(200))
	require.NoError(t, err)
	require.Equal(t, uint64(200), raw)

	raw, err = LowerScalar(Primitive(KindS32), -1)
	require.NoError(t, err)
	require.Equal(t, uint64(0xFFFFFFFF), raw)

	raw, err = LowerScalar(Primitive(KindChar), "é")
	require.NoError(t, err)
	require.Equal(t, uint64('é'), raw)

	for _, bad := range []struct {
		kind  Kind
		value any
	}{
		{KindU8, 256},
		{KindU8, -1},
		{KindU32, 1.5},
		{KindS8, 128},
		{KindBool, 1},
		{KindChar, "ab"},
		{KindChar, rune(0xD800)},
		{KindF64, "1.0"},
		{KindU64, nil},
	} {
		_, err := LowerScalar(Primitive(bad.kind), bad.value)
		require.True(t, errors.IsKind(err, errors.KindTypeMismatch), "%s %v", bad.kind, bad.value)
	}
}

func TestLiftBoolNonzero(t *testing.T) {
	v, err := LiftScalar(Primitive(KindBool), 42)
	require.NoError(t, err)
	require.Equal(t, true, v)

	v, err = LiftScalar(Primitive(KindBool), 0)
	require.NoError(t, err)
	require.Equal(t, false, v)
}

func TestLiftInvalidChar(t *testing.T) {
	_, err := LiftScalar(Primitive(KindChar), 0xD800)
	require.True(t, errors.IsKind(err, errors.KindDecode))
}

func TestStringRoundTrip(t *testing.T) {
	codec, alloc := newTestCodec(1024)
	ctx := context.Background()

	for _, s := range []string{"string with symbols (~25)", "string with symbols (~25)✓", "日本語"} {
		flat, err := codec.LowerValue(ctx, String(), s)
		require.NoError(t, err)
		require.Len(t, flat, 2)
		require.Equal(t, uint64(len(s)), flat[1])

		lifted, _, err := codec.liftFlat(String(), flat, nil)
		require.NoError(t, err)
		require.Equal(t, s, lifted)
	}
	require.Equal(t, 3, alloc.calls)
	require.Equal(t, 25, utf8.RuneCountInString("string with symbols (~25)"))
	require.Equal(t, 26, utf8.RuneCountInString("string with symbols (~25)✓"))
}

func TestEmptyValuesSkipAllocator(t *testing.T) {
	codec, alloc := newTestCodec(64)
	ctx := context.Background()

	flat, err := codec.LowerValue(ctx, String(), "")
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 0}, flat)

	flat, err = codec.LowerValue(ctx, List(Primitive(KindU8)), []uint8{})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 0}, flat)
	require.Zero(t, alloc.calls)

	v, _, err := codec.liftFlat(String(), []uint64{0, 0}, nil)
	require.NoError(t, err)
	require.Equal(t, "", v)
}

func TestListRoundTrip(t *testing.T) {
	codec, _ := newTestCodec(1024)
	ctx := context.Background()

	in := []uint8{5, 4, 3, 2, 1, 10}
	require.NoError(t, codec.Store(ctx, List(Primitive(KindU8)), in, 0))
	got, err := codec.Load(List(Primitive(KindU8)), 0)
	require.NoError(t, err)
	require.Equal(t, in, got)

	// JSON-shaped input lowers the same way.
	require.NoError(t, codec.Store(ctx, List(Primitive(KindU8)), []any{5.0, 4.0, 3.0, 2.0, 1.0, 10.0}, 8))
	got, err = codec.Load(List(Primitive(KindU8)), 8)
	require.NoError(t, err)
	require.Equal(t, in, got)

	require.NoError(t, codec.Store(ctx, List(Primitive(KindS32)), []int32{-1, 0, 7}, 0))
	got, err = codec.Load(List(Primitive(KindS32)), 0)
	require.NoError(t, err)
	require.Equal(t, []int32{-1, 0, 7}, got)

	require.NoError(t, codec.Store(ctx, List(Primitive(KindChar)), []rune("añ🦀"), 0))
	got, err = codec.Load(List(Primitive(KindChar)), 0)
	require.NoError(t, err)
	require.Equal(t, []rune("añ🦀"), got)
}

func TestListElementMismatchAllocatesNothing(t *testing.T) {
	codec, alloc := newTestCodec(64)
	_, err := codec.LowerValue(context.Background(), List(Primitive(KindU8)), []any{1, "two"})
	require.True(t, errors.IsKind(err, errors.KindTypeMismatch))
	require.Zero(t, alloc.calls)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, []string{"[1]"}, e.Path)
}

func TestNestedRoundTrip(t *testing.T) {
	codec, _ := newTestCodec(4096)
	ctx := context.Background()

	entry := MustRecord("entry",
		Field{Name: "id", Type: Primitive(KindU16)},
		Field{Name: "tags", Type: List(String())},
		Field{Name: "at", Type: point},
	)
	d := List(entry)
	in := []any{
		map[string]any{"id": 1, "tags": []string{"a", "bc"}, "at": map[string]any{"x": 1, "y": 2}},
		RecordValue{
			{Name: "at", Value: RecordValue{{Name: "y", Value: uint32(4)}, {Name: "x", Value: uint32(3)}}},
			{Name: "tags", Value: []string{}},
			{Name: "id", Value: uint16(2)},
		},
	}
	require.NoError(t, codec.Store(ctx, d, in, 0))

	got, err := codec.Load(d, 0)
	require.NoError(t, err)
	want := []any{
		RecordValue{
			{Name: "id", Value: uint16(1)},
			{Name: "tags", Value: []string{"a", "bc"}},
			{Name: "at", Value: RecordValue{{Name: "x", Value: uint32(1)}, {Name: "y", Value: uint32(2)}}},
		},
		RecordValue{
			{Name: "id", Value: uint16(2)},
			{Name: "tags", Value: []string{}},
			{Name: "at", Value: RecordValue{{Name: "x", Value: uint32(3)}, {Name: "y", Value: uint32(4)}}},
		},
	}
	require.Equal(t, want, got)
}

func TestRecordFromBytes(t *testing.T) {
	buf := memory.NewBuffer(64)
	require.True(t, buf.Write(0, []byte{1, 0, 0, 0, 2, 0, 0, 0}))
	codec := NewCodec(memory.NewAccessor(buf), nil)

	got, err := codec.Load(point, 0)
	require.NoError(t, err)
	require.Equal(t, RecordValue{{Name: "x", Value: uint32(1)}, {Name: "y", Value: uint32(2)}}, got)
}

func TestRecordInputs(t *testing.T) {
	codec, _ := newTestCodec(256)
	ctx := context.Background()

	type Point struct {
		X uint32
		Y uint32 `wit:"y"`
	}
	require.NoError(t, codec.Store(ctx, point, &Point{X: 9, Y: 8}, 0))
	got, err := codec.Load(point, 0)
	require.NoError(t, err)
	require.Equal(t, RecordValue{{Name: "x", Value: uint32(9)}, {Name: "y", Value: uint32(8)}}, got)

	err = codec.Store(ctx, point, map[string]any{"x": 1}, 0)
	require.True(t, errors.IsKind(err, errors.KindTypeMismatch))
	require.ErrorContains(t, err, `missing field "y"`)

	err = codec.Store(ctx, point, map[string]any{"x": 1, "y": 2, "z": 3}, 0)
	require.True(t, errors.IsKind(err, errors.KindTypeMismatch))

	err = codec.Store(ctx, point, "not a record", 0)
	require.True(t, errors.IsKind(err, errors.KindTypeMismatch))
}

func TestKebabStructFields(t *testing.T) {
	codec, _ := newTestCodec(256)
	ctx := context.Background()

	d := MustRecord("result",
		Field{Name: "machine-id", Type: Primitive(KindU64)},
		Field{Name: "message", Type: String()},
	)
	type Result struct {
		MachineID uint64 `wit:"machine-id"`
		Message   string
	}
	require.NoError(t, codec.Store(ctx, d, Result{MachineID: 7, Message: "ok"}, 0))
	got, err := codec.Load(d, 0)
	require.NoError(t, err)
	require.Equal(t, RecordValue{{Name: "machine-id", Value: uint64(7)}, {Name: "message", Value: "ok"}}, got)
}

func TestLiftInvalidUTF8(t *testing.T) {
	buf := memory.NewBuffer(64)
	acc := memory.NewAccessor(buf)
	require.NoError(t, acc.Write(32, []byte{0xff, 0xfe}))
	require.NoError(t, acc.WritePair(0, 32, 2))

	_, err := NewCodec(acc, nil).Load(String(), 0)
	require.True(t, errors.IsKind(err, errors.KindDecode))
}

func TestLiftOutOfBounds(t *testing.T) {
	acc := memory.NewAccessor(memory.NewBuffer(64))
	codec := NewCodec(acc, nil)

	require.NoError(t, acc.WritePair(0, 60, 8))
	_, err := codec.Load(String(), 0)
	require.True(t, errors.IsKind(err, errors.KindOutOfBounds))

	require.NoError(t, acc.WritePair(0, 0, MaxListLength+1))
	_, err = codec.Load(List(Primitive(KindU8)), 0)
	require.True(t, errors.IsKind(err, errors.KindDecode))

	require.NoError(t, acc.WritePair(0, 0, 1<<25))
	_, err = codec.Load(List(Primitive(KindU64)), 0)
	require.True(t, errors.IsKind(err, errors.KindOutOfBounds))

	_, err = codec.Load(point, 60)
	require.True(t, errors.IsKind(err, errors.KindOutOfBounds))
}

func TestLowerWithoutAllocator(t *testing.T) {
	codec := NewCodec(memory.NewAccessor(memory.NewBuffer(64)), nil)
	_, err := codec.LowerValue(context.Background(), String(), "x")
	require.True(t, errors.IsKind(err, errors.KindAllocation))
}

func TestLowerParamsConventions(t *testing.T) {
	ctx := context.Background()
	params := []Field{
		{Name: "machine", Type: Primitive(KindU64)},
		{Name: "start", Type: point},
		{Name: "destination", Type: point},
	}
	args := []any{uint64(7), map[string]any{"x": 0, "y": 0}, map[string]any{"x": 10, "y": 10}}

	codec, alloc := newTestCodec(256)
	raw, err := codec.LowerParams(ctx, params, args, RecordsByPointer)
	require.NoError(t, err)
	require.Len(t, raw, 3)
	require.Equal(t, uint64(7), raw[0])
	require.Equal(t, 2, alloc.calls)

	dest, err := codec.Load(point, uint32(raw[2]))
	require.NoError(t, err)
	require.Equal(t, RecordValue{{Name: "x", Value: uint32(10)}, {Name: "y", Value: uint32(10)}}, dest)

	codec, alloc = newTestCodec(256)
	raw, err = codec.LowerParams(ctx, params, args, RecordsFlattened)
	require.NoError(t, err)
	require.Equal(t, []uint64{7, 0, 0, 10, 10}, raw)
	require.Zero(t, alloc.calls)

	_, err = codec.LowerParams(ctx, params, args[:2], RecordsByPointer)
	require.True(t, errors.IsKind(err, errors.KindTypeMismatch))
}

func TestLowerParamsMismatchLeavesMemoryUntouched(t *testing.T) {
	params := []Field{
		{Name: "machine", Type: Primitive(KindU64)},
		{Name: "start", Type: point},
		{Name: "destination", Type: point},
	}
	tests := map[string]struct {
		args []any
		path []string
	}{
		"record is not a record": {
			args: []any{uint64(7), "not a record", map[string]any{"x": 1, "y": 1}},
			path: []string{"start"},
		},
		"last argument wrong": {
			args: []any{uint64(7), map[string]any{"x": 0, "y": 0}, 42},
			path: []string{"destination"},
		},
		"field out of range": {
			args: []any{uint64(7), map[string]any{"x": 0, "y": 0}, map[string]any{"x": -1, "y": 0}},
			path: []string{"destination", "x"},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for _, conv := range []Convention{RecordsByPointer, RecordsFlattened} {
				codec, alloc := newTestCodec(256)
				_, err := codec.LowerParams(context.Background(), params, tt.args, conv)
				require.True(t, errors.IsKind(err, errors.KindTypeMismatch), "%s: %v", conv, err)
				require.Zero(t, alloc.calls, conv.String())

				var e *errors.Error
				require.ErrorAs(t, err, &e)
				require.Equal(t, tt.path, e.Path)

				mem, err := codec.Memory().Read(0, codec.Memory().Size())
				require.NoError(t, err)
				require.Equal(t, make([]byte, 256), mem)
			}
		})
	}
}

func TestLowerParamsBadStringAfterHeapArgument(t *testing.T) {
	codec, alloc := newTestCodec(256)
	params := []Field{
		{Name: "data", Type: List(Primitive(KindU8))},
		{Name: "text", Type: String()},
	}
	_, err := codec.LowerParams(context.Background(), params, []any{[]byte{1, 2, 3}, string([]byte{0xff})}, RecordsByPointer)
	require.True(t, errors.IsKind(err, errors.KindDecode))
	require.Zero(t, alloc.calls)
}

func TestLowerParamsSpill(t *testing.T) {
	codec, alloc := newTestCodec(1024)
	params := make([]Field, 17)
	args := make([]any, 17)
	for i := range params {
		params[i] = Field{Name: string(rune('a' + i)), Type: Primitive(KindU32)}
		args[i] = uint32(i * 3)
	}

	raw, err := codec.LowerParams(context.Background(), params, args, RecordsFlattened)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	require.Equal(t, 1, alloc.calls)

	v, err := codec.Memory().ReadU32(uint32(raw[0]) + 16*4)
	require.NoError(t, err)
	require.Equal(t, uint32(48), v)
}

func TestLiftResult(t *testing.T) {
	codec, _ := newTestCodec(256)
	ctx := context.Background()

	v, err := codec.LiftResult(Primitive(KindS32), []uint64{0xFFFFFFFF})
	require.NoError(t, err)
	require.Equal(t, int32(-1), v)

	v, err = codec.LiftResult(nil, nil)
	require.NoError(t, err)
	require.Nil(t, v)

	single := MustRecord("single", Field{Name: "v", Type: Primitive(KindU8)})
	v, err = codec.LiftResult(single, []uint64{3})
	require.NoError(t, err)
	require.Equal(t, RecordValue{{Name: "v", Value: uint8(3)}}, v)

	require.NoError(t, codec.Store(ctx, point, RecordValue{{Name: "x", Value: uint32(1)}, {Name: "y", Value: uint32(2)}}, 128))
	v, err = codec.LiftResult(point, []uint64{128})
	require.NoError(t, err)
	require.Equal(t, RecordValue{{Name: "x", Value: uint32(1)}, {Name: "y", Value: uint32(2)}}, v)

	_, err = codec.LiftResult(point, nil)
	require.True(t, errors.IsKind(err, errors.KindDecode))
}

func TestRecordValueJSON(t *testing.T) {
	r := RecordValue{{Name: "b", Value: 1}, {Name: "a", Value: "x"}}
	out, err := r.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `{"b":1,"a":"x"}`, string(out))
	require.Equal(t, map[string]any{"b": 1, "a": "x"}, r.Map())
}
