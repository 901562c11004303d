package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseLower,
				Kind:    KindTypeMismatch,
				Path:    []string{"start", "x"},
				GoType:  "string",
				WitType: "u32",
				Detail:  "cannot convert",
			},
			contains: []string{"[lower]", "type_mismatch", "start.x", "string", "u32", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMemory,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[memory]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAlloc,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[alloc]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				require.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Trap(PhaseCall, "run", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, cause, err.Unwrap())
}

func TestError_Is(t *testing.T) {
	err := OutOfBounds(PhaseMemory, 10, 8, 12)

	require.ErrorIs(t, err, &Error{Phase: PhaseMemory, Kind: KindOutOfBounds})
	require.NotErrorIs(t, err, &Error{Phase: PhaseLift, Kind: KindOutOfBounds})
	require.NotErrorIs(t, err, &Error{Phase: PhaseMemory, Kind: KindDecode})
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("call failed: %w", ExportNotFound("missing"))

	require.Equal(t, KindNotFound, KindOf(wrapped))
	require.True(t, IsKind(wrapped, KindNotFound))
	require.False(t, IsKind(wrapped, KindTrap))
	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
	require.False(t, IsKind(nil, KindTrap))
}

func TestOutOfBounds_ReportsOverflowingEnd(t *testing.T) {
	err := OutOfBounds(PhaseMemory, 0xFFFFFFFF, 2, 65536)

	require.Equal(t, KindOutOfBounds, err.Kind)
	require.Contains(t, err.Detail, "4294967297")
}

func TestInvalidUTF8_TruncatesPreview(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0xFF
	}
	err := InvalidUTF8(PhaseLift, []string{"message"}, data)

	require.Equal(t, KindDecode, err.Kind)
	require.Len(t, err.Detail, len("invalid UTF-8 sequence: ")+64)
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseLift, KindDecode).
		Path("result", "message").
		GoType("string").
		WitType("string").
		Value(42).
		Cause(cause).
		Detail("length %d exceeds %d", 10, 5).
		Build()

	require.Equal(t, []string{"result", "message"}, err.Path)
	require.Equal(t, 42, err.Value)
	require.Equal(t, "length 10 exceeds 5", err.Detail)
	require.ErrorIs(t, err, cause)
}

func TestSchemaValidation(t *testing.T) {
	err := SchemaValidation("greet", "missing cleanup export %q", "cabi_post_greet")

	require.Equal(t, PhaseValidate, err.Phase)
	require.Equal(t, KindSchemaValidation, err.Kind)
	require.Equal(t, []string{"greet"}, err.Path)
	require.Contains(t, err.Error(), `"cabi_post_greet"`)
}

func TestWithPath(t *testing.T) {
	inner := Decode(nil, "bad length")
	err := WithPath(inner, PhaseLift, KindDecode, "result", "items")
	require.Equal(t, []string{"result", "items"}, errPath(err))

	plain := WithPath(errors.New("raw"), PhaseMemory, KindOutOfBounds, "field")
	require.Equal(t, KindOutOfBounds, KindOf(plain))
}

func errPath(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Path
	}
	return nil
}
