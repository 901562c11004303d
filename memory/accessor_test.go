package memory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/errors"
)

func TestAccessor_ReadWrite(t *testing.T) {
	acc := NewAccessor(NewBuffer(64))

	require.NoError(t, acc.Write(8, []byte{1, 2, 3, 4}))
	data, err := acc.Read(8, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, data)

	// Read returns a copy.
	data[0] = 99
	again, err := acc.Read(8, 1)
	require.NoError(t, err)
	require.Equal(t, byte(1), again[0])
}

func TestAccessor_Scalars(t *testing.T) {
	acc := NewAccessor(NewBuffer(64))

	require.NoError(t, acc.WriteU8(0, 0xAB))
	require.NoError(t, acc.WriteU16(2, 0xBEEF))
	require.NoError(t, acc.WriteU32(4, 0xDEADBEEF))
	require.NoError(t, acc.WriteU64(8, 0x0102030405060708))

	u8, err := acc.ReadU8(0)
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), u8)

	u16, err := acc.ReadU16(2)
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), u16)

	u32, err := acc.ReadU32(4)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := acc.ReadU64(8)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	raw, err := acc.Read(4, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, raw, "little-endian layout")
}

func TestAccessor_Pair(t *testing.T) {
	acc := NewAccessor(NewBuffer(32))

	require.NoError(t, acc.WritePair(16, 1024, 26))
	ptr, length, err := acc.ReadPair(16)
	require.NoError(t, err)
	require.Equal(t, uint32(1024), ptr)
	require.Equal(t, uint32(26), length)

	raw, err := acc.Read(16, 8)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x04, 0, 0, 26, 0, 0, 0}, raw)
}

func TestAccessor_OutOfBounds(t *testing.T) {
	buf := NewBuffer(16)
	acc := NewAccessor(buf)
	require.NoError(t, acc.Write(0, []byte{7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7}))

	tests := []struct {
		name string
		op   func() error
	}{
		{"read past end", func() error { _, err := acc.Read(12, 5); return err }},
		{"read at end", func() error { _, err := acc.Read(16, 1); return err }},
		{"write past end", func() error { return acc.Write(15, []byte{0, 0}) }},
		{"u32 straddles end", func() error { _, err := acc.ReadU32(14); return err }},
		{"u64 write straddles end", func() error { return acc.WriteU64(12, 0) }},
		{"offset wraps", func() error { _, err := acc.Read(math.MaxUint32, 2); return err }},
		{"pair past end", func() error { _, _, err := acc.ReadPair(10); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			require.Error(t, err)
			require.True(t, errors.IsKind(err, errors.KindOutOfBounds), "got %v", err)
		})
	}

	// Failed writes leave memory untouched.
	data, err := acc.Read(0, 16)
	require.NoError(t, err)
	for _, b := range data {
		require.Equal(t, byte(7), b)
	}
}

func TestAccessor_ZeroLength(t *testing.T) {
	acc := NewAccessor(NewBuffer(16))

	data, err := acc.Read(16, 0)
	require.NoError(t, err)
	require.Empty(t, data)
	require.NoError(t, acc.Write(16, nil))

	_, err = acc.Read(17, 0)
	require.True(t, errors.IsKind(err, errors.KindOutOfBounds))
}

func TestAccessor_ObservesGrowth(t *testing.T) {
	buf := NewBuffer(PageSize)
	acc := NewAccessor(buf)

	_, err := acc.ReadU32(PageSize)
	require.True(t, errors.IsKind(err, errors.KindOutOfBounds))

	require.Equal(t, uint32(1), buf.Grow(1))
	require.Equal(t, uint32(2*PageSize), acc.Size())

	require.NoError(t, acc.WriteU32(PageSize, 5))
	v, err := acc.ReadU32(PageSize)
	require.NoError(t, err)
	require.Equal(t, uint32(5), v)
}

func TestAccessor_NilRegion(t *testing.T) {
	acc := NewAccessor(nil)

	require.Equal(t, uint32(0), acc.Size())
	_, err := acc.ReadU8(0)
	require.True(t, errors.IsKind(err, errors.KindOutOfBounds))
}

func TestOffset(t *testing.T) {
	off, err := Offset(100, 28)
	require.NoError(t, err)
	require.Equal(t, uint32(128), off)

	_, err = Offset(math.MaxUint32, 1)
	require.True(t, errors.IsKind(err, errors.KindOutOfBounds))

	_, err = Offset(0, math.MaxUint32+1)
	require.True(t, errors.IsKind(err, errors.KindOutOfBounds))
}
