package alloc

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/guesttest"
)

func TestManager_PassesArgumentsThrough(t *testing.T) {
	inst := guesttest.New(1)
	fn := inst.Export("cabi_realloc", &guesttest.Func{
		Fn: func(_ context.Context, p []uint64) ([]uint64, error) {
			return []uint64{4096}, nil
		},
	})

	m := New(inst, "")
	require.True(t, m.Available())
	require.Equal(t, DefaultExport, m.Export())

	ptr, err := m.Allocate(context.Background(), 8, 16, 4, 32)
	require.NoError(t, err)
	require.Equal(t, uint32(4096), ptr)
	require.Equal(t, [][]uint64{{8, 16, 4, 32}}, fn.Calls())

	ptr, err = m.Alloc(context.Background(), 10, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(4096), ptr)
	require.Equal(t, []uint64{0, 0, 1, 10}, fn.Calls()[1])
}

func TestManager_MissingExport(t *testing.T) {
	m := New(guesttest.New(1), "my_realloc")
	require.False(t, m.Available())

	_, err := m.Alloc(context.Background(), 4, 4)
	require.True(t, errors.IsKind(err, errors.KindAllocation))
	require.ErrorContains(t, err, "my_realloc")
}

func TestManager_Trap(t *testing.T) {
	inst := guesttest.New(1)
	boom := stderrors.New("unreachable")
	inst.Export("cabi_realloc", &guesttest.Func{
		Fn: func(context.Context, []uint64) ([]uint64, error) { return nil, boom },
	})

	_, err := New(inst, "").Alloc(context.Background(), 4, 4)
	require.True(t, errors.IsKind(err, errors.KindAllocation))
	require.ErrorIs(t, err, boom)
}

func TestManager_Misaligned(t *testing.T) {
	inst := guesttest.New(1)
	inst.Export("cabi_realloc", &guesttest.Func{
		Fn: func(context.Context, []uint64) ([]uint64, error) { return []uint64{6}, nil },
	})

	_, err := New(inst, "").Alloc(context.Background(), 8, 4)
	require.True(t, errors.IsKind(err, errors.KindAllocation))

	ptr, err := New(inst, "").Alloc(context.Background(), 8, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(6), ptr)
}

func TestManager_BumpGuest(t *testing.T) {
	inst := guesttest.New(1)
	inst.ExportRealloc(1024)
	m := New(inst, "")

	a, err := m.Alloc(context.Background(), 3, 1)
	require.NoError(t, err)
	b, err := m.Alloc(context.Background(), 8, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(1024), a)
	require.Equal(t, uint32(1032), b)
}
