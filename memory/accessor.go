package memory

import (
	"encoding/binary"
	"math"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// Accessor wraps a wasmbridge.Region with bounds checks and little-endian
// scalar helpers.
type Accessor struct {
	region wasmbridge.Region
}

// NewAccessor returns an accessor over region. A nil region behaves as an
// empty memory.
func NewAccessor(region wasmbridge.Region) *Accessor {
	return &Accessor{region: region}
}

// Size returns the current memory length in bytes.
func (a *Accessor) Size() uint32 {
	if a.region == nil {
		return 0
	}
	return a.region.Size()
}

func (a *Accessor) check(offset uint32, length uint64) error {
	size := a.Size()
	if uint64(offset)+length > uint64(size) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, length, size)
	}
	return nil
}

// Read copies length bytes starting at offset.
func (a *Accessor) Read(offset, length uint32) ([]byte, error) {
	if err := a.check(offset, uint64(length)); err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	view, ok := a.region.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, offset, uint64(length), a.Size())
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

// Write stores data at offset.
func (a *Accessor) Write(offset uint32, data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return errors.OutOfBounds(errors.PhaseMemory, offset, uint64(len(data)), a.Size())
	}
	if err := a.check(offset, uint64(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if !a.region.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, uint64(len(data)), a.Size())
	}
	return nil
}

func (a *Accessor) view(offset, length uint32) ([]byte, error) {
	if err := a.check(offset, uint64(length)); err != nil {
		return nil, err
	}
	view, ok := a.region.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, offset, uint64(length), a.Size())
	}
	return view, nil
}

// ReadU8 reads an unsigned 8-bit value.
func (a *Accessor) ReadU8(offset uint32) (uint8, error) {
	b, err := a.view(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (a *Accessor) ReadU16(offset uint32) (uint16, error) {
	b, err := a.view(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (a *Accessor) ReadU32(offset uint32) (uint32, error) {
	b, err := a.view(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (a *Accessor) ReadU64(offset uint32) (uint64, error) {
	b, err := a.view(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (a *Accessor) WriteU8(offset uint32, v uint8) error {
	return a.Write(offset, []byte{v})
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (a *Accessor) WriteU16(offset uint32, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return a.Write(offset, b[:])
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (a *Accessor) WriteU32(offset uint32, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return a.Write(offset, b[:])
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (a *Accessor) WriteU64(offset uint32, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return a.Write(offset, b[:])
}

// ReadPair reads a canonical (offset, length) pair stored at offset.
func (a *Accessor) ReadPair(offset uint32) (ptr, length uint32, err error) {
	b, err := a.view(offset, 8)
	if err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint32(b[0:4]), binary.LittleEndian.Uint32(b[4:8]), nil
}

// WritePair writes a canonical (offset, length) pair at offset.
func (a *Accessor) WritePair(offset, ptr, length uint32) error {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], ptr)
	binary.LittleEndian.PutUint32(b[4:8], length)
	return a.Write(offset, b[:])
}

// Offset computes base+delta, failing when the result does not fit in the
// 32-bit address space.
func Offset(base uint32, delta uint64) (uint32, error) {
	end := uint64(base) + delta
	if delta > math.MaxUint32 || end > math.MaxUint32 {
		return 0, errors.New(errors.PhaseMemory, errors.KindOutOfBounds).
			Detail("offset %d + %d overflows 32-bit address space", base, delta).
			Value(base).
			Build()
	}
	return uint32(end), nil
}
