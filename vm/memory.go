package vm

import (
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/contract-host/errors"
)

// Memory is a guest's linear memory. Reads return copies, never views.
type Memory interface {
	// Size returns the current size in bytes.
	Size() uint32
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU64(offset uint32) (uint64, error)
	WriteU64(offset uint32, value uint64) error
}

func outOfBounds(offset, length uint64, size uint32) error {
	return errors.IndexBounds(errors.TypeWasmVm, offset, length, uint64(size))
}

// WrapMemory adapts a wazero memory. It returns nil for a nil memory.
func WrapMemory(mem api.Memory) Memory {
	if mem == nil {
		return nil
	}
	return &wazeroMemory{mem: mem}
}

type wazeroMemory struct {
	mem api.Memory
}

func (m *wazeroMemory) Size() uint32 {
	return m.mem.Size()
}

func (m *wazeroMemory) Read(offset, length uint32) ([]byte, error) {
	view, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds(uint64(offset), uint64(length), m.mem.Size())
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

func (m *wazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return outOfBounds(uint64(offset), uint64(len(data)), m.mem.Size())
	}
	return nil
}

func (m *wazeroMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, outOfBounds(uint64(offset), 8, m.mem.Size())
	}
	return v, nil
}

func (m *wazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return outOfBounds(uint64(offset), 8, m.mem.Size())
	}
	return nil
}

// SliceMemory is a fixed-size Memory backed by a byte slice.
type SliceMemory struct {
	buf []byte
}

// NewSliceMemory allocates size zeroed bytes.
func NewSliceMemory(size uint32) *SliceMemory {
	return &SliceMemory{buf: make([]byte, size)}
}

// Bytes exposes the backing slice.
func (m *SliceMemory) Bytes() []byte {
	return m.buf
}

func (m *SliceMemory) Size() uint32 {
	return uint32(len(m.buf))
}

func (m *SliceMemory) check(offset, length uint64) error {
	if offset+length > uint64(len(m.buf)) {
		return outOfBounds(offset, length, m.Size())
	}
	return nil
}

func (m *SliceMemory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(uint64(offset), uint64(length)); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.buf[offset:])
	return out, nil
}

func (m *SliceMemory) Write(offset uint32, data []byte) error {
	if err := m.check(uint64(offset), uint64(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *SliceMemory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(uint64(offset), 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), nil
}

func (m *SliceMemory) WriteU64(offset uint32, value uint64) error {
	if err := m.check(uint64(offset), 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[offset:], value)
	return nil
}
