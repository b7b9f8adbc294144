package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/contract-host/errors"
)

func TestSliceMemory(t *testing.T) {
	m := NewSliceMemory(16)
	assert.Equal(t, uint32(16), m.Size())

	require.NoError(t, m.Write(4, []byte{1, 2, 3}))
	got, err := m.Read(4, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	// reads are copies
	got[0] = 9
	assert.Equal(t, byte(1), m.Bytes()[4])

	require.NoError(t, m.WriteU64(8, 0x0102030405060708))
	w, err := m.ReadU64(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), w)
	assert.Equal(t, byte(0x08), m.Bytes()[8])
}

func TestSliceMemoryBounds(t *testing.T) {
	m := NewSliceMemory(16)

	tests := []struct {
		name string
		op   func() error
	}{
		{"read past end", func() error { _, err := m.Read(10, 7); return err }},
		{"read offset overflow", func() error { _, err := m.Read(^uint32(0), 2); return err }},
		{"write past end", func() error { return m.Write(15, []byte{1, 2}) }},
		{"word past end", func() error { _, err := m.ReadU64(9); return err }},
		{"word write past end", func() error { return m.WriteU64(16, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.TypeWasmVm))
			assert.True(t, errors.IsCode(err, errors.CodeIndexBounds))
		})
	}

	// edge of memory is fine
	_, err := m.Read(16, 0)
	assert.NoError(t, err)
	assert.NoError(t, m.WriteU64(8, 1))
}

func TestWrapMemoryNil(t *testing.T) {
	assert.Nil(t, WrapMemory(nil))
}
