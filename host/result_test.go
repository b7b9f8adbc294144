package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/val"
)

func TestResultToVal(t *testing.T) {
	h := newTestHost(t)

	v, err := ResultToVal(h, U32, Ok[uint32](7))
	require.NoError(t, err)
	assert.Equal(t, val.FromU32(7), v)

	v, err = ResultToVal(h, U32, Fail[uint32](errors.Contract(12)))
	require.NoError(t, err)
	ty, code, ok := v.Status()
	require.True(t, ok)
	assert.Equal(t, errors.TypeContract, ty)
	assert.Equal(t, errors.Code(12), code)

	bad := &errors.Error{Type: errors.TypeStorage, Code: 99}
	_, err = ResultToVal(h, U32, Fail[uint32](bad))
	requireStatus(t, err, errors.TypeValue, errors.CodeInvalidInput)
}

func TestResultFromVal(t *testing.T) {
	h := newTestHost(t)

	r, err := ResultFromVal(h, U32, val.FromU32(3))
	require.NoError(t, err)
	require.True(t, r.IsOk())
	assert.Equal(t, uint32(3), r.Value)

	r, err = ResultFromVal(h, U32, val.FromStatus(errors.TypeAuth, errors.CodeInvalidAction))
	require.NoError(t, err)
	require.False(t, r.IsOk())
	assert.True(t, r.Err.IsCode(errors.CodeInvalidAction))
	assert.Equal(t, errors.TypeAuth, r.Err.Type)
}

// A payload the converter rejects must fail the conversion, not turn into
// the error variant.
func TestResultFromValDoesNotCollapse(t *testing.T) {
	h := newTestHost(t)

	tests := []struct {
		name string
		v    val.Val
	}{
		{"wrong scalar", val.True},
		{"wrong object", val.FromHandle(val.TagVecObject, 0, 1)},
		{"malformed", val.Val(0x7e)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ResultFromVal(h, U32, tt.v)
			require.Error(t, err)
			assert.Nil(t, r.Err)
		})
	}

	b, err := h.BytesFromSlice([]byte("x"))
	require.NoError(t, err)
	r, err := ResultFromVal(h, Bytes, b)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), r.Value)

	_, err = ResultFromVal(h, Bytes, val.FromU32(1))
	require.Error(t, err)
}

func TestResultRoundTripIdentity(t *testing.T) {
	h := newTestHost(t)
	v, err := h.VecFromSlice(u32s(1))
	require.NoError(t, err)

	out, err := ResultToVal(h, Identity, Ok(v))
	require.NoError(t, err)
	r, err := ResultFromVal(h, Identity, out)
	require.NoError(t, err)
	assert.True(t, r.IsOk())
	assert.Equal(t, v, r.Value)
}
