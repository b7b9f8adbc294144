package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/val"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	h := New()
	h.Budget().ResetUnlimited()
	t.Cleanup(func() { _ = h.Close(t.Context()) })
	return h
}

func requireStatus(t *testing.T, err error, ty errors.Type, code errors.Code) {
	t.Helper()
	require.Error(t, err)
	gotType, gotCode := errors.Status(err)
	assert.Equal(t, ty, gotType, "error: %v", err)
	assert.Equal(t, code, gotCode, "error: %v", err)
}

func TestMinimalBudgetThenUnlimited(t *testing.T) {
	h := New()
	h.Budget().ResetLimits(1, 1)

	_, err := h.VecNew()
	requireStatus(t, err, errors.TypeBudget, errors.CodeExceededLimit)

	h.Budget().ResetUnlimited()
	v, err := h.VecNew()
	require.NoError(t, err)
	n, err := h.VecLen(v)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBudgetConsumptionMonotonic(t *testing.T) {
	h := newTestHost(t)

	prevCPU, prevMem := h.Budget().CPUConsumed(), h.Budget().MemConsumed()
	v, err := h.VecNew()
	require.NoError(t, err)
	for i := range 20 {
		v, err = h.VecPushBack(v, val.FromU32(uint32(i)))
		require.NoError(t, err)
		cpu, mem := h.Budget().CPUConsumed(), h.Budget().MemConsumed()
		assert.GreaterOrEqual(t, cpu, prevCPU)
		assert.GreaterOrEqual(t, mem, prevMem)
		prevCPU, prevMem = cpu, mem
	}
	assert.Positive(t, prevCPU)
}

func TestWithFrameAtomicity(t *testing.T) {
	h := newTestHost(t)

	kept, err := h.WithFrame(&Frame{Kind: FrameHost, FnName: "ok"}, func() (val.Val, error) {
		return h.BytesFromSlice([]byte("kept"))
	})
	require.NoError(t, err)
	before := h.Store().Len()

	var inner val.Val
	f := &Frame{Kind: FrameHost, FnName: "fails"}
	_, err = h.WithFrame(f, func() (val.Val, error) {
		inner, err = h.BytesFromSlice([]byte("dropped"))
		require.NoError(t, err)
		_, err = h.VecFromSlice([]val.Val{inner, kept})
		require.NoError(t, err)
		return 0, errors.Contract(1)
	})
	requireStatus(t, err, errors.TypeContract, 1)
	assert.Equal(t, FrameRolledBack, f.State)
	assert.Equal(t, before, h.Store().Len())
	assert.Zero(t, h.Depth())

	_, err = h.BytesLen(inner)
	requireStatus(t, err, errors.TypeObject, errors.CodeInvalidInput)

	n, err := h.BytesLen(kept)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), n)
}

func TestWithFrameNestedCommit(t *testing.T) {
	h := newTestHost(t)

	outer := &Frame{Kind: FrameHost, FnName: "outer"}
	inner := &Frame{Kind: FrameHost, FnName: "inner"}
	res, err := h.WithFrame(outer, func() (val.Val, error) {
		assert.Same(t, outer, h.CurrentFrame())
		return h.WithFrame(inner, func() (val.Val, error) {
			assert.Equal(t, 2, h.Depth())
			return h.StringFromSlice([]byte("hi"))
		})
	})
	require.NoError(t, err)
	assert.Equal(t, FrameCommitted, outer.State)
	assert.Equal(t, FrameCommitted, inner.State)
	assert.Nil(t, h.CurrentFrame())

	n, err := h.StringLen(res)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)
}

func TestWithFrameDepthLimit(t *testing.T) {
	limits := DefaultLimits
	limits.MaxFrameDepth = 3
	h := New(WithLimits(limits))

	var recurse func(n int) (val.Val, error)
	recurse = func(n int) (val.Val, error) {
		return h.WithFrame(&Frame{Kind: FrameHost}, func() (val.Val, error) {
			return recurse(n + 1)
		})
	}
	_, err := recurse(0)
	requireStatus(t, err, errors.TypeContext, errors.CodeExceededLimit)
	assert.Zero(t, h.Depth())
}

func TestWithFramePanic(t *testing.T) {
	h := newTestHost(t)

	_, err := h.WithFrame(&Frame{Kind: FrameHost, FnName: "bad"}, func() (val.Val, error) {
		panic("boom")
	})
	requireStatus(t, err, errors.TypeContext, errors.CodeInternalError)
	assert.Zero(t, h.Depth())
}

func TestFrameStrings(t *testing.T) {
	assert.Equal(t, "host", FrameHost.String())
	assert.Equal(t, "guest", FrameGuest.String())
	assert.Equal(t, "rolled_back", FrameRolledBack.String())
}

func TestGuestHandleTranslation(t *testing.T) {
	h := newTestHost(t)
	abs, err := h.BytesFromSlice([]byte{1, 2, 3})
	require.NoError(t, err)
	other, err := h.VecNew()
	require.NoError(t, err)

	_, err = h.WithFrame(&Frame{Kind: FrameGuest}, func() (val.Val, error) {
		rel, err := h.relativize(abs)
		require.NoError(t, err)
		idx, gen, ok := rel.Handle()
		require.True(t, ok)
		assert.Zero(t, idx)
		assert.Zero(t, gen)

		back, err := h.absolutize(rel)
		require.NoError(t, err)
		assert.Equal(t, abs, back)

		tests := []struct {
			name string
			v    val.Val
			ty   errors.Type
			code errors.Code
		}{
			{"absolute handle", abs, errors.TypeObject, errors.CodeInvalidInput},
			{"absolute handle of other object", other, errors.TypeObject, errors.CodeInvalidInput},
			{"unknown index", val.FromHandle(val.TagBytesObject, 7, 0), errors.TypeObject, errors.CodeInvalidInput},
			{"wrong tag", val.FromHandle(val.TagVecObject, 0, 0), errors.TypeObject, errors.CodeUnexpectedType},
			{"bad tag", val.Val(0x7e), errors.TypeValue, errors.CodeInvalidInput},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := h.absolutize(tt.v)
				requireStatus(t, err, tt.ty, tt.code)
			})
		}
		return val.Void, nil
	})
	require.NoError(t, err)
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"contract", errors.Contract(3), true},
		{"index bounds", errors.IndexBounds(errors.TypeObject, 1, 1, 0), true},
		{"budget", errors.ExceededLimit(errors.TypeBudget, "cpu"), false},
		{"frame depth", errors.ExceededLimit(errors.TypeContext, "depth"), true},
		{"internal", errors.Internal(errors.TypeObject, "bug"), false},
		{"contract internal code", errors.Contract(uint32(errors.CodeInternalError)), true},
		{"plain error", assert.AnError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recoverable(tt.err))
		})
	}
}

func TestRelativeHandlesReused(t *testing.T) {
	h := newTestHost(t)
	abs, err := h.VecNew()
	require.NoError(t, err)
	other, err := h.BytesNew()
	require.NoError(t, err)

	frame := &Frame{Kind: FrameGuest}
	_, err = h.WithFrame(frame, func() (val.Val, error) {
		allocs := h.Budget().Counter(budget.MemAlloc).Iterations
		first, err := h.relativize(abs)
		require.NoError(t, err)
		for range 100 {
			again, err := h.relativize(abs)
			require.NoError(t, err)
			require.Equal(t, first, again)
		}
		second, err := h.relativize(other)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		assert.Len(t, frame.RelativeObjects, 2)
		assert.Equal(t, allocs+2, h.Budget().Counter(budget.MemAlloc).Iterations,
			"each new slot is charged once")
		return val.Void, nil
	})
	require.NoError(t, err)
}

func TestRelativeTableBudget(t *testing.T) {
	h := newTestHost(t)
	vals := make([]val.Val, 8)
	for i := range vals {
		v, err := h.VecNew()
		require.NoError(t, err)
		vals[i] = v
	}

	_, err := h.WithFrame(&Frame{Kind: FrameGuest}, func() (val.Val, error) {
		h.Budget().ResetLimits(100_000, 40)
		for _, v := range vals {
			if _, err := h.relativize(v); err != nil {
				return 0, err
			}
		}
		return val.Void, nil
	})
	requireStatus(t, err, errors.TypeBudget, errors.CodeExceededLimit)
}
