package vm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/internal/wasmtest"
)

// fixedMeter pays for a fixed number of instructions.
type fixedMeter struct {
	limit uint64
	used  uint64
}

func (m *fixedMeter) Fuel() uint64 {
	if m.used >= m.limit {
		return 0
	}
	return m.limit - m.used
}

func (m *fixedMeter) Consume(n uint64) error {
	m.used += n
	if m.used > m.limit {
		return errors.New(errors.TypeBudget, errors.CodeExceededLimit).
			Detail("used %d of %d", m.used, m.limit).
			Build()
	}
	return nil
}

func spinModule() []byte {
	m := wasmtest.New()
	newObj := m.Import("obj_new", 0)
	m.Func("echo", 1, wasmtest.LocalGet(0))
	m.Func("spin", 0, wasmtest.Loop(wasmtest.Br(0)), wasmtest.I64Const(0))
	m.Func("spin_host", 0,
		wasmtest.Loop(wasmtest.Call(newObj), wasmtest.Drop(), wasmtest.Br(0)),
		wasmtest.I64Const(0))
	return m.Bytes()
}

func newMeteredInstance(t *testing.T, meter Meter) *Instance {
	t.Helper()
	ctx := context.Background()
	eng, err := NewEngine(ctx, &Config{Meter: meter}, testHostFuncs(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })

	inst, err := eng.Instantiate(ctx, [32]byte{9}, spinModule())
	require.NoError(t, err)
	return inst
}

func TestMeteredInvoke(t *testing.T) {
	meter := &fixedMeter{limit: 1000}
	inst := newMeteredInstance(t, meter)

	got, err := inst.Invoke(context.Background(), "echo", []uint64{3})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got)
	assert.Positive(t, meter.used, "straight-line code is charged")
	assert.LessOrEqual(t, meter.used, uint64(10))
}

func TestMeteredLoopRunsOutOfFuel(t *testing.T) {
	tests := []struct {
		name string
		fn   string
	}{
		{"pure guest loop", "spin"},
		{"loop through host calls", "spin_host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meter := &fixedMeter{limit: 10_000}
			inst := newMeteredInstance(t, meter)

			_, err := inst.Invoke(context.Background(), tt.fn, nil)
			require.Error(t, err)
			typ, code := errors.Status(err)
			assert.Equal(t, errors.TypeBudget, typ, "got %v", err)
			assert.Equal(t, errors.CodeExceededLimit, code, "got %v", err)
			assert.Greater(t, meter.used, meter.limit)
		})
	}
}

func TestUnmeteredLoopStopsOnCancel(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, nil, testHostFuncs(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })
	inst, err := eng.Instantiate(ctx, [32]byte{9}, spinModule())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = inst.Invoke(ctx, "spin", nil)
	require.Error(t, err)
	typ, code := errors.Status(err)
	assert.Equal(t, errors.TypeContext, typ, "got %v", err)
	assert.Equal(t, errors.CodeExceededLimit, code, "got %v", err)
}

func TestInstrumentRejects(t *testing.T) {
	withFunc := func(name string, code ...[]byte) []byte {
		m := wasmtest.New()
		m.Func(name, 0, code...)
		return m.Bytes()
	}
	valid := withFunc("f", wasmtest.I64Const(1))

	tests := []struct {
		name string
		code []byte
		want string
	}{
		{"not wasm", []byte("not wasm"), "header"},
		{"truncated", valid[:len(valid)-3], "unexpected end"},
		{"fuel export taken", withFunc(FuelExport, wasmtest.I64Const(1)), "already exports"},
		{"simd", withFunc("f", []byte{0xfd, 0x0c}), "unsupported instruction 0xfd"},
		{"exceptions", withFunc("f", []byte{0x08, 0x00}), "unsupported instruction 0x08"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Instrument(tt.code)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInstrumentKeepsModuleValid(t *testing.T) {
	out, err := Instrument(testModule())
	require.NoError(t, err)
	assert.Contains(t, string(out), FuelExport)

	// instrumenting twice is refused rather than double-charging
	_, err = Instrument(out)
	require.Error(t, err)
}
