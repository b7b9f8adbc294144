package budget

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/contract-host/errors"
)

func TestModelEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		input uint64
		want  uint64
	}{
		{"const only", Model{10, 0}, 1000, 10},
		{"one per unit", Model{0, 128}, 1000, 1000},
		{"fractional", Model{5, 16}, 64, 13},
		{"saturates linear", Model{0, math.MaxUint64}, math.MaxUint64, math.MaxUint64},
		{"saturates sum", Model{math.MaxUint64, 128}, 1, math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.model.Evaluate(tt.input))
		})
	}
}

func TestChargeWithinLimits(t *testing.T) {
	b := New()
	require.NoError(t, b.Charge(MemCpy, 256))

	assert.Equal(t, uint64(42+32), b.CPUConsumed())
	assert.Equal(t, uint64(0), b.MemConsumed())

	c := b.Counter(MemCpy)
	assert.Equal(t, uint64(1), c.Iterations)
	assert.Equal(t, uint64(256), c.Inputs)
}

func TestMinimalLimitsThenUnlimited(t *testing.T) {
	b := New()
	b.ResetLimits(1, 1)

	err := b.Charge(MemAlloc, 8)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeExceededLimit))
	assert.True(t, errors.IsType(err, errors.TypeBudget))

	b.ResetUnlimited()
	require.NoError(t, b.Charge(MemAlloc, 8))
	assert.False(t, b.Exceeded())
}

func TestExceededIsSticky(t *testing.T) {
	b := New(WithLimits(1000, math.MaxUint64))

	require.NoError(t, b.Charge(DispatchHostFunction, 0))
	require.NoError(t, b.Charge(DispatchHostFunction, 0))
	require.NoError(t, b.Charge(DispatchHostFunction, 0))
	require.Error(t, b.Charge(DispatchHostFunction, 0))

	// even a free charge fails once the meter is past its limit
	require.NoError(t, b.SetCostParams(WasmInsnExec, Params{}))
	err := b.Charge(WasmInsnExec, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeExceededLimit))
	assert.True(t, b.Exceeded())
	assert.Equal(t, uint64(0), b.CPURemaining())

	b.ResetDefault()
	require.NoError(t, b.Charge(WasmInsnExec, 0))
	assert.Equal(t, DefaultCPULimit, b.CPULimit())
	assert.Equal(t, DefaultMemLimit, b.MemLimit())
}

func TestConsumptionMonotonic(t *testing.T) {
	b := New(WithLimits(5000, 5000))

	var lastCPU, lastMem uint64
	for i := 0; i < 50; i++ {
		_ = b.Charge(MemAlloc, uint64(i*7))
		cpu, mem := b.CPUConsumed(), b.MemConsumed()
		assert.GreaterOrEqual(t, cpu, lastCPU)
		assert.GreaterOrEqual(t, mem, lastMem)
		lastCPU, lastMem = cpu, mem
	}
	assert.True(t, b.Exceeded())
}

func TestMemoryDimension(t *testing.T) {
	b := New(WithLimits(math.MaxUint64, 100))

	require.NoError(t, b.Charge(MemAlloc, 50))
	err := b.Charge(MemAlloc, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory limit exceeded")
}

func TestBulkCharge(t *testing.T) {
	b := New()
	require.NoError(t, b.BulkCharge(VisitObject, 10, 0))
	assert.Equal(t, uint64(610), b.CPUConsumed())
	assert.Equal(t, uint64(10), b.Counter(VisitObject).Iterations)

	err := b.BulkCharge(CostType(99), 1, 0)
	require.Error(t, err)
}

func TestWithParams(t *testing.T) {
	b := New(WithParams(map[CostType]Params{
		MemCpy: {CPU: Model{ConstTerm: 1}, Mem: Model{ConstTerm: 2}},
	}))
	require.NoError(t, b.Charge(MemCpy, 1<<20))
	assert.Equal(t, uint64(1), b.CPUConsumed())
	assert.Equal(t, uint64(2), b.MemConsumed())

	assert.Error(t, b.SetCostParams(CostType(-1), Params{}))
}

func TestParseCostType(t *testing.T) {
	for _, ty := range CostTypes() {
		got, ok := ParseCostType(ty.String())
		require.True(t, ok, ty.String())
		assert.Equal(t, ty, got)
	}
	_, ok := ParseCostType("NoSuchCost")
	assert.False(t, ok)
	assert.Equal(t, "CostType(99)", CostType(99).String())
}

func TestReport(t *testing.T) {
	b := New()
	b.ResetUnlimited()
	require.NoError(t, b.Charge(ValSer, 100))

	report := b.Report()
	assert.Contains(t, report, "unlimited")
	assert.Contains(t, report, "ValSer")
	assert.NotContains(t, report, "ValDeser")
}
