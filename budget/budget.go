// Package budget meters the CPU-equivalent and memory-equivalent cost of host work.
//
// Every metered operation charges the budget before it does the work it gates.
// Consumption only grows between resets; once either dimension passes its limit
// every later charge fails with (Budget, ExceededLimit) until ResetLimits,
// ResetUnlimited or ResetDefault is called.
//
// A Budget belongs to exactly one host instance and is passed explicitly to the
// components that charge it.
package budget

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/wippyai/contract-host/errors"
)

const (
	// DefaultCPULimit is the CPU-equivalent limit of a fresh budget.
	DefaultCPULimit uint64 = 100_000_000
	// DefaultMemLimit is the memory-equivalent limit of a fresh budget, in bytes.
	DefaultMemLimit uint64 = 40 * 1024 * 1024
)

type dimension struct {
	total uint64
	limit uint64
}

func (d *dimension) charge(amount uint64) bool {
	d.total = saturatingAdd(d.total, amount)
	return d.total <= d.limit
}

func (d *dimension) remaining() uint64 {
	if d.total >= d.limit {
		return 0
	}
	return d.limit - d.total
}

// Counter accumulates what one cost type has consumed.
type Counter struct {
	Iterations uint64
	Inputs     uint64
	CPU        uint64
	Mem        uint64
}

// Budget is the dual resource meter of a host instance.
type Budget struct {
	params   map[CostType]Params
	counters [numCostTypes]Counter
	cpu      dimension
	mem      dimension
	mu       sync.Mutex
}

// Option configures a Budget.
type Option func(*Budget)

// WithLimits sets the initial limits.
func WithLimits(cpu, mem uint64) Option {
	return func(b *Budget) {
		b.cpu.limit = cpu
		b.mem.limit = mem
	}
}

// WithParams replaces cost models for the given cost types.
func WithParams(params map[CostType]Params) Option {
	return func(b *Budget) {
		for ty, p := range params {
			b.params[ty] = p
		}
	}
}

// New creates a budget with the default cost table and limits.
func New(opts ...Option) *Budget {
	b := &Budget{
		params: DefaultParams(),
		cpu:    dimension{limit: DefaultCPULimit},
		mem:    dimension{limit: DefaultMemLimit},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Default creates a budget with default limits.
func Default() *Budget {
	return New()
}

// ResetLimits clears consumption and installs new limits.
func (b *Budget) ResetLimits(cpu, mem uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset(cpu, mem)
}

// ResetUnlimited clears consumption and disables limit checking.
func (b *Budget) ResetUnlimited() {
	b.ResetLimits(math.MaxUint64, math.MaxUint64)
}

// ResetDefault clears consumption and restores the default limits.
func (b *Budget) ResetDefault() {
	b.ResetLimits(DefaultCPULimit, DefaultMemLimit)
}

func (b *Budget) reset(cpu, mem uint64) {
	b.cpu = dimension{limit: cpu}
	b.mem = dimension{limit: mem}
	b.counters = [numCostTypes]Counter{}
}

// SetCostParams replaces the model for one cost type.
func (b *Budget) SetCostParams(ty CostType, p Params) error {
	if ty < 0 || ty >= numCostTypes {
		return errors.InvalidInput(errors.TypeBudget, fmt.Sprintf("unknown cost type %d", int(ty)))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params[ty] = p
	return nil
}

// Charge meters one iteration of ty with the given input size.
func (b *Budget) Charge(ty CostType, input uint64) error {
	return b.BulkCharge(ty, 1, input)
}

// BulkCharge meters several iterations of ty at once.
func (b *Budget) BulkCharge(ty CostType, iterations, input uint64) error {
	if ty < 0 || ty >= numCostTypes {
		return errors.Internal(errors.TypeBudget, fmt.Sprintf("unknown cost type %d", int(ty)))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.params[ty]
	cpu := saturatingMul(p.CPU.Evaluate(input), iterations)
	mem := saturatingMul(p.Mem.Evaluate(input), iterations)

	c := &b.counters[ty]
	c.Iterations = saturatingAdd(c.Iterations, iterations)
	c.Inputs = saturatingAdd(c.Inputs, saturatingMul(input, iterations))
	c.CPU = saturatingAdd(c.CPU, cpu)
	c.Mem = saturatingAdd(c.Mem, mem)

	cpuOK := b.cpu.charge(cpu)
	memOK := b.mem.charge(mem)
	switch {
	case !cpuOK:
		return errors.New(errors.TypeBudget, errors.CodeExceededLimit).
			Detail("cpu limit exceeded: %d > %d (%s)", b.cpu.total, b.cpu.limit, ty).
			Build()
	case !memOK:
		return errors.New(errors.TypeBudget, errors.CodeExceededLimit).
			Detail("memory limit exceeded: %d > %d (%s)", b.mem.total, b.mem.limit, ty).
			Build()
	}
	return nil
}

// Affordable returns how many iterations of ty with the given input fit in
// what is left of both limits. It is MaxUint64 when ty costs nothing.
func (b *Budget) Affordable(ty CostType, input uint64) uint64 {
	if ty < 0 || ty >= numCostTypes {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.params[ty]
	n := uint64(math.MaxUint64)
	if c := p.CPU.Evaluate(input); c > 0 {
		n = min(n, b.cpu.remaining()/c)
	}
	if c := p.Mem.Evaluate(input); c > 0 {
		n = min(n, b.mem.remaining()/c)
	}
	return n
}

// Exceeded reports whether either dimension is past its limit.
func (b *Budget) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cpu.total > b.cpu.limit || b.mem.total > b.mem.limit
}

// CPUConsumed returns the CPU-equivalent units consumed since the last reset.
func (b *Budget) CPUConsumed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cpu.total
}

// MemConsumed returns the memory-equivalent units consumed since the last reset.
func (b *Budget) MemConsumed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mem.total
}

// CPULimit returns the current CPU limit.
func (b *Budget) CPULimit() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cpu.limit
}

// MemLimit returns the current memory limit.
func (b *Budget) MemLimit() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mem.limit
}

// CPURemaining returns the CPU units left before the limit, zero when exceeded.
func (b *Budget) CPURemaining() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cpu.remaining()
}

// MemRemaining returns the memory units left before the limit, zero when exceeded.
func (b *Budget) MemRemaining() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mem.remaining()
}

// Counter returns the accumulated consumption of one cost type.
func (b *Budget) Counter(ty CostType) Counter {
	if ty < 0 || ty >= numCostTypes {
		return Counter{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counters[ty]
}

// Report renders the per-cost-type consumption table.
func (b *Budget) Report() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "cpu: %d / %s, mem: %d / %s\n",
		b.cpu.total, limitString(b.cpu.limit), b.mem.total, limitString(b.mem.limit))
	for i, c := range b.counters {
		if c.Iterations == 0 {
			continue
		}
		fmt.Fprintf(&sb, "  %-22s iters=%-8d input=%-10d cpu=%-12d mem=%d\n",
			CostType(i), c.Iterations, c.Inputs, c.CPU, c.Mem)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func limitString(limit uint64) string {
	if limit == math.MaxUint64 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", limit)
}
