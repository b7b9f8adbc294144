package budget

import (
	"fmt"
	"math"
	"math/bits"
)

// CostType names one metered host activity.
type CostType int

const (
	WasmInsnExec CostType = iota
	MemAlloc
	MemCpy
	MemCmp
	DispatchHostFunction
	VisitObject
	ValSer
	ValDeser
	ComputeSha256Hash
	VmInstantiation
	InvokeVmFunction
	Int256Compare

	numCostTypes
)

var costTypeNames = [numCostTypes]string{
	WasmInsnExec:         "WasmInsnExec",
	MemAlloc:             "MemAlloc",
	MemCpy:               "MemCpy",
	MemCmp:               "MemCmp",
	DispatchHostFunction: "DispatchHostFunction",
	VisitObject:          "VisitObject",
	ValSer:               "ValSer",
	ValDeser:             "ValDeser",
	ComputeSha256Hash:    "ComputeSha256Hash",
	VmInstantiation:      "VmInstantiation",
	InvokeVmFunction:     "InvokeVmFunction",
	Int256Compare:        "Int256Compare",
}

func (c CostType) String() string {
	if c >= 0 && c < numCostTypes {
		return costTypeNames[c]
	}
	return fmt.Sprintf("CostType(%d)", int(c))
}

// CostTypes returns every defined cost type in declaration order.
func CostTypes() []CostType {
	out := make([]CostType, numCostTypes)
	for i := range out {
		out[i] = CostType(i)
	}
	return out
}

// ParseCostType resolves a cost type by name.
func ParseCostType(name string) (CostType, bool) {
	for i, n := range costTypeNames {
		if n == name {
			return CostType(i), true
		}
	}
	return 0, false
}

// linearScaleBits is the fixed-point shift applied to linear terms, so a
// LinearTerm of 128 charges one unit per input unit.
const linearScaleBits = 7

// Model is a linear cost function: ConstTerm + (LinearTerm * input) >> 7.
type Model struct {
	ConstTerm  uint64
	LinearTerm uint64
}

// Evaluate returns the cost for the given input size, saturating at MaxUint64.
func (m Model) Evaluate(input uint64) uint64 {
	hi, lo := bits.Mul64(m.LinearTerm, input)
	if hi>>linearScaleBits != 0 {
		return math.MaxUint64
	}
	lin := hi<<(64-linearScaleBits) | lo>>linearScaleBits
	return saturatingAdd(m.ConstTerm, lin)
}

// Params is the CPU and memory model for one cost type.
type Params struct {
	CPU Model
	Mem Model
}

// DefaultParams returns the built-in cost table.
func DefaultParams() map[CostType]Params {
	return map[CostType]Params{
		WasmInsnExec:         {CPU: Model{4, 0}, Mem: Model{0, 0}},
		MemAlloc:             {CPU: Model{434, 16}, Mem: Model{16, 128}},
		MemCpy:               {CPU: Model{42, 16}, Mem: Model{0, 0}},
		MemCmp:               {CPU: Model{44, 16}, Mem: Model{0, 0}},
		DispatchHostFunction: {CPU: Model{310, 0}, Mem: Model{0, 0}},
		VisitObject:          {CPU: Model{61, 0}, Mem: Model{0, 0}},
		ValSer:               {CPU: Model{230, 29}, Mem: Model{242, 384}},
		ValDeser:             {CPU: Model{1000, 29}, Mem: Model{0, 384}},
		ComputeSha256Hash:    {CPU: Model{3738, 7012}, Mem: Model{0, 0}},
		VmInstantiation:      {CPU: Model{451626, 45405}, Mem: Model{130065, 5064}},
		InvokeVmFunction:     {CPU: Model{1948, 0}, Mem: Model{14, 0}},
		Int256Compare:        {CPU: Model{53, 0}, Mem: Model{0, 0}},
	}
}

func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func saturatingMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
