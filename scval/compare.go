package scval

import (
	"bytes"
	"cmp"

	"github.com/wippyai/contract-host/budget"
)

// Charger is the metering hook used by CompareMetered. *budget.Budget
// satisfies it.
type Charger interface {
	Charge(ty budget.CostType, input uint64) error
}

// Compare is the total order over ScVal: by Type first, then by payload.
// Integers compare numerically, byte strings and symbols bytewise, vectors
// and maps elementwise then by length, and an absent Vec or Map sorts
// before a present one.
func Compare(a, b ScVal) int {
	c, _ := compare(nil, a, b)
	return c
}

// Equal reports whether a and b compare equal.
func Equal(a, b ScVal) bool {
	return Compare(a, b) == 0
}

// CompareMetered is Compare with every visited node and every byte compared
// charged to m. It returns the budget error as soon as a charge fails.
func CompareMetered(m Charger, a, b ScVal) (int, error) {
	return compare(m, a, b)
}

func charge(m Charger, ty budget.CostType, input uint64) error {
	if m == nil {
		return nil
	}
	return m.Charge(ty, input)
}

func compare(m Charger, a, b ScVal) (int, error) {
	if err := charge(m, budget.VisitObject, 0); err != nil {
		return 0, err
	}
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c, nil
	}

	switch a.Type {
	case TypeBool:
		return compareBool(a.B, b.B), nil
	case TypeVoid, TypeLedgerKeyContractInstance:
		return 0, nil
	case TypeError:
		if c := cmp.Compare(a.Error.Type, b.Error.Type); c != 0 {
			return c, nil
		}
		return cmp.Compare(a.Error.Code, b.Error.Code), nil
	case TypeU32:
		return cmp.Compare(a.U32, b.U32), nil
	case TypeI32:
		return cmp.Compare(a.I32, b.I32), nil
	case TypeU64, TypeTimepoint, TypeDuration:
		return cmp.Compare(a.U64, b.U64), nil
	case TypeI64, TypeLedgerKeyNonce:
		return cmp.Compare(a.I64, b.I64), nil
	case TypeU128:
		return compareWords(a.U128.Hi, a.U128.Lo, b.U128.Hi, b.U128.Lo), nil
	case TypeI128:
		if c := cmp.Compare(a.I128.Hi, b.I128.Hi); c != 0 {
			return c, nil
		}
		return cmp.Compare(a.I128.Lo, b.I128.Lo), nil
	case TypeU256:
		if err := charge(m, budget.Int256Compare, 0); err != nil {
			return 0, err
		}
		if c := compareWords(a.U256.HiHi, a.U256.HiLo, b.U256.HiHi, b.U256.HiLo); c != 0 {
			return c, nil
		}
		return compareWords(a.U256.LoHi, a.U256.LoLo, b.U256.LoHi, b.U256.LoLo), nil
	case TypeI256:
		if err := charge(m, budget.Int256Compare, 0); err != nil {
			return 0, err
		}
		if c := cmp.Compare(a.I256.HiHi, b.I256.HiHi); c != 0 {
			return c, nil
		}
		if c := cmp.Compare(a.I256.HiLo, b.I256.HiLo); c != 0 {
			return c, nil
		}
		return compareWords(a.I256.LoHi, a.I256.LoLo, b.I256.LoHi, b.I256.LoLo), nil
	case TypeBytes, TypeString:
		return compareBytes(m, a.Bytes, b.Bytes)
	case TypeSymbol:
		return compareBytes(m, []byte(a.Sym), []byte(b.Sym))
	case TypeVec:
		return compareVec(m, a.Vec, b.Vec)
	case TypeMap:
		return compareMap(m, a.Map, b.Map)
	case TypeAddress:
		if c := cmp.Compare(a.Address.Kind, b.Address.Kind); c != 0 {
			return c, nil
		}
		return compareBytes(m, a.Address.ID[:], b.Address.ID[:])
	case TypeContractInstance:
		return compareBytes(m, a.Hash[:], b.Hash[:])
	}
	return 0, nil
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareWords(ahi, alo, bhi, blo uint64) int {
	if c := cmp.Compare(ahi, bhi); c != 0 {
		return c
	}
	return cmp.Compare(alo, blo)
}

func compareBytes(m Charger, a, b []byte) (int, error) {
	if err := charge(m, budget.MemCmp, uint64(min(len(a), len(b)))); err != nil {
		return 0, err
	}
	return bytes.Compare(a, b), nil
}

func compareVec(m Charger, a, b *ScVec) (int, error) {
	if a == nil || b == nil {
		return compareBool(a != nil, b != nil), nil
	}
	n := min(len(*a), len(*b))
	for i := 0; i < n; i++ {
		c, err := compare(m, (*a)[i], (*b)[i])
		if err != nil || c != 0 {
			return c, err
		}
	}
	return cmp.Compare(len(*a), len(*b)), nil
}

func compareMap(m Charger, a, b *ScMap) (int, error) {
	if a == nil || b == nil {
		return compareBool(a != nil, b != nil), nil
	}
	n := min(len(*a), len(*b))
	for i := 0; i < n; i++ {
		c, err := compare(m, (*a)[i].Key, (*b)[i].Key)
		if err != nil || c != 0 {
			return c, err
		}
		c, err = compare(m, (*a)[i].Val, (*b)[i].Val)
		if err != nil || c != 0 {
			return c, err
		}
	}
	return cmp.Compare(len(*a), len(*b)), nil
}
