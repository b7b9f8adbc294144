package host

import (
	"bytes"
	"cmp"

	"github.com/holiman/uint256"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/object"
	"github.com/wippyai/contract-host/scval"
	"github.com/wippyai/contract-host/val"
)

// Compare orders two Vals the way scval.Compare orders their wire forms.
// Small and object forms of the same type compare by value. Every visited
// node and every compared byte is charged.
func (h *Host) Compare(a, b val.Val) (int, error) {
	return h.compare(a, b, 1)
}

func (h *Host) compare(a, b val.Val, depth int) (int, error) {
	if depth > h.limits.MaxValueDepth {
		return 0, h.depthError(depth)
	}
	if err := h.charge(budget.VisitObject, 0); err != nil {
		return 0, err
	}
	if err := checkVal(a); err != nil {
		return 0, err
	}
	if err := checkVal(b); err != nil {
		return 0, err
	}
	ta, _ := a.Type()
	tb, _ := b.Type()
	if c := cmp.Compare(ta, tb); c != 0 {
		return c, nil
	}
	if a == b {
		return 0, nil
	}

	switch ta {
	case scval.TypeBool:
		return cmp.Compare(a.Tag(), b.Tag()), nil
	case scval.TypeVoid:
		return 0, nil
	case scval.TypeError:
		if c := cmp.Compare(a.Minor(), b.Minor()); c != 0 {
			return c, nil
		}
		return cmp.Compare(a.Major(), b.Major()), nil
	case scval.TypeU32:
		return cmp.Compare(a.Major(), b.Major()), nil
	case scval.TypeI32:
		return cmp.Compare(int32(a.Major()), int32(b.Major())), nil
	case scval.TypeU64, scval.TypeTimepoint, scval.TypeDuration:
		x, err := h.wordOf(a)
		if err != nil {
			return 0, err
		}
		y, err := h.wordOf(b)
		if err != nil {
			return 0, err
		}
		return cmp.Compare(x, y), nil
	case scval.TypeI64:
		x, err := h.wordOf(a)
		if err != nil {
			return 0, err
		}
		y, err := h.wordOf(b)
		if err != nil {
			return 0, err
		}
		return cmp.Compare(int64(x), int64(y)), nil
	case scval.TypeU128, scval.TypeU256, scval.TypeI128, scval.TypeI256:
		return h.compareBig(ta, a, b)
	case scval.TypeBytes, scval.TypeString, scval.TypeSymbol:
		x, err := h.bytesOf(a)
		if err != nil {
			return 0, err
		}
		y, err := h.bytesOf(b)
		if err != nil {
			return 0, err
		}
		return h.compareBytes(x, y)
	case scval.TypeAddress:
		x, err := get[object.Address](h, a)
		if err != nil {
			return 0, err
		}
		y, err := get[object.Address](h, b)
		if err != nil {
			return 0, err
		}
		if c := cmp.Compare(x.Kind, y.Kind); c != 0 {
			return c, nil
		}
		return h.compareBytes(x.ID[:], y.ID[:])
	case scval.TypeVec:
		x, err := get[object.Vec](h, a)
		if err != nil {
			return 0, err
		}
		y, err := get[object.Vec](h, b)
		if err != nil {
			return 0, err
		}
		for i := 0; i < min(len(x), len(y)); i++ {
			c, err := h.compare(x[i], y[i], depth+1)
			if err != nil || c != 0 {
				return c, err
			}
		}
		return cmp.Compare(len(x), len(y)), nil
	case scval.TypeMap:
		x, err := get[object.Map](h, a)
		if err != nil {
			return 0, err
		}
		y, err := get[object.Map](h, b)
		if err != nil {
			return 0, err
		}
		for i := 0; i < min(len(x), len(y)); i++ {
			c, err := h.compare(x[i].Key, y[i].Key, depth+1)
			if err != nil || c != 0 {
				return c, err
			}
			c, err = h.compare(x[i].Val, y[i].Val, depth+1)
			if err != nil || c != 0 {
				return c, err
			}
		}
		return cmp.Compare(len(x), len(y)), nil
	}
	return 0, errors.Internal(errors.TypeValue, "uncomparable type "+ta.String())
}

func (h *Host) compareBytes(x, y []byte) (int, error) {
	if err := h.charge(budget.MemCmp, uint64(min(len(x), len(y)))); err != nil {
		return 0, err
	}
	return bytes.Compare(x, y), nil
}

// wordOf returns the 64-bit payload of a U64, I64, Timepoint or Duration in
// either form.
func (h *Host) wordOf(v val.Val) (uint64, error) {
	switch v.Tag() {
	case val.TagU64Small, val.TagTimepointSmall, val.TagDurationSmall:
		return v.SmallU(), nil
	case val.TagI64Small:
		return uint64(v.SmallI()), nil
	}
	obj, err := h.store.Get(v)
	if err != nil {
		return 0, err
	}
	switch o := obj.(type) {
	case object.U64:
		return uint64(o), nil
	case object.I64:
		return uint64(o), nil
	case object.Timepoint:
		return uint64(o), nil
	case object.Duration:
		return uint64(o), nil
	}
	return 0, errors.UnexpectedType(errors.TypeObject, "64-bit integer", v.Tag().String())
}

// bigOf returns a 128 or 256-bit integer in either form, signed values
// sign-extended to 256 bits.
func (h *Host) bigOf(v val.Val) (*uint256.Int, error) {
	switch v.Tag() {
	case val.TagU128Small, val.TagU256Small:
		return uint256.NewInt(v.SmallU()), nil
	case val.TagI128Small, val.TagI256Small:
		i := v.SmallI()
		ext := uint64(i >> 63)
		return &uint256.Int{uint64(i), ext, ext, ext}, nil
	}
	obj, err := h.store.Get(v)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case object.U128:
		return o.Int(), nil
	case object.I128:
		return o.Int(), nil
	case object.U256:
		return o.Int(), nil
	case object.I256:
		return o.Int(), nil
	}
	return nil, errors.UnexpectedType(errors.TypeObject, "big integer", v.Tag().String())
}

func (h *Host) compareBig(ty scval.Type, a, b val.Val) (int, error) {
	if ty == scval.TypeU256 || ty == scval.TypeI256 {
		if err := h.charge(budget.Int256Compare, 0); err != nil {
			return 0, err
		}
	}
	x, err := h.bigOf(a)
	if err != nil {
		return 0, err
	}
	y, err := h.bigOf(b)
	if err != nil {
		return 0, err
	}
	if ty == scval.TypeI128 || ty == scval.TypeI256 {
		return object.CompareSigned(x, y), nil
	}
	return object.CompareUnsigned(x, y), nil
}

// bytesOf returns the contents of a Bytes, String or Symbol in either form.
func (h *Host) bytesOf(v val.Val) ([]byte, error) {
	if s, ok := v.SmallSymbol(); ok {
		return []byte(s), nil
	}
	obj, err := h.store.Get(v)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case object.Bytes:
		return o, nil
	case object.String:
		return o, nil
	case object.Symbol:
		return o, nil
	}
	return nil, errors.UnexpectedType(errors.TypeObject, "byte string", v.Tag().String())
}
