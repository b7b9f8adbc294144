package host

import (
	"fmt"

	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/object"
	"github.com/wippyai/contract-host/scval"
	"github.com/wippyai/contract-host/val"
)

// FromScVal converts a wire value into a Val, allocating objects as needed.
// Every wire value either converts or fails with a typed error.
func (h *Host) FromScVal(sc scval.ScVal) (val.Val, error) {
	return h.fromScVal(sc, 1)
}

func (h *Host) depthError(depth int) error {
	return errors.New(errors.TypeContext, errors.CodeExceededLimit).
		Detail("value depth %d exceeds %d", depth, h.limits.MaxValueDepth).
		Build()
}

func (h *Host) fromScVal(sc scval.ScVal, depth int) (val.Val, error) {
	if depth > h.limits.MaxValueDepth {
		return 0, h.depthError(depth)
	}

	switch sc.Type {
	case scval.TypeBool:
		return val.FromBool(sc.B), nil
	case scval.TypeVoid:
		return val.Void, nil
	case scval.TypeError:
		if !errors.Valid(sc.Error.Type, sc.Error.Code) {
			return 0, errors.New(errors.TypeValue, errors.CodeInvalidInput).
				Detail("unrepresentable status (%d, %d)", uint32(sc.Error.Type), uint32(sc.Error.Code)).
				Build()
		}
		return val.FromStatus(sc.Error.Type, sc.Error.Code), nil
	case scval.TypeU32:
		return val.FromU32(sc.U32), nil
	case scval.TypeI32:
		return val.FromI32(sc.I32), nil
	case scval.TypeU64:
		return h.smallOrObjectU(val.TagU64Small, sc.U64, object.U64(sc.U64))
	case scval.TypeTimepoint:
		return h.smallOrObjectU(val.TagTimepointSmall, sc.U64, object.Timepoint(sc.U64))
	case scval.TypeDuration:
		return h.smallOrObjectU(val.TagDurationSmall, sc.U64, object.Duration(sc.U64))
	case scval.TypeI64:
		if v, ok := val.FromSmallI(val.TagI64Small, sc.I64); ok {
			return v, nil
		}
		return h.add(object.I64(sc.I64))
	case scval.TypeU128:
		return h.U128FromParts(sc.U128.Hi, sc.U128.Lo)
	case scval.TypeI128:
		return h.I128FromParts(sc.I128.Hi, sc.I128.Lo)
	case scval.TypeU256:
		p := sc.U256
		return h.U256FromParts(p.HiHi, p.HiLo, p.LoHi, p.LoLo)
	case scval.TypeI256:
		p := sc.I256
		return h.I256FromParts(p.HiHi, p.HiLo, p.LoHi, p.LoLo)
	case scval.TypeBytes:
		return h.add(object.Bytes(clone(sc.Bytes)))
	case scval.TypeString:
		return h.add(object.String(clone(sc.Bytes)))
	case scval.TypeSymbol:
		return h.SymbolFromBytes([]byte(sc.Sym))
	case scval.TypeVec:
		if sc.Vec == nil {
			return 0, errors.UnexpectedType(errors.TypeValue, "present vec", "absent vec")
		}
		elems := make(object.Vec, len(*sc.Vec))
		for i, e := range *sc.Vec {
			v, err := h.fromScVal(e, depth+1)
			if err != nil {
				return 0, err
			}
			elems[i] = v
		}
		return h.add(elems)
	case scval.TypeMap:
		if sc.Map == nil {
			return 0, errors.UnexpectedType(errors.TypeValue, "present map", "absent map")
		}
		entries := make(object.Map, len(*sc.Map))
		for i, e := range *sc.Map {
			k, err := h.fromScVal(e.Key, depth+1)
			if err != nil {
				return 0, err
			}
			v, err := h.fromScVal(e.Val, depth+1)
			if err != nil {
				return 0, err
			}
			entries[i] = object.MapEntry{Key: k, Val: v}
		}
		if err := h.checkSortedKeys(entries); err != nil {
			return 0, err
		}
		return h.add(entries)
	case scval.TypeAddress:
		if sc.Address.Kind > scval.AddressContract {
			return 0, errors.InvalidInput(errors.TypeValue, fmt.Sprintf("address kind %d", sc.Address.Kind))
		}
		return h.add(object.Address(sc.Address))
	}
	return 0, errors.UnexpectedType(errors.TypeValue, "host value type", sc.Type.String())
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (h *Host) smallOrObjectU(t val.Tag, u uint64, obj object.Object) (val.Val, error) {
	if v, ok := val.FromSmallU(t, u); ok {
		return v, nil
	}
	return h.add(obj)
}

// checkSortedKeys requires strictly increasing keys.
func (h *Host) checkSortedKeys(entries object.Map) error {
	for i := 1; i < len(entries); i++ {
		c, err := h.Compare(entries[i-1].Key, entries[i].Key)
		if err != nil {
			return err
		}
		if c >= 0 {
			return errors.New(errors.TypeValue, errors.CodeInvalidInput).
				Detail("map keys out of order at %d", i).
				Build()
		}
	}
	return nil
}

// ToScVal converts a valid Val back to its canonical wire value.
func (h *Host) ToScVal(v val.Val) (scval.ScVal, error) {
	return h.toScVal(v, 1)
}

func (h *Host) toScVal(v val.Val, depth int) (scval.ScVal, error) {
	if depth > h.limits.MaxValueDepth {
		return scval.ScVal{}, h.depthError(depth)
	}
	if err := checkVal(v); err != nil {
		return scval.ScVal{}, err
	}

	switch t := v.Tag(); t {
	case val.TagFalse:
		return scval.Bool(false), nil
	case val.TagTrue:
		return scval.Bool(true), nil
	case val.TagVoid:
		return scval.Void(), nil
	case val.TagError:
		et, ec, _ := v.Status()
		return scval.Error(et, ec), nil
	case val.TagU32:
		return scval.U32(v.Major()), nil
	case val.TagI32:
		return scval.I32(int32(v.Major())), nil
	case val.TagU64Small:
		return scval.U64(v.SmallU()), nil
	case val.TagI64Small:
		return scval.I64(v.SmallI()), nil
	case val.TagTimepointSmall:
		return scval.Timepoint(v.SmallU()), nil
	case val.TagDurationSmall:
		return scval.Duration(v.SmallU()), nil
	case val.TagU128Small:
		return scval.U128(scval.UInt128Parts{Lo: v.SmallU()}), nil
	case val.TagI128Small:
		i := v.SmallI()
		return scval.I128(scval.Int128Parts{Hi: i >> 63, Lo: uint64(i)}), nil
	case val.TagU256Small:
		return scval.U256(scval.UInt256Parts{LoLo: v.SmallU()}), nil
	case val.TagI256Small:
		i := v.SmallI()
		ext := uint64(i >> 63)
		return scval.I256(scval.Int256Parts{HiHi: i >> 63, HiLo: ext, LoHi: ext, LoLo: uint64(i)}), nil
	case val.TagSymbolSmall:
		s, _ := v.SmallSymbol()
		return scval.Symbol(s), nil
	}

	obj, err := h.store.Get(v)
	if err != nil {
		return scval.ScVal{}, err
	}
	switch o := obj.(type) {
	case object.U64:
		return scval.U64(uint64(o)), nil
	case object.I64:
		return scval.I64(int64(o)), nil
	case object.Timepoint:
		return scval.Timepoint(uint64(o)), nil
	case object.Duration:
		return scval.Duration(uint64(o)), nil
	case object.U128:
		hi, lo := o.Parts()
		return scval.U128(scval.UInt128Parts{Hi: hi, Lo: lo}), nil
	case object.I128:
		hi, lo := o.Parts()
		return scval.I128(scval.Int128Parts{Hi: hi, Lo: lo}), nil
	case object.U256:
		hh, hl, lh, ll := o.Parts()
		return scval.U256(scval.UInt256Parts{HiHi: hh, HiLo: hl, LoHi: lh, LoLo: ll}), nil
	case object.I256:
		hh, hl, lh, ll := o.Parts()
		return scval.I256(scval.Int256Parts{HiHi: hh, HiLo: hl, LoHi: lh, LoLo: ll}), nil
	case object.Bytes:
		return scval.Bytes(clone(o)), nil
	case object.String:
		return scval.String(string(o)), nil
	case object.Symbol:
		return scval.Symbol(string(o)), nil
	case object.Address:
		return scval.Address(scval.ScAddress(o)), nil
	case object.Vec:
		elems := make([]scval.ScVal, len(o))
		for i, e := range o {
			sc, err := h.toScVal(e, depth+1)
			if err != nil {
				return scval.ScVal{}, err
			}
			elems[i] = sc
		}
		return scval.Vec(elems...), nil
	case object.Map:
		entries := make([]scval.ScMapEntry, len(o))
		for i, e := range o {
			k, err := h.toScVal(e.Key, depth+1)
			if err != nil {
				return scval.ScVal{}, err
			}
			sv, err := h.toScVal(e.Val, depth+1)
			if err != nil {
				return scval.ScVal{}, err
			}
			entries[i] = scval.Entry(k, sv)
		}
		return scval.Map(entries...), nil
	}
	return scval.ScVal{}, errors.Internal(errors.TypeObject, fmt.Sprintf("unhandled object %T", obj))
}
