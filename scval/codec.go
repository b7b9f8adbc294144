package scval

import (
	stderrors "errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/contract-host/errors"
)

// Limits bounds the encoded size and the Vec/Map nesting depth accepted by
// Marshal and Unmarshal.
type Limits struct {
	MaxSize  int
	MaxDepth int
}

// DefaultLimits are the limits applied at the outer boundary.
var DefaultLimits = Limits{
	MaxSize:  16 * 1024 * 1024,
	MaxDepth: 500,
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

func (l Limits) decMode() (cbor.DecMode, error) {
	// every ScVal level is at most three CBOR levels: value, list, entry
	return cbor.DecOptions{
		MaxNestedLevels:  clamp(3*l.MaxDepth+2, 4, 65535),
		MaxArrayElements: clamp(l.MaxSize, 16, math.MaxInt32),
	}.DecMode()
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Marshal encodes v. Values nested deeper than l.MaxDepth or encoding to
// more than l.MaxSize bytes fail with (Value, ExceededLimit).
func Marshal(v ScVal, l Limits) ([]byte, error) {
	item, err := toItem(v, 1, l.MaxDepth)
	if err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(item)
	if err != nil {
		return nil, errors.New(errors.TypeValue, errors.CodeInternalError).
			Detail("encode").
			Cause(err).
			Build()
	}
	if len(data) > l.MaxSize {
		return nil, errors.New(errors.TypeValue, errors.CodeExceededLimit).
			Detail("encoded size %d exceeds %d", len(data), l.MaxSize).
			Build()
	}
	return data, nil
}

// Unmarshal decodes one value from data, which must contain nothing else.
func Unmarshal(data []byte, l Limits) (ScVal, error) {
	if len(data) > l.MaxSize {
		return ScVal{}, errors.New(errors.TypeValue, errors.CodeExceededLimit).
			Detail("input size %d exceeds %d", len(data), l.MaxSize).
			Build()
	}
	dm, err := l.decMode()
	if err != nil {
		return ScVal{}, errors.New(errors.TypeValue, errors.CodeInvalidInput).
			Detail("limits").
			Cause(err).
			Build()
	}

	var item any
	if err := dm.Unmarshal(data, &item); err != nil {
		return ScVal{}, decodeError(err)
	}
	return fromItem(item, 1, l.MaxDepth)
}

func decodeError(err error) error {
	var (
		nested *cbor.MaxNestedLevelError
		arr    *cbor.MaxArrayElementsError
	)
	code := errors.CodeInvalidInput
	if stderrors.As(err, &nested) || stderrors.As(err, &arr) {
		code = errors.CodeExceededLimit
	}
	return errors.New(errors.TypeValue, code).
		Detail("decode").
		Cause(err).
		Build()
}

func depthError(depth, limit int) error {
	return errors.New(errors.TypeValue, errors.CodeExceededLimit).
		Detail("nesting depth %d exceeds %d", depth, limit).
		Build()
}

func toItem(v ScVal, depth, limit int) (any, error) {
	if depth > limit {
		return nil, depthError(depth, limit)
	}
	ty := uint64(v.Type)

	switch v.Type {
	case TypeBool:
		return []any{ty, v.B}, nil
	case TypeVoid, TypeLedgerKeyContractInstance:
		return []any{ty}, nil
	case TypeError:
		return []any{ty, uint64(v.Error.Type), uint64(v.Error.Code)}, nil
	case TypeU32:
		return []any{ty, uint64(v.U32)}, nil
	case TypeI32:
		return []any{ty, int64(v.I32)}, nil
	case TypeU64, TypeTimepoint, TypeDuration:
		return []any{ty, v.U64}, nil
	case TypeI64, TypeLedgerKeyNonce:
		return []any{ty, v.I64}, nil
	case TypeU128:
		return []any{ty, v.U128.Hi, v.U128.Lo}, nil
	case TypeI128:
		return []any{ty, v.I128.Hi, v.I128.Lo}, nil
	case TypeU256:
		return []any{ty, v.U256.HiHi, v.U256.HiLo, v.U256.LoHi, v.U256.LoLo}, nil
	case TypeI256:
		return []any{ty, v.I256.HiHi, v.I256.HiLo, v.I256.LoHi, v.I256.LoLo}, nil
	case TypeBytes, TypeString:
		b := v.Bytes
		if b == nil {
			b = []byte{}
		}
		return []any{ty, b}, nil
	case TypeSymbol:
		if len(v.Sym) > SymbolLimit {
			return nil, errors.InvalidInput(errors.TypeValue, fmt.Sprintf("symbol length %d exceeds %d", len(v.Sym), SymbolLimit))
		}
		return []any{ty, v.Sym}, nil
	case TypeVec:
		if v.Vec == nil {
			return []any{ty}, nil
		}
		elems := make([]any, len(*v.Vec))
		for i, e := range *v.Vec {
			item, err := toItem(e, depth+1, limit)
			if err != nil {
				return nil, err
			}
			elems[i] = item
		}
		return []any{ty, elems}, nil
	case TypeMap:
		if v.Map == nil {
			return []any{ty}, nil
		}
		entries := make([]any, len(*v.Map))
		for i, e := range *v.Map {
			k, err := toItem(e.Key, depth+1, limit)
			if err != nil {
				return nil, err
			}
			val, err := toItem(e.Val, depth+1, limit)
			if err != nil {
				return nil, err
			}
			entries[i] = []any{k, val}
		}
		return []any{ty, entries}, nil
	case TypeAddress:
		return []any{ty, uint64(v.Address.Kind), v.Address.ID[:]}, nil
	case TypeContractInstance:
		return []any{ty, v.Hash[:]}, nil
	}
	return nil, errors.InvalidInput(errors.TypeValue, fmt.Sprintf("unknown type %s", v.Type))
}

// fieldList is a decoded CBOR array being read field by field.
type fieldList struct {
	fields []any
	ty     Type
}

func shapeError(ty Type, what string, got any) error {
	return errors.UnexpectedType(errors.TypeValue, fmt.Sprintf("%s for %s", what, ty), fmt.Sprintf("%T", got))
}

func (it fieldList) arity(n int) error {
	if len(it.fields) != n {
		return errors.New(errors.TypeValue, errors.CodeUnexpectedType).
			Detail("%s: expected %d fields, got %d", it.ty, n-1, len(it.fields)-1).
			Build()
	}
	return nil
}

func (it fieldList) unsigned(i int, maxVal uint64) (uint64, error) {
	u, ok := it.fields[i].(uint64)
	if !ok {
		return 0, shapeError(it.ty, "unsigned integer", it.fields[i])
	}
	if u > maxVal {
		return 0, errors.New(errors.TypeValue, errors.CodeInvalidInput).
			Detail("%s: %d out of range", it.ty, u).
			Build()
	}
	return u, nil
}

func (it fieldList) signed(i int, minVal, maxVal int64) (int64, error) {
	var n int64
	switch x := it.fields[i].(type) {
	case uint64:
		if x > math.MaxInt64 {
			return 0, errors.New(errors.TypeValue, errors.CodeInvalidInput).
				Detail("%s: %d out of range", it.ty, x).
				Build()
		}
		n = int64(x)
	case int64:
		n = x
	default:
		return 0, shapeError(it.ty, "integer", x)
	}
	if n < minVal || n > maxVal {
		return 0, errors.New(errors.TypeValue, errors.CodeInvalidInput).
			Detail("%s: %d out of range", it.ty, n).
			Build()
	}
	return n, nil
}

func (it fieldList) bytes(i int) ([]byte, error) {
	b, ok := it.fields[i].([]byte)
	if !ok {
		return nil, shapeError(it.ty, "byte string", it.fields[i])
	}
	return b, nil
}

func (it fieldList) hash(i int) ([32]byte, error) {
	var h [32]byte
	b, err := it.bytes(i)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, errors.UnexpectedSize(errors.TypeValue, uint64(len(h)), uint64(len(b)))
	}
	copy(h[:], b)
	return h, nil
}

func (it fieldList) list(i int) ([]any, error) {
	l, ok := it.fields[i].([]any)
	if !ok {
		return nil, shapeError(it.ty, "array", it.fields[i])
	}
	return l, nil
}

func fromItem(raw any, depth, limit int) (ScVal, error) {
	if depth > limit {
		return ScVal{}, depthError(depth, limit)
	}
	fields, ok := raw.([]any)
	if !ok || len(fields) == 0 {
		return ScVal{}, errors.UnexpectedType(errors.TypeValue, "non-empty array", fmt.Sprintf("%T", raw))
	}
	tag, ok := fields[0].(uint64)
	if !ok || tag > uint64(MaxType) {
		return ScVal{}, errors.New(errors.TypeValue, errors.CodeUnexpectedType).
			Detail("unknown value type %v", fields[0]).
			Build()
	}
	it := fieldList{fields: fields, ty: Type(tag)}
	v := ScVal{Type: it.ty}
	var err error

	switch it.ty {
	case TypeVoid, TypeLedgerKeyContractInstance:
		err = it.arity(1)
	case TypeBool:
		if err = it.arity(2); err != nil {
			break
		}
		b, ok := fields[1].(bool)
		if !ok {
			return ScVal{}, shapeError(it.ty, "boolean", fields[1])
		}
		v.B = b
	case TypeError:
		if err = it.arity(3); err != nil {
			break
		}
		var t, c uint64
		if t, err = it.unsigned(1, math.MaxUint32); err != nil {
			break
		}
		if c, err = it.unsigned(2, math.MaxUint32); err != nil {
			break
		}
		v.Error = ScError{Type: errors.Type(t), Code: errors.Code(c)}
	case TypeU32:
		if err = it.arity(2); err != nil {
			break
		}
		var u uint64
		u, err = it.unsigned(1, math.MaxUint32)
		v.U32 = uint32(u)
	case TypeI32:
		if err = it.arity(2); err != nil {
			break
		}
		var n int64
		n, err = it.signed(1, math.MinInt32, math.MaxInt32)
		v.I32 = int32(n)
	case TypeU64, TypeTimepoint, TypeDuration:
		if err = it.arity(2); err != nil {
			break
		}
		v.U64, err = it.unsigned(1, math.MaxUint64)
	case TypeI64, TypeLedgerKeyNonce:
		if err = it.arity(2); err != nil {
			break
		}
		v.I64, err = it.signed(1, math.MinInt64, math.MaxInt64)
	case TypeU128:
		if err = it.arity(3); err != nil {
			break
		}
		if v.U128.Hi, err = it.unsigned(1, math.MaxUint64); err != nil {
			break
		}
		v.U128.Lo, err = it.unsigned(2, math.MaxUint64)
	case TypeI128:
		if err = it.arity(3); err != nil {
			break
		}
		if v.I128.Hi, err = it.signed(1, math.MinInt64, math.MaxInt64); err != nil {
			break
		}
		v.I128.Lo, err = it.unsigned(2, math.MaxUint64)
	case TypeU256:
		if err = it.arity(5); err != nil {
			break
		}
		words := []*uint64{&v.U256.HiHi, &v.U256.HiLo, &v.U256.LoHi, &v.U256.LoLo}
		for i, w := range words {
			if *w, err = it.unsigned(i+1, math.MaxUint64); err != nil {
				break
			}
		}
	case TypeI256:
		if err = it.arity(5); err != nil {
			break
		}
		if v.I256.HiHi, err = it.signed(1, math.MinInt64, math.MaxInt64); err != nil {
			break
		}
		words := []*uint64{&v.I256.HiLo, &v.I256.LoHi, &v.I256.LoLo}
		for i, w := range words {
			if *w, err = it.unsigned(i+2, math.MaxUint64); err != nil {
				break
			}
		}
	case TypeBytes, TypeString:
		if err = it.arity(2); err != nil {
			break
		}
		v.Bytes, err = it.bytes(1)
	case TypeSymbol:
		if err = it.arity(2); err != nil {
			break
		}
		s, ok := fields[1].(string)
		if !ok {
			return ScVal{}, shapeError(it.ty, "text string", fields[1])
		}
		if len(s) > SymbolLimit {
			return ScVal{}, errors.InvalidInput(errors.TypeValue, fmt.Sprintf("symbol length %d exceeds %d", len(s), SymbolLimit))
		}
		v.Sym = s
	case TypeVec:
		if len(fields) == 1 {
			break
		}
		if err = it.arity(2); err != nil {
			break
		}
		var elems []any
		if elems, err = it.list(1); err != nil {
			break
		}
		vec := make(ScVec, len(elems))
		for i, e := range elems {
			if vec[i], err = fromItem(e, depth+1, limit); err != nil {
				return ScVal{}, err
			}
		}
		v.Vec = &vec
	case TypeMap:
		if len(fields) == 1 {
			break
		}
		if err = it.arity(2); err != nil {
			break
		}
		var entries []any
		if entries, err = it.list(1); err != nil {
			break
		}
		m := make(ScMap, len(entries))
		for i, e := range entries {
			pair, ok := e.([]any)
			if !ok || len(pair) != 2 {
				return ScVal{}, shapeError(it.ty, "key/value pair", e)
			}
			if m[i].Key, err = fromItem(pair[0], depth+1, limit); err != nil {
				return ScVal{}, err
			}
			if m[i].Val, err = fromItem(pair[1], depth+1, limit); err != nil {
				return ScVal{}, err
			}
		}
		v.Map = &m
	case TypeAddress:
		if err = it.arity(3); err != nil {
			break
		}
		var kind uint64
		if kind, err = it.unsigned(1, uint64(AddressContract)); err != nil {
			break
		}
		v.Address.Kind = AddressKind(kind)
		v.Address.ID, err = it.hash(2)
	case TypeContractInstance:
		if err = it.arity(2); err != nil {
			break
		}
		v.Hash, err = it.hash(1)
	}
	if err != nil {
		return ScVal{}, err
	}
	return v, nil
}
