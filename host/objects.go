package host

import (
	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/object"
	"github.com/wippyai/contract-host/scval"
	"github.com/wippyai/contract-host/val"
)

// Host objects never change. Every operation below that "modifies" an
// object builds and charges a new one.

func indexError(pos, length uint64) error {
	return errors.IndexBounds(errors.TypeObject, pos, 1, length)
}

func rangeError(start, end, length uint64) error {
	if start > end {
		return errors.New(errors.TypeObject, errors.CodeInvalidInput).
			Detail("range start %d after end %d", start, end).
			Build()
	}
	return errors.IndexBounds(errors.TypeObject, start, end-start, length)
}

func (h *Host) copyCharge(n int, elemSize uint64) error {
	return h.charge(budget.MemCpy, uint64(n)*elemSize)
}

// VecNew returns an empty vector.
func (h *Host) VecNew() (val.Val, error) {
	return h.add(object.Vec{})
}

// VecFromSlice copies vals into a new vector after validating each.
func (h *Host) VecFromSlice(vals []val.Val) (val.Val, error) {
	for _, v := range vals {
		if err := h.validate(v); err != nil {
			return 0, err
		}
	}
	if err := h.copyCharge(len(vals), 8); err != nil {
		return 0, err
	}
	return h.add(append(object.Vec{}, vals...))
}

// VecLen returns the number of elements.
func (h *Host) VecLen(v val.Val) (uint32, error) {
	vec, err := get[object.Vec](h, v)
	if err != nil {
		return 0, err
	}
	return uint32(len(vec)), nil
}

// VecGet returns element i.
func (h *Host) VecGet(v val.Val, i uint32) (val.Val, error) {
	vec, err := get[object.Vec](h, v)
	if err != nil {
		return 0, err
	}
	if uint64(i) >= uint64(len(vec)) {
		return 0, indexError(uint64(i), uint64(len(vec)))
	}
	return vec[i], nil
}

// vecWith builds a vector from the first n elements of src, the extra
// values, and src[from:].
func (h *Host) vecWith(src object.Vec, n int, extra []val.Val, from int) (val.Val, error) {
	out := make(object.Vec, 0, n+len(extra)+len(src)-from)
	out = append(out, src[:n]...)
	out = append(out, extra...)
	out = append(out, src[from:]...)
	if err := h.copyCharge(len(out), 8); err != nil {
		return 0, err
	}
	return h.add(out)
}

// VecPushBack returns v with x appended.
func (h *Host) VecPushBack(v, x val.Val) (val.Val, error) {
	if err := h.validate(x); err != nil {
		return 0, err
	}
	vec, err := get[object.Vec](h, v)
	if err != nil {
		return 0, err
	}
	return h.vecWith(vec, len(vec), []val.Val{x}, len(vec))
}

// VecPopBack returns v without its last element.
func (h *Host) VecPopBack(v val.Val) (val.Val, error) {
	vec, err := get[object.Vec](h, v)
	if err != nil {
		return 0, err
	}
	if len(vec) == 0 {
		return 0, errors.New(errors.TypeObject, errors.CodeIndexBounds).
			Detail("pop from empty vec").
			Build()
	}
	return h.vecWith(vec, len(vec)-1, nil, len(vec))
}

// VecPut returns v with element i replaced by x.
func (h *Host) VecPut(v val.Val, i uint32, x val.Val) (val.Val, error) {
	if err := h.validate(x); err != nil {
		return 0, err
	}
	vec, err := get[object.Vec](h, v)
	if err != nil {
		return 0, err
	}
	if uint64(i) >= uint64(len(vec)) {
		return 0, indexError(uint64(i), uint64(len(vec)))
	}
	return h.vecWith(vec, int(i), []val.Val{x}, int(i)+1)
}

// VecDel returns v without element i.
func (h *Host) VecDel(v val.Val, i uint32) (val.Val, error) {
	vec, err := get[object.Vec](h, v)
	if err != nil {
		return 0, err
	}
	if uint64(i) >= uint64(len(vec)) {
		return 0, indexError(uint64(i), uint64(len(vec)))
	}
	return h.vecWith(vec, int(i), nil, int(i)+1)
}

// VecInsert returns v with x inserted before position i. i may equal the
// length.
func (h *Host) VecInsert(v val.Val, i uint32, x val.Val) (val.Val, error) {
	if err := h.validate(x); err != nil {
		return 0, err
	}
	vec, err := get[object.Vec](h, v)
	if err != nil {
		return 0, err
	}
	if uint64(i) > uint64(len(vec)) {
		return 0, indexError(uint64(i), uint64(len(vec)))
	}
	return h.vecWith(vec, int(i), []val.Val{x}, int(i))
}

// VecAppend returns the concatenation of a and b.
func (h *Host) VecAppend(a, b val.Val) (val.Val, error) {
	x, err := get[object.Vec](h, a)
	if err != nil {
		return 0, err
	}
	y, err := get[object.Vec](h, b)
	if err != nil {
		return 0, err
	}
	return h.vecWith(x, len(x), y, len(x))
}

// VecSlice returns elements [start, end).
func (h *Host) VecSlice(v val.Val, start, end uint32) (val.Val, error) {
	vec, err := get[object.Vec](h, v)
	if err != nil {
		return 0, err
	}
	if start > end || uint64(end) > uint64(len(vec)) {
		return 0, rangeError(uint64(start), uint64(end), uint64(len(vec)))
	}
	return h.vecWith(vec[start:end], int(end-start), nil, int(end-start))
}

// MapNew returns an empty map.
func (h *Host) MapNew() (val.Val, error) {
	return h.add(object.Map{})
}

// MapFromEntries builds a map from entries whose keys must already be
// strictly increasing.
func (h *Host) MapFromEntries(entries []object.MapEntry) (val.Val, error) {
	for _, e := range entries {
		if err := h.validate(e.Key); err != nil {
			return 0, err
		}
		if err := h.validate(e.Val); err != nil {
			return 0, err
		}
	}
	m := append(object.Map{}, entries...)
	if err := h.checkSortedKeys(m); err != nil {
		return 0, err
	}
	if err := h.copyCharge(len(m), 16); err != nil {
		return 0, err
	}
	return h.add(m)
}

// mapFind binary searches m for k under the metered comparator.
func (h *Host) mapFind(m object.Map, k val.Val) (int, bool, error) {
	lo, hi := 0, len(m)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		c, err := h.Compare(m[mid].Key, k)
		if err != nil {
			return 0, false, err
		}
		switch {
		case c == 0:
			return mid, true, nil
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false, nil
}

func (h *Host) mapWith(src object.Map, n int, extra []object.MapEntry, from int) (val.Val, error) {
	out := make(object.Map, 0, n+len(extra)+len(src)-from)
	out = append(out, src[:n]...)
	out = append(out, extra...)
	out = append(out, src[from:]...)
	if err := h.copyCharge(len(out), 16); err != nil {
		return 0, err
	}
	return h.add(out)
}

// MapPut returns m with k bound to v.
func (h *Host) MapPut(mv, k, v val.Val) (val.Val, error) {
	if err := h.validate(k); err != nil {
		return 0, err
	}
	if err := h.validate(v); err != nil {
		return 0, err
	}
	m, err := get[object.Map](h, mv)
	if err != nil {
		return 0, err
	}
	i, found, err := h.mapFind(m, k)
	if err != nil {
		return 0, err
	}
	entry := []object.MapEntry{{Key: k, Val: v}}
	if found {
		return h.mapWith(m, i, entry, i+1)
	}
	return h.mapWith(m, i, entry, i)
}

func missingKey(k val.Val) error {
	return errors.New(errors.TypeObject, errors.CodeMissingValue).
		Detail("key %s not in map", k).
		Build()
}

// MapGet returns the value bound to k.
func (h *Host) MapGet(mv, k val.Val) (val.Val, error) {
	m, err := get[object.Map](h, mv)
	if err != nil {
		return 0, err
	}
	i, found, err := h.mapFind(m, k)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, missingKey(k)
	}
	return m[i].Val, nil
}

// MapDel returns m without k.
func (h *Host) MapDel(mv, k val.Val) (val.Val, error) {
	m, err := get[object.Map](h, mv)
	if err != nil {
		return 0, err
	}
	i, found, err := h.mapFind(m, k)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, missingKey(k)
	}
	return h.mapWith(m, i, nil, i+1)
}

// MapHas reports whether k is bound.
func (h *Host) MapHas(mv, k val.Val) (bool, error) {
	m, err := get[object.Map](h, mv)
	if err != nil {
		return false, err
	}
	_, found, err := h.mapFind(m, k)
	return found, err
}

// MapLen returns the number of entries.
func (h *Host) MapLen(mv val.Val) (uint32, error) {
	m, err := get[object.Map](h, mv)
	if err != nil {
		return 0, err
	}
	return uint32(len(m)), nil
}

// MapKeyByPos returns the i-th smallest key.
func (h *Host) MapKeyByPos(mv val.Val, i uint32) (val.Val, error) {
	m, err := get[object.Map](h, mv)
	if err != nil {
		return 0, err
	}
	if uint64(i) >= uint64(len(m)) {
		return 0, indexError(uint64(i), uint64(len(m)))
	}
	return m[i].Key, nil
}

// MapValByPos returns the value of the i-th smallest key.
func (h *Host) MapValByPos(mv val.Val, i uint32) (val.Val, error) {
	m, err := get[object.Map](h, mv)
	if err != nil {
		return 0, err
	}
	if uint64(i) >= uint64(len(m)) {
		return 0, indexError(uint64(i), uint64(len(m)))
	}
	return m[i].Val, nil
}

func (h *Host) mapProject(mv val.Val, key bool) (val.Val, error) {
	m, err := get[object.Map](h, mv)
	if err != nil {
		return 0, err
	}
	if err := h.copyCharge(len(m), 8); err != nil {
		return 0, err
	}
	out := make(object.Vec, len(m))
	for i, e := range m {
		if key {
			out[i] = e.Key
		} else {
			out[i] = e.Val
		}
	}
	return h.add(out)
}

// MapKeys returns the keys as a vector.
func (h *Host) MapKeys(mv val.Val) (val.Val, error) {
	return h.mapProject(mv, true)
}

// MapValues returns the values as a vector, in key order.
func (h *Host) MapValues(mv val.Val) (val.Val, error) {
	return h.mapProject(mv, false)
}

// BytesNew returns an empty byte string.
func (h *Host) BytesNew() (val.Val, error) {
	return h.add(object.Bytes{})
}

// BytesFromSlice copies b into a new byte string.
func (h *Host) BytesFromSlice(b []byte) (val.Val, error) {
	if err := h.copyCharge(len(b), 1); err != nil {
		return 0, err
	}
	return h.add(object.Bytes(clone(b)))
}

// BytesLen returns the length in bytes.
func (h *Host) BytesLen(v val.Val) (uint32, error) {
	b, err := get[object.Bytes](h, v)
	if err != nil {
		return 0, err
	}
	return uint32(len(b)), nil
}

// BytesGet returns byte i.
func (h *Host) BytesGet(v val.Val, i uint32) (byte, error) {
	b, err := get[object.Bytes](h, v)
	if err != nil {
		return 0, err
	}
	if uint64(i) >= uint64(len(b)) {
		return 0, indexError(uint64(i), uint64(len(b)))
	}
	return b[i], nil
}

// BytesPush returns v with c appended.
func (h *Host) BytesPush(v val.Val, c byte) (val.Val, error) {
	b, err := get[object.Bytes](h, v)
	if err != nil {
		return 0, err
	}
	if err := h.copyCharge(len(b)+1, 1); err != nil {
		return 0, err
	}
	out := make(object.Bytes, len(b), len(b)+1)
	copy(out, b)
	return h.add(append(out, c))
}

// BytesAppend returns the concatenation of a and b.
func (h *Host) BytesAppend(a, b val.Val) (val.Val, error) {
	x, err := get[object.Bytes](h, a)
	if err != nil {
		return 0, err
	}
	y, err := get[object.Bytes](h, b)
	if err != nil {
		return 0, err
	}
	if err := h.copyCharge(len(x)+len(y), 1); err != nil {
		return 0, err
	}
	out := make(object.Bytes, 0, len(x)+len(y))
	return h.add(append(append(out, x...), y...))
}

// BytesSlice returns bytes [start, end).
func (h *Host) BytesSlice(v val.Val, start, end uint32) (val.Val, error) {
	b, err := get[object.Bytes](h, v)
	if err != nil {
		return 0, err
	}
	if start > end || uint64(end) > uint64(len(b)) {
		return 0, rangeError(uint64(start), uint64(end), uint64(len(b)))
	}
	return h.BytesFromSlice(b[start:end])
}

// StringFromSlice copies s into a new string object.
func (h *Host) StringFromSlice(s []byte) (val.Val, error) {
	if err := h.copyCharge(len(s), 1); err != nil {
		return 0, err
	}
	return h.add(object.String(clone(s)))
}

// StringLen returns the length in bytes.
func (h *Host) StringLen(v val.Val) (uint32, error) {
	s, err := get[object.String](h, v)
	if err != nil {
		return 0, err
	}
	return uint32(len(s)), nil
}

// SymbolFromBytes validates s and returns it inline when it is short enough,
// otherwise as a symbol object.
func (h *Host) SymbolFromBytes(s []byte) (val.Val, error) {
	if err := scval.CheckSymbol(s); err != nil {
		return 0, err
	}
	if len(s) <= val.MaxSmallSymbolLen {
		return val.FromSmallSymbol(string(s))
	}
	if err := h.copyCharge(len(s), 1); err != nil {
		return 0, err
	}
	return h.add(object.Symbol(clone(s)))
}

// SymbolLen returns the length of a symbol in either form.
func (h *Host) SymbolLen(v val.Val) (uint32, error) {
	if s, ok := v.SmallSymbol(); ok {
		return uint32(len(s)), nil
	}
	s, err := get[object.Symbol](h, v)
	if err != nil {
		return 0, err
	}
	return uint32(len(s)), nil
}

// U64FromWord returns u inline when it fits, otherwise as an object.
func (h *Host) U64FromWord(u uint64) (val.Val, error) {
	return h.smallOrObjectU(val.TagU64Small, u, object.U64(u))
}

// I64FromWord returns i inline when it fits, otherwise as an object.
func (h *Host) I64FromWord(i int64) (val.Val, error) {
	if v, ok := val.FromSmallI(val.TagI64Small, i); ok {
		return v, nil
	}
	return h.add(object.I64(i))
}

func (h *Host) expectType(v val.Val, want scval.Type) error {
	if err := checkVal(v); err != nil {
		return err
	}
	if got, _ := v.Type(); got != want {
		return errors.UnexpectedType(errors.TypeValue, want.String(), v.Tag().String())
	}
	return nil
}

// U64Word returns the value of a U64 in either form.
func (h *Host) U64Word(v val.Val) (uint64, error) {
	if err := h.expectType(v, scval.TypeU64); err != nil {
		return 0, err
	}
	return h.wordOf(v)
}

// I64Word returns the value of an I64 in either form.
func (h *Host) I64Word(v val.Val) (int64, error) {
	if err := h.expectType(v, scval.TypeI64); err != nil {
		return 0, err
	}
	w, err := h.wordOf(v)
	return int64(w), err
}

// U128FromParts builds a U128, inline when it fits.
func (h *Host) U128FromParts(hi, lo uint64) (val.Val, error) {
	if hi == 0 {
		if v, ok := val.FromSmallU(val.TagU128Small, lo); ok {
			return v, nil
		}
	}
	return h.add(object.NewU128(hi, lo))
}

// I128FromParts builds an I128, inline when it fits.
func (h *Host) I128FromParts(hi int64, lo uint64) (val.Val, error) {
	if hi == int64(lo)>>63 {
		if v, ok := val.FromSmallI(val.TagI128Small, int64(lo)); ok {
			return v, nil
		}
	}
	return h.add(object.NewI128(hi, lo))
}

// U256FromParts builds a U256, inline when it fits.
func (h *Host) U256FromParts(hihi, hilo, lohi, lolo uint64) (val.Val, error) {
	if hihi == 0 && hilo == 0 && lohi == 0 {
		if v, ok := val.FromSmallU(val.TagU256Small, lolo); ok {
			return v, nil
		}
	}
	return h.add(object.NewU256(hihi, hilo, lohi, lolo))
}

// I256FromParts builds an I256, inline when it fits.
func (h *Host) I256FromParts(hihi int64, hilo, lohi, lolo uint64) (val.Val, error) {
	ext := uint64(int64(lolo) >> 63)
	if hihi == int64(ext) && hilo == ext && lohi == ext {
		if v, ok := val.FromSmallI(val.TagI256Small, int64(lolo)); ok {
			return v, nil
		}
	}
	return h.add(object.NewI256(hihi, hilo, lohi, lolo))
}

// U128Parts splits a U128 in either form.
func (h *Host) U128Parts(v val.Val) (hi, lo uint64, err error) {
	if err := h.expectType(v, scval.TypeU128); err != nil {
		return 0, 0, err
	}
	x, err := h.bigOf(v)
	if err != nil {
		return 0, 0, err
	}
	return x[1], x[0], nil
}

// I128Parts splits an I128 in either form.
func (h *Host) I128Parts(v val.Val) (hi int64, lo uint64, err error) {
	if err := h.expectType(v, scval.TypeI128); err != nil {
		return 0, 0, err
	}
	x, err := h.bigOf(v)
	if err != nil {
		return 0, 0, err
	}
	return int64(x[1]), x[0], nil
}

// U256Parts splits a U256 in either form, most significant first.
func (h *Host) U256Parts(v val.Val) (hihi, hilo, lohi, lolo uint64, err error) {
	if err := h.expectType(v, scval.TypeU256); err != nil {
		return 0, 0, 0, 0, err
	}
	x, err := h.bigOf(v)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return x[3], x[2], x[1], x[0], nil
}

// I256Parts splits an I256 in either form, most significant first.
func (h *Host) I256Parts(v val.Val) (hihi int64, hilo, lohi, lolo uint64, err error) {
	if err := h.expectType(v, scval.TypeI256); err != nil {
		return 0, 0, 0, 0, err
	}
	x, err := h.bigOf(v)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return int64(x[3]), x[2], x[1], x[0], nil
}
