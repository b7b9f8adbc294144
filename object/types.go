package object

import (
	"github.com/holiman/uint256"

	"github.com/wippyai/contract-host/scval"
	"github.com/wippyai/contract-host/val"
)

// Object is a host-side value reachable from a Val handle. Objects never
// change after they are added to a Store.
type Object interface {
	// Tag is the object tag a handle to this object carries.
	Tag() val.Tag
	// Size approximates the object's footprint in bytes for memory charging.
	Size() uint64

	sealed()
}

type (
	U64       uint64
	I64       int64
	Timepoint uint64
	Duration  uint64

	// U128 and U256 hold unsigned values in a 256-bit word.
	U128 uint256.Int
	U256 uint256.Int
	// I128 and I256 hold signed values sign-extended to 256 bits.
	I128 uint256.Int
	I256 uint256.Int

	Bytes  []byte
	String []byte
	Symbol []byte

	Vec []val.Val
	Map []MapEntry

	Address scval.ScAddress
)

// MapEntry is one key/value pair of a Map. Map entries are strictly sorted by
// key under the host comparator.
type MapEntry struct {
	Key val.Val
	Val val.Val
}

const (
	valSize     = 8
	entrySize   = 2 * valSize
	int128Size  = 16
	int256Size  = 32
	addressSize = 4 + 32
)

func (U64) Tag() val.Tag       { return val.TagU64Object }
func (I64) Tag() val.Tag       { return val.TagI64Object }
func (Timepoint) Tag() val.Tag { return val.TagTimepointObject }
func (Duration) Tag() val.Tag  { return val.TagDurationObject }
func (U128) Tag() val.Tag      { return val.TagU128Object }
func (I128) Tag() val.Tag      { return val.TagI128Object }
func (U256) Tag() val.Tag      { return val.TagU256Object }
func (I256) Tag() val.Tag      { return val.TagI256Object }
func (Bytes) Tag() val.Tag     { return val.TagBytesObject }
func (String) Tag() val.Tag    { return val.TagStringObject }
func (Symbol) Tag() val.Tag    { return val.TagSymbolObject }
func (Vec) Tag() val.Tag       { return val.TagVecObject }
func (Map) Tag() val.Tag       { return val.TagMapObject }
func (Address) Tag() val.Tag   { return val.TagAddressObject }

func (U64) Size() uint64       { return valSize }
func (I64) Size() uint64       { return valSize }
func (Timepoint) Size() uint64 { return valSize }
func (Duration) Size() uint64  { return valSize }
func (U128) Size() uint64      { return int128Size }
func (I128) Size() uint64      { return int128Size }
func (U256) Size() uint64      { return int256Size }
func (I256) Size() uint64      { return int256Size }
func (o Bytes) Size() uint64   { return uint64(len(o)) }
func (o String) Size() uint64  { return uint64(len(o)) }
func (o Symbol) Size() uint64  { return uint64(len(o)) }
func (o Vec) Size() uint64     { return uint64(len(o)) * valSize }
func (o Map) Size() uint64     { return uint64(len(o)) * entrySize }
func (Address) Size() uint64   { return addressSize }

func (U64) sealed()       {}
func (I64) sealed()       {}
func (Timepoint) sealed() {}
func (Duration) sealed()  {}
func (U128) sealed()      {}
func (I128) sealed()      {}
func (U256) sealed()      {}
func (I256) sealed()      {}
func (Bytes) sealed()     {}
func (String) sealed()    {}
func (Symbol) sealed()    {}
func (Vec) sealed()       {}
func (Map) sealed()       {}
func (Address) sealed()   {}

// NewU128 builds a U128 from its parts.
func NewU128(hi, lo uint64) U128 {
	return U128{lo, hi, 0, 0}
}

// Parts splits x into its high and low words.
func (x U128) Parts() (hi, lo uint64) {
	return x[1], x[0]
}

// NewI128 builds an I128 from its parts.
func NewI128(hi int64, lo uint64) I128 {
	ext := signWord(hi)
	return I128{lo, uint64(hi), ext, ext}
}

// Parts splits x into its signed high and low words.
func (x I128) Parts() (hi int64, lo uint64) {
	return int64(x[1]), x[0]
}

// NewU256 builds a U256 from its parts, most significant first.
func NewU256(hihi, hilo, lohi, lolo uint64) U256 {
	return U256{lolo, lohi, hilo, hihi}
}

// Parts splits x into four words, most significant first.
func (x U256) Parts() (hihi, hilo, lohi, lolo uint64) {
	return x[3], x[2], x[1], x[0]
}

// NewI256 builds an I256 from its parts, most significant first.
func NewI256(hihi int64, hilo, lohi, lolo uint64) I256 {
	return I256{lolo, lohi, hilo, uint64(hihi)}
}

// Parts splits x into four words, most significant first.
func (x I256) Parts() (hihi int64, hilo, lohi, lolo uint64) {
	return int64(x[3]), x[2], x[1], x[0]
}

// Int returns x as a uint256.Int.
func (x U128) Int() *uint256.Int { i := uint256.Int(x); return &i }
func (x I128) Int() *uint256.Int { i := uint256.Int(x); return &i }
func (x U256) Int() *uint256.Int { i := uint256.Int(x); return &i }
func (x I256) Int() *uint256.Int { i := uint256.Int(x); return &i }

func signWord(hi int64) uint64 {
	if hi < 0 {
		return ^uint64(0)
	}
	return 0
}

// CompareUnsigned orders two unsigned big integers.
func CompareUnsigned(a, b *uint256.Int) int {
	return a.Cmp(b)
}

// CompareSigned orders two two's-complement big integers.
func CompareSigned(a, b *uint256.Int) int {
	switch {
	case a.Slt(b):
		return -1
	case a.Sgt(b):
		return 1
	}
	return 0
}
