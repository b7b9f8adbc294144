package scval

import (
	"encoding/binary"
	"slices"

	"github.com/wippyai/contract-host/errors"
)

// Unstructured turns an arbitrary byte string into a stream of choices.
// Once the input is exhausted every read yields zero, so any input drives
// the generator to a finite value.
type Unstructured struct {
	data []byte
}

// NewUnstructured wraps data.
func NewUnstructured(data []byte) *Unstructured {
	return &Unstructured{data: data}
}

// Len returns the number of unread bytes.
func (u *Unstructured) Len() int {
	return len(u.data)
}

// Byte consumes one byte.
func (u *Unstructured) Byte() byte {
	if len(u.data) == 0 {
		return 0
	}
	b := u.data[0]
	u.data = u.data[1:]
	return b
}

// Bool consumes one byte and returns its low bit.
func (u *Unstructured) Bool() bool {
	return u.Byte()&1 == 1
}

// Uint32 consumes up to four bytes.
func (u *Unstructured) Uint32() uint32 {
	var buf [4]byte
	n := copy(buf[:], u.data)
	u.data = u.data[n:]
	return binary.LittleEndian.Uint32(buf[:])
}

// Uint64 consumes up to eight bytes.
func (u *Unstructured) Uint64() uint64 {
	var buf [8]byte
	n := copy(buf[:], u.data)
	u.data = u.data[n:]
	return binary.LittleEndian.Uint64(buf[:])
}

// Intn returns a value in [0, n). n must be positive.
func (u *Unstructured) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	if n <= 256 {
		return int(u.Byte()) % n
	}
	return int(u.Uint32() % uint32(n))
}

// Bytes consumes up to n bytes.
func (u *Unstructured) Bytes(n int) []byte {
	n = min(n, len(u.data))
	out := make([]byte, n)
	copy(out, u.data)
	u.data = u.data[n:]
	return out
}

// Generator bounds for Arbitrary.
const (
	arbitraryMaxDepth = 4
	arbitraryMaxElems = 6
	arbitraryMaxBytes = 64
)

// leafTypes are the types Arbitrary may produce at any depth.
var leafTypes = []Type{
	TypeBool, TypeVoid, TypeError, TypeU32, TypeI32, TypeU64, TypeI64,
	TypeTimepoint, TypeDuration, TypeU128, TypeI128, TypeU256, TypeI256,
	TypeBytes, TypeString, TypeSymbol, TypeAddress,
}

// Arbitrary builds a value that the host accepts: symbols use the symbol
// alphabet, vectors and maps are always present, map keys are strictly
// sorted, and error values carry a representable status.
func Arbitrary(u *Unstructured) ScVal {
	return arbitrary(u, 1)
}

func arbitrary(u *Unstructured, depth int) ScVal {
	n := len(leafTypes)
	if depth < arbitraryMaxDepth {
		n += 2
	}
	pick := u.Intn(n)
	if pick >= len(leafTypes) {
		if pick == len(leafTypes) {
			return arbitraryVec(u, depth)
		}
		return arbitraryMap(u, depth)
	}

	switch ty := leafTypes[pick]; ty {
	case TypeBool:
		return Bool(u.Bool())
	case TypeVoid:
		return Void()
	case TypeError:
		t := errors.Type(u.Intn(int(errors.MaxType) + 1))
		c := errors.Code(u.Intn(int(errors.MaxCode) + 1))
		if t == errors.TypeContract {
			c = errors.Code(u.Uint32())
		}
		return Error(t, c)
	case TypeU32:
		return U32(u.Uint32())
	case TypeI32:
		return I32(int32(u.Uint32()))
	case TypeU64:
		return U64(arbitraryWord(u))
	case TypeI64:
		return I64(int64(arbitraryWord(u)))
	case TypeTimepoint:
		return Timepoint(arbitraryWord(u))
	case TypeDuration:
		return Duration(arbitraryWord(u))
	case TypeU128:
		return U128(UInt128Parts{Hi: arbitraryWord(u), Lo: arbitraryWord(u)})
	case TypeI128:
		return I128(Int128Parts{Hi: int64(arbitraryWord(u)), Lo: arbitraryWord(u)})
	case TypeU256:
		return U256(UInt256Parts{
			HiHi: arbitraryWord(u), HiLo: arbitraryWord(u),
			LoHi: arbitraryWord(u), LoLo: arbitraryWord(u),
		})
	case TypeI256:
		return I256(Int256Parts{
			HiHi: int64(arbitraryWord(u)), HiLo: arbitraryWord(u),
			LoHi: arbitraryWord(u), LoLo: arbitraryWord(u),
		})
	case TypeBytes:
		return Bytes(u.Bytes(u.Intn(arbitraryMaxBytes + 1)))
	case TypeString:
		return String(string(u.Bytes(u.Intn(arbitraryMaxBytes + 1))))
	case TypeSymbol:
		return Symbol(arbitrarySymbol(u))
	default:
		var a ScAddress
		if u.Bool() {
			a.Kind = AddressContract
		}
		copy(a.ID[:], u.Bytes(len(a.ID)))
		return Address(a)
	}
}

// arbitraryWord favors values around the small/object boundaries so both
// representations get exercised.
func arbitraryWord(u *Unstructured) uint64 {
	switch u.Intn(4) {
	case 0:
		return uint64(u.Byte())
	case 1:
		return 1<<55 + uint64(u.Byte()) - 128
	case 2:
		return ^uint64(0) - uint64(u.Byte())
	default:
		return u.Uint64()
	}
}

func arbitrarySymbol(u *Unstructured) string {
	// short symbols are small Vals, longer ones become objects
	var n int
	if u.Bool() {
		n = u.Intn(10)
	} else {
		n = u.Intn(SymbolLimit + 1)
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = SymbolChars[u.Intn(len(SymbolChars))]
	}
	return string(b)
}

func arbitraryVec(u *Unstructured, depth int) ScVal {
	elems := make([]ScVal, u.Intn(arbitraryMaxElems+1))
	for i := range elems {
		elems[i] = arbitrary(u, depth+1)
	}
	return Vec(elems...)
}

func arbitraryMap(u *Unstructured, depth int) ScVal {
	entries := make([]ScMapEntry, u.Intn(arbitraryMaxElems+1))
	for i := range entries {
		entries[i] = Entry(arbitrary(u, depth+1), arbitrary(u, depth+1))
	}
	return Map(SortEntries(entries)...)
}

// SortEntries sorts entries by key and drops later duplicates, producing a
// valid map body.
func SortEntries(entries []ScMapEntry) []ScMapEntry {
	slices.SortStableFunc(entries, func(a, b ScMapEntry) int {
		return Compare(a.Key, b.Key)
	})
	return slices.CompactFunc(entries, func(a, b ScMapEntry) bool {
		return Equal(a.Key, b.Key)
	})
}
