package scval

import (
	"fmt"

	"github.com/wippyai/contract-host/errors"
)

// Type is the discriminant of an ScVal. Its numeric order is the primary
// key of the value ordering.
type Type int32

const (
	TypeBool Type = iota
	TypeVoid
	TypeError
	TypeU32
	TypeI32
	TypeU64
	TypeI64
	TypeTimepoint
	TypeDuration
	TypeU128
	TypeI128
	TypeU256
	TypeI256
	TypeBytes
	TypeString
	TypeSymbol
	TypeVec
	TypeMap
	TypeAddress
	TypeContractInstance
	TypeLedgerKeyContractInstance
	TypeLedgerKeyNonce
)

// MaxType is the largest defined Type.
const MaxType = TypeLedgerKeyNonce

var typeNames = [...]string{
	TypeBool:                      "Bool",
	TypeVoid:                      "Void",
	TypeError:                     "Error",
	TypeU32:                       "U32",
	TypeI32:                       "I32",
	TypeU64:                       "U64",
	TypeI64:                       "I64",
	TypeTimepoint:                 "Timepoint",
	TypeDuration:                  "Duration",
	TypeU128:                      "U128",
	TypeI128:                      "I128",
	TypeU256:                      "U256",
	TypeI256:                      "I256",
	TypeBytes:                     "Bytes",
	TypeString:                    "String",
	TypeSymbol:                    "Symbol",
	TypeVec:                       "Vec",
	TypeMap:                       "Map",
	TypeAddress:                   "Address",
	TypeContractInstance:          "ContractInstance",
	TypeLedgerKeyContractInstance: "LedgerKeyContractInstance",
	TypeLedgerKeyNonce:            "LedgerKeyNonce",
}

func (t Type) String() string {
	if t >= 0 && t <= MaxType {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int32(t))
}

// ScError is the wire form of a status.
type ScError struct {
	Type errors.Type
	Code errors.Code
}

// UInt128Parts is a 128-bit unsigned integer split into two words.
type UInt128Parts struct {
	Hi uint64
	Lo uint64
}

// Int128Parts is a 128-bit signed integer; Hi carries the sign.
type Int128Parts struct {
	Hi int64
	Lo uint64
}

// UInt256Parts is a 256-bit unsigned integer, most significant word first.
type UInt256Parts struct {
	HiHi uint64
	HiLo uint64
	LoHi uint64
	LoLo uint64
}

// Int256Parts is a 256-bit signed integer; HiHi carries the sign.
type Int256Parts struct {
	HiHi int64
	HiLo uint64
	LoHi uint64
	LoLo uint64
}

// AddressKind distinguishes account and contract addresses.
type AddressKind uint32

const (
	AddressAccount AddressKind = iota
	AddressContract
)

// ScAddress identifies an account or a contract.
type ScAddress struct {
	Kind AddressKind
	ID   [32]byte
}

// ScVec is the element list of a vector.
type ScVec []ScVal

// ScMapEntry is one key/value pair of a map.
type ScMapEntry struct {
	Key ScVal
	Val ScVal
}

// ScMap is the entry list of a map, sorted by key.
type ScMap []ScMapEntry

// ScVal is the external value tree. Only the field selected by Type is
// meaningful. Vec and Map are optional: nil is the absent form, which the
// wire format can express but the host refuses.
type ScVal struct {
	Vec     *ScVec
	Map     *ScMap
	Bytes   []byte // Bytes, String
	Sym     string
	U128    UInt128Parts
	I128    Int128Parts
	U256    UInt256Parts
	I256    Int256Parts
	U64     uint64 // U64, Timepoint, Duration
	I64     int64  // I64, LedgerKeyNonce
	Address ScAddress
	Hash    [32]byte // ContractInstance executable
	Error   ScError
	U32     uint32
	I32     int32
	Type    Type
	B       bool
}

func Bool(b bool) ScVal            { return ScVal{Type: TypeBool, B: b} }
func Void() ScVal                  { return ScVal{Type: TypeVoid} }
func U32(v uint32) ScVal           { return ScVal{Type: TypeU32, U32: v} }
func I32(v int32) ScVal            { return ScVal{Type: TypeI32, I32: v} }
func U64(v uint64) ScVal           { return ScVal{Type: TypeU64, U64: v} }
func I64(v int64) ScVal            { return ScVal{Type: TypeI64, I64: v} }
func Timepoint(v uint64) ScVal     { return ScVal{Type: TypeTimepoint, U64: v} }
func Duration(v uint64) ScVal      { return ScVal{Type: TypeDuration, U64: v} }
func U128(p UInt128Parts) ScVal    { return ScVal{Type: TypeU128, U128: p} }
func I128(p Int128Parts) ScVal     { return ScVal{Type: TypeI128, I128: p} }
func U256(p UInt256Parts) ScVal    { return ScVal{Type: TypeU256, U256: p} }
func I256(p Int256Parts) ScVal     { return ScVal{Type: TypeI256, I256: p} }
func Symbol(s string) ScVal        { return ScVal{Type: TypeSymbol, Sym: s} }
func Address(a ScAddress) ScVal    { return ScVal{Type: TypeAddress, Address: a} }
func LedgerKeyNonce(n int64) ScVal { return ScVal{Type: TypeLedgerKeyNonce, I64: n} }

// Error builds a status value.
func Error(t errors.Type, c errors.Code) ScVal {
	return ScVal{Type: TypeError, Error: ScError{Type: t, Code: c}}
}

// Bytes builds a byte-string value. The slice is not copied.
func Bytes(b []byte) ScVal {
	if b == nil {
		b = []byte{}
	}
	return ScVal{Type: TypeBytes, Bytes: b}
}

// String builds a string value.
func String(s string) ScVal {
	return ScVal{Type: TypeString, Bytes: []byte(s)}
}

// Vec builds a present vector.
func Vec(elems ...ScVal) ScVal {
	v := ScVec(elems)
	if v == nil {
		v = ScVec{}
	}
	return ScVal{Type: TypeVec, Vec: &v}
}

// Map builds a present map from entries in the given order.
func Map(entries ...ScMapEntry) ScVal {
	m := ScMap(entries)
	if m == nil {
		m = ScMap{}
	}
	return ScVal{Type: TypeMap, Map: &m}
}

// Entry builds a map entry.
func Entry(k, v ScVal) ScMapEntry {
	return ScMapEntry{Key: k, Val: v}
}

func (v ScVal) String() string {
	switch v.Type {
	case TypeBool:
		return fmt.Sprintf("Bool(%t)", v.B)
	case TypeVoid:
		return "Void"
	case TypeError:
		return fmt.Sprintf("Error(%s, %d)", v.Error.Type, uint32(v.Error.Code))
	case TypeU32:
		return fmt.Sprintf("U32(%d)", v.U32)
	case TypeI32:
		return fmt.Sprintf("I32(%d)", v.I32)
	case TypeU64, TypeTimepoint, TypeDuration:
		return fmt.Sprintf("%s(%d)", v.Type, v.U64)
	case TypeI64, TypeLedgerKeyNonce:
		return fmt.Sprintf("%s(%d)", v.Type, v.I64)
	case TypeU128:
		return fmt.Sprintf("U128(%#x:%#x)", v.U128.Hi, v.U128.Lo)
	case TypeI128:
		return fmt.Sprintf("I128(%d:%#x)", v.I128.Hi, v.I128.Lo)
	case TypeU256:
		return fmt.Sprintf("U256(%#x:%#x:%#x:%#x)", v.U256.HiHi, v.U256.HiLo, v.U256.LoHi, v.U256.LoLo)
	case TypeI256:
		return fmt.Sprintf("I256(%d:%#x:%#x:%#x)", v.I256.HiHi, v.I256.HiLo, v.I256.LoHi, v.I256.LoLo)
	case TypeBytes:
		return fmt.Sprintf("Bytes(%x)", v.Bytes)
	case TypeString:
		return fmt.Sprintf("String(%q)", v.Bytes)
	case TypeSymbol:
		return fmt.Sprintf("Symbol(%s)", v.Sym)
	case TypeVec:
		if v.Vec == nil {
			return "Vec(None)"
		}
		return fmt.Sprintf("Vec%v", []ScVal(*v.Vec))
	case TypeMap:
		if v.Map == nil {
			return "Map(None)"
		}
		return fmt.Sprintf("Map%v", []ScMapEntry(*v.Map))
	case TypeAddress:
		return fmt.Sprintf("Address(%d:%x)", v.Address.Kind, v.Address.ID[:4])
	case TypeContractInstance:
		return fmt.Sprintf("ContractInstance(%x)", v.Hash[:4])
	case TypeLedgerKeyContractInstance:
		return "LedgerKeyContractInstance"
	default:
		return v.Type.String()
	}
}
