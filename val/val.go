// Package val implements the 64-bit tagged value exchanged between host and guest.
//
// The low 8 bits of a Val are its Tag. The remaining 56 bits are the body;
// some tags split the body into a 24-bit minor (bits 8-31) and a 32-bit
// major (bits 32-63). Small tags hold their value inline. Object tags hold a
// handle into the host's object store: the major is the arena index and the
// minor is the store generation, or zero for a handle relative to a guest
// frame.
package val

import (
	"fmt"

	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/scval"
)

// Tag discriminates a Val.
type Tag uint8

const (
	TagFalse Tag = iota
	TagTrue
	TagVoid
	TagError
	TagU32
	TagI32
	TagU64Small
	TagI64Small
	TagTimepointSmall
	TagDurationSmall
	TagU128Small
	TagI128Small
	TagU256Small
	TagI256Small
	TagSymbolSmall
)

const (
	TagU64Object Tag = iota + 64
	TagI64Object
	TagTimepointObject
	TagDurationObject
	TagU128Object
	TagI128Object
	TagU256Object
	TagI256Object
	TagBytesObject
	TagStringObject
	TagSymbolObject
	TagVecObject
	TagMapObject
	TagAddressObject
)

// TagBad is never produced by the host.
const TagBad Tag = 0x7f

var tagNames = map[Tag]string{
	TagFalse:           "False",
	TagTrue:            "True",
	TagVoid:            "Void",
	TagError:           "Error",
	TagU32:             "U32",
	TagI32:             "I32",
	TagU64Small:        "U64Small",
	TagI64Small:        "I64Small",
	TagTimepointSmall:  "TimepointSmall",
	TagDurationSmall:   "DurationSmall",
	TagU128Small:       "U128Small",
	TagI128Small:       "I128Small",
	TagU256Small:       "U256Small",
	TagI256Small:       "I256Small",
	TagSymbolSmall:     "SymbolSmall",
	TagU64Object:       "U64Object",
	TagI64Object:       "I64Object",
	TagTimepointObject: "TimepointObject",
	TagDurationObject:  "DurationObject",
	TagU128Object:      "U128Object",
	TagI128Object:      "I128Object",
	TagU256Object:      "U256Object",
	TagI256Object:      "I256Object",
	TagBytesObject:     "BytesObject",
	TagStringObject:    "StringObject",
	TagSymbolObject:    "SymbolObject",
	TagVecObject:       "VecObject",
	TagMapObject:       "MapObject",
	TagAddressObject:   "AddressObject",
	TagBad:             "Bad",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// IsObject reports whether t refers to a host object.
func (t Tag) IsObject() bool {
	return t >= TagU64Object && t <= TagAddressObject
}

// Type maps a tag to the wire type it represents, so small and object forms
// of the same value share a type.
func (t Tag) Type() (scval.Type, bool) {
	switch t {
	case TagFalse, TagTrue:
		return scval.TypeBool, true
	case TagVoid:
		return scval.TypeVoid, true
	case TagError:
		return scval.TypeError, true
	case TagU32:
		return scval.TypeU32, true
	case TagI32:
		return scval.TypeI32, true
	case TagU64Small, TagU64Object:
		return scval.TypeU64, true
	case TagI64Small, TagI64Object:
		return scval.TypeI64, true
	case TagTimepointSmall, TagTimepointObject:
		return scval.TypeTimepoint, true
	case TagDurationSmall, TagDurationObject:
		return scval.TypeDuration, true
	case TagU128Small, TagU128Object:
		return scval.TypeU128, true
	case TagI128Small, TagI128Object:
		return scval.TypeI128, true
	case TagU256Small, TagU256Object:
		return scval.TypeU256, true
	case TagI256Small, TagI256Object:
		return scval.TypeI256, true
	case TagSymbolSmall, TagSymbolObject:
		return scval.TypeSymbol, true
	case TagBytesObject:
		return scval.TypeBytes, true
	case TagStringObject:
		return scval.TypeString, true
	case TagVecObject:
		return scval.TypeVec, true
	case TagMapObject:
		return scval.TypeMap, true
	case TagAddressObject:
		return scval.TypeAddress, true
	}
	return 0, false
}

const (
	tagBits   = 8
	minorBits = 24
	bodyBits  = 56

	tagMask   = 1<<tagBits - 1
	minorMask = 1<<minorBits - 1
	bodyMask  = 1<<bodyBits - 1

	// MaxSmallU is the largest unsigned value held inline.
	MaxSmallU = 1<<bodyBits - 1
	// MinSmallI and MaxSmallI bound the signed values held inline.
	MinSmallI = -(1 << (bodyBits - 1))
	MaxSmallI = 1<<(bodyBits-1) - 1

	// MaxGeneration is the largest generation an absolute handle can carry.
	MaxGeneration = minorMask
)

// Val is a tagged 64-bit value. The zero Val is False.
type Val uint64

var (
	False = FromBody(TagFalse, 0)
	True  = FromBody(TagTrue, 0)
	Void  = FromBody(TagVoid, 0)
)

// FromBody packs a tag and a 56-bit body.
func FromBody(t Tag, body uint64) Val {
	return Val(body&bodyMask)<<tagBits | Val(t)
}

// FromMajorMinor packs a tag, a 32-bit major and a 24-bit minor.
func FromMajorMinor(t Tag, major, minor uint32) Val {
	return FromBody(t, uint64(major)<<minorBits|uint64(minor&minorMask))
}

func (v Val) Tag() Tag        { return Tag(v & tagMask) }
func (v Val) Body() uint64    { return uint64(v) >> tagBits }
func (v Val) Minor() uint32   { return uint32(v.Body() & minorMask) }
func (v Val) Major() uint32   { return uint32(v.Body() >> minorBits) }
func (v Val) Payload() uint64 { return uint64(v) }

// IsObject reports whether v is an object handle.
func (v Val) IsObject() bool {
	return v.Tag().IsObject()
}

// Type returns the wire type of v.
func (v Val) Type() (scval.Type, bool) {
	return v.Tag().Type()
}

// IsGood reports whether v is a well-formed Val: a known tag with a
// canonical body. It does not resolve object handles.
func (v Val) IsGood() bool {
	t := v.Tag()
	switch {
	case t == TagFalse || t == TagTrue || t == TagVoid:
		return v.Body() == 0
	case t == TagError:
		return errors.Valid(errors.Type(v.Minor()), errors.Code(v.Major()))
	case t == TagU32 || t == TagI32:
		return v.Minor() == 0
	case t >= TagU64Small && t <= TagI256Small:
		return true
	case t == TagSymbolSmall:
		return validSmallSymbolBody(v.Body())
	case t.IsObject():
		return true
	}
	return false
}

// FromBool returns True or False.
func FromBool(b bool) Val {
	if b {
		return True
	}
	return False
}

// Bool returns the boolean held by v.
func (v Val) Bool() (b bool, ok bool) {
	switch v {
	case True:
		return true, true
	case False:
		return false, true
	}
	return false, false
}

// FromU32 holds u inline.
func FromU32(u uint32) Val {
	return FromMajorMinor(TagU32, u, 0)
}

// U32 returns the uint32 held by v.
func (v Val) U32() (uint32, bool) {
	if v.Tag() != TagU32 {
		return 0, false
	}
	return v.Major(), true
}

// FromI32 holds i inline.
func FromI32(i int32) Val {
	return FromMajorMinor(TagI32, uint32(i), 0)
}

// I32 returns the int32 held by v.
func (v Val) I32() (int32, bool) {
	if v.Tag() != TagI32 {
		return 0, false
	}
	return int32(v.Major()), true
}

// FromSmallU packs an unsigned value under a small tag if it fits in the body.
func FromSmallU(t Tag, u uint64) (Val, bool) {
	if u > MaxSmallU {
		return 0, false
	}
	return FromBody(t, u), true
}

// FromSmallI packs a signed value under a small tag if it fits in the body.
func FromSmallI(t Tag, i int64) (Val, bool) {
	if i < MinSmallI || i > MaxSmallI {
		return 0, false
	}
	return FromBody(t, uint64(i)), true
}

// SmallU returns the body of v as an unsigned value.
func (v Val) SmallU() uint64 {
	return v.Body()
}

// SmallI returns the body of v sign-extended from 56 bits.
func (v Val) SmallI() int64 {
	return int64(v) >> tagBits
}

// FromStatus builds a status value.
func FromStatus(t errors.Type, c errors.Code) Val {
	return FromMajorMinor(TagError, uint32(c), uint32(t))
}

// FromError converts err to a status value. Errors without a status are
// host defects and become (Context, InternalError).
func FromError(err error) Val {
	return FromStatus(errors.Status(err))
}

// Status returns the error type and code held by v.
func (v Val) Status() (errors.Type, errors.Code, bool) {
	if v.Tag() != TagError {
		return 0, 0, false
	}
	return errors.Type(v.Minor()), errors.Code(v.Major()), true
}

// IsStatus reports whether v is a status value.
func (v Val) IsStatus() bool {
	return v.Tag() == TagError
}

// Err returns the structured error for a status value, or nil.
func (v Val) Err() *errors.Error {
	t, c, ok := v.Status()
	if !ok {
		return nil
	}
	return errors.FromStatus(t, c)
}

// FromHandle builds an object reference.
func FromHandle(t Tag, index, generation uint32) Val {
	return FromMajorMinor(t, index, generation)
}

// Handle returns the arena index and generation of an object reference.
func (v Val) Handle() (index, generation uint32, ok bool) {
	if !v.IsObject() {
		return 0, 0, false
	}
	return v.Major(), v.Minor(), true
}

func (v Val) String() string {
	t := v.Tag()
	switch {
	case t == TagFalse || t == TagTrue:
		return fmt.Sprintf("%t", t == TagTrue)
	case t == TagVoid:
		return "void"
	case t == TagError:
		et, ec, _ := v.Status()
		if et == errors.TypeContract {
			return fmt.Sprintf("Error(contract, #%d)", uint32(ec))
		}
		return fmt.Sprintf("Error(%s, %s)", et, ec)
	case t == TagU32:
		return fmt.Sprintf("%du32", v.Major())
	case t == TagI32:
		return fmt.Sprintf("%di32", int32(v.Major()))
	case t == TagSymbolSmall:
		s, _ := v.SmallSymbol()
		return fmt.Sprintf("Symbol(%s)", s)
	case t == TagU64Small || t == TagTimepointSmall || t == TagDurationSmall || t == TagU128Small || t == TagU256Small:
		return fmt.Sprintf("%s(%d)", t, v.SmallU())
	case t == TagI64Small || t == TagI128Small || t == TagI256Small:
		return fmt.Sprintf("%s(%d)", t, v.SmallI())
	case t.IsObject():
		return fmt.Sprintf("%s(#%d@%d)", t, v.Major(), v.Minor())
	}
	return fmt.Sprintf("%s(%#x)", t, v.Body())
}
